package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestParseTemplateID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantID     int64
		wantStatus int
	}{
		{name: "valid", pathValue: "42", wantOK: true, wantID: 42},
		{name: "not a number", pathValue: "abc", wantStatus: http.StatusBadRequest},
		{name: "zero", pathValue: "0", wantStatus: http.StatusBadRequest},
		{name: "negative", pathValue: "-3", wantStatus: http.StatusBadRequest},
		{name: "empty", pathValue: "", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseTemplateID(rec, req, logger)

			if ok != tt.wantOK {
				t.Errorf("ParseTemplateID() ok = %v, want %v", ok, tt.wantOK)
			}
			if id != tt.wantID {
				t.Errorf("ParseTemplateID() id = %d, want %d", id, tt.wantID)
			}

			if !tt.wantOK {
				if rec.Code != tt.wantStatus {
					t.Errorf("ParseTemplateID() status = %v, want %v", rec.Code, tt.wantStatus)
				}

				var resp map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp["error"] != "invalid_template_id" {
					t.Errorf("ParseTemplateID() error = %v, want invalid_template_id", resp["error"])
				}
			}
		})
	}
}
