package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds the process logger: a development console logger for
// local environments, a JSON production logger otherwise.
func NewLogger(env string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if env == "local" || env == "dev" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.EncoderConfig.FunctionKey = "func"

	return zapConfig.Build()
}
