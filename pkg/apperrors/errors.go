package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrQueryExecution    = errors.New("query execution failed")
	ErrTransactionFailed = errors.New("transaction failed")
)
