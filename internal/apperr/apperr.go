package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInternal   Code = "INTERNAL_ERROR"
	CodeConfig     Code = "CONFIG_ERROR"
	CodeDataset    Code = "DATASET_ERROR"
	CodeIndex      Code = "INDEX_ERROR"
	CodeRetrieval  Code = "RETRIEVAL_FAILED"
	CodeGeneration Code = "GENERATION_FAILED"
)

type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

func Retrieval(err error) *AppError {
	return Wrap(err, CodeRetrieval, "retrieval failed")
}

func Generation(err error) *AppError {
	return Wrap(err, CodeGeneration, "language model call failed")
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or CodeInternal if there is none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
