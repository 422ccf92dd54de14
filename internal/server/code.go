package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/platformcommons/apidesigner/internal/spec"
)

// CodeError is an error carrying the HTTP status it is rendered with.
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func NewCodeError(code int, msg string, args ...any) error {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	return &CodeError{code, fmt.Sprintf(msg, args...)}
}

// NewBadRequestError reports invalid request input. Validation errors are
// reduced to their first failing field.
func NewBadRequestError(v any) error {
	var mbe *http.MaxBytesError
	if err, ok := v.(error); ok && errors.As(err, &mbe) {
		return newTooLargeError(mbe.Limit)
	}
	var fe validator.ValidationErrors
	if err, ok := v.(error); ok && errors.As(err, &fe) && len(fe) > 0 {
		e := fe[0]
		v = fmt.Sprintf("Requirement %s %s %s", e.Namespace(), e.Tag(), e.Param())
	}
	return &CodeError{http.StatusBadRequest, fmt.Sprintf("%v", v)}
}

func newTooLargeError(limit int64) error {
	return &CodeError{http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit)}
}

func NewNotFoundError(v any) error {
	return &CodeError{http.StatusNotFound, fmt.Sprintf("%v", v)}
}

func NewConflictError(v any) error {
	return &CodeError{http.StatusConflict, fmt.Sprintf("%v", v)}
}

// asCodeError maps any error onto the status it is rendered with.
func asCodeError(err error) *CodeError {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	var se *spec.SpecError
	if errors.As(err, &se) {
		switch se.Code {
		case spec.InputError:
			return &CodeError{http.StatusBadRequest, se.Message}
		case spec.NetworkError:
			return &CodeError{http.StatusBadGateway, se.Message}
		default:
			return &CodeError{http.StatusUnprocessableEntity, se.Message}
		}
	}
	return &CodeError{http.StatusInternalServerError, err.Error()}
}
