package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("submission rejected")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnknownShape = errors.New("unrecognized list response shape")
)

// NetworkError reports a transport failure: the backend was never reached or
// the connection broke before a response was read.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ResponseError is a non-2xx answer from the backend. The class of the error
// depends on the request: a 4xx on a resource read or a 404 on a list page is
// ErrNotFound, a 4xx on a submission is ErrValidation.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       ErrorBody

	class error
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: backend returned status %d", e.Method, e.URL, e.StatusCode)
	if e.class != nil {
		msg += ": " + e.class.Error()
	}
	return msg
}

func (e *ResponseError) Is(target error) bool {
	return e.class != nil && target == e.class
}

// requestClass tells newResponseError how to classify a 4xx answer.
type requestClass int

const (
	classRead requestClass = iota
	classList
	classSubmit
)

func newResponseError(method, url string, status int, body []byte, rc requestClass) *ResponseError {
	e := &ResponseError{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Body:       ParseErrorBody(body),
	}

	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		switch rc {
		case classRead:
			e.class = ErrNotFound
		case classList:
			if status == http.StatusNotFound {
				e.class = ErrNotFound
			}
		case classSubmit:
			e.class = ErrValidation
		}
	}

	return e
}
