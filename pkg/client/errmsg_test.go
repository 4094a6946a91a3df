package client

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "detail", body: `{"detail": "x"}`, want: "x"},
		{name: "non_field_errors list", body: `{"non_field_errors": ["a", "b"]}`, want: "a"},
		{name: "non_field_errors string", body: `{"non_field_errors": "a"}`, want: "a"},
		{name: "raw string body", body: `"x"`, want: "x"},
		{name: "plain text body", body: `x`, want: "x"},
		{name: "message", body: `{"message": "x"}`, want: "x"},
		{name: "detail wins over the rest", body: `{"message": "m", "non_field_errors": ["n"], "detail": "d"}`, want: "d"},
		{name: "non_field_errors wins over message", body: `{"message": "m", "non_field_errors": ["n"]}`, want: "n"},
		{name: "empty detail falls through", body: `{"detail": "", "message": "m"}`, want: "m"},
		{name: "empty non_field_errors falls through", body: `{"non_field_errors": [], "message": "m"}`, want: "m"},
		{name: "field errors only", body: `{"author": ["This field may not be blank."]}`, want: GenericSubmitFailure},
		{name: "empty object", body: `{}`, want: GenericSubmitFailure},
		{name: "empty body", body: ``, want: GenericSubmitFailure},
		{name: "array body", body: `["a"]`, want: GenericSubmitFailure},
		{name: "empty json string", body: `""`, want: GenericSubmitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorMessage(ParseErrorBody([]byte(tt.body)))
			if got != tt.want {
				t.Errorf("ErrorMessage(%s) = %q; want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestParseErrorBodyFields(t *testing.T) {
	body := ParseErrorBody([]byte(`{"author": ["This field may not be blank."], "content": "Too long."}`))
	if body.Kind != BodyObject {
		t.Fatalf("want kind %v, got %v", BodyObject, body.Kind)
	}
	if got := body.Fields["author"]; len(got) != 1 || got[0] != "This field may not be blank." {
		t.Errorf("want author field error, got %v", got)
	}
	if got := body.Fields["content"]; len(got) != 1 || got[0] != "Too long." {
		t.Errorf("want content field error, got %v", got)
	}
}

func TestSubmissionMessage(t *testing.T) {
	respErr := newResponseError(http.MethodPost, "http://backend/api/comments/", http.StatusBadRequest,
		[]byte(`{"non_field_errors": ["Classification failed: remote API not configured"]}`), classSubmit)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "response error", err: respErr, want: "Classification failed: remote API not configured"},
		{name: "wrapped response error", err: fmt.Errorf("submitting: %w", respErr), want: "Classification failed: remote API not configured"},
		{name: "network error", err: &NetworkError{Op: "POST", URL: "http://backend/api/comments/", Err: errors.New("connection refused")}, want: GenericSubmitFailure},
		{name: "wrapped network error", err: fmt.Errorf("submitting: %w", &NetworkError{Op: "POST", URL: "http://backend/api/comments/", Err: errors.New("dial tcp 10.0.0.1:8000: i/o timeout")}), want: GenericSubmitFailure},
		{name: "invalid input", err: fmt.Errorf("%w: unknown classifier type %q", ErrInvalidInput, "x"), want: `invalid input: unknown classifier type "x"`},
		{name: "other error", err: errors.New("context deadline exceeded"), want: GenericSubmitFailure},
		{name: "nil error", err: nil, want: GenericSubmitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubmissionMessage(tt.err); got != tt.want {
				t.Errorf("SubmissionMessage() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestResponseErrorClass(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		class   requestClass
		wantNF  bool
		wantVal bool
	}{
		{name: "read 404", status: http.StatusNotFound, class: classRead, wantNF: true},
		{name: "read 400", status: http.StatusBadRequest, class: classRead, wantNF: true},
		{name: "read 500", status: http.StatusInternalServerError, class: classRead},
		{name: "submit 400", status: http.StatusBadRequest, class: classSubmit, wantVal: true},
		{name: "submit 403", status: http.StatusForbidden, class: classSubmit, wantVal: true},
		{name: "submit 502", status: http.StatusBadGateway, class: classSubmit},
		{name: "list 404", status: http.StatusNotFound, class: classList, wantNF: true},
		{name: "list 400", status: http.StatusBadRequest, class: classList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newResponseError(http.MethodGet, "http://backend/api/", tt.status, nil, tt.class)
			if got := errors.Is(err, ErrNotFound); got != tt.wantNF {
				t.Errorf("errors.Is(ErrNotFound) = %v; want %v", got, tt.wantNF)
			}
			if got := errors.Is(err, ErrValidation); got != tt.wantVal {
				t.Errorf("errors.Is(ErrValidation) = %v; want %v", got, tt.wantVal)
			}
		})
	}
}
