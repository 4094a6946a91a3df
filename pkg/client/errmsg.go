package client

import (
	"bytes"
	"encoding/json"
	"errors"
)

// GenericSubmitFailure is shown when no message can be extracted from a failed submission.
const GenericSubmitFailure = "Failed to create comment. Please try again."

type ErrorBodyKind int

const (
	BodyEmpty ErrorBodyKind = iota
	BodyObject
	BodyString
	BodyOther
)

// ErrorBody is the decoded shape of a backend error response. Only the fields
// matching Kind are populated.
type ErrorBody struct {
	Kind ErrorBodyKind

	// BodyObject
	Detail         string
	NonFieldErrors []string
	Message        string
	Fields         map[string][]string

	// BodyString
	Text string
}

// ParseErrorBody classifies a raw error response body. A body that is not
// JSON at all is kept as text, the same way a JSON string body is.
func ParseErrorBody(b []byte) ErrorBody {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ErrorBody{Kind: BodyEmpty}
	}

	if !json.Valid(b) {
		return ErrorBody{Kind: BodyString, Text: string(b)}
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ErrorBody{Kind: BodyOther}
		}
		return ErrorBody{Kind: BodyString, Text: s}
	case '{':
		return parseErrorObject(b)
	}

	return ErrorBody{Kind: BodyOther}
}

func parseErrorObject(b []byte) ErrorBody {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return ErrorBody{Kind: BodyOther}
	}

	body := ErrorBody{Kind: BodyObject}
	for key, value := range raw {
		switch key {
		case "detail":
			_ = json.Unmarshal(value, &body.Detail)
		case "message":
			_ = json.Unmarshal(value, &body.Message)
		case "non_field_errors":
			body.NonFieldErrors = stringOrList(value)
		default:
			if msgs := stringOrList(value); len(msgs) > 0 {
				if body.Fields == nil {
					body.Fields = make(map[string][]string)
				}
				body.Fields[key] = msgs
			}
		}
	}

	return body
}

// stringOrList decodes either "a" or ["a", "b"] into a slice. Anything else
// yields nil.
func stringOrList(value json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		return list
	}

	return nil
}

// ErrorMessage extracts the human-readable message of a failed submission.
// Lookup order: detail, non_field_errors (first entry), raw string body,
// message, then GenericSubmitFailure.
func ErrorMessage(body ErrorBody) string {
	if body.Detail != "" {
		return body.Detail
	}
	if len(body.NonFieldErrors) > 0 && body.NonFieldErrors[0] != "" {
		return body.NonFieldErrors[0]
	}
	if body.Kind == BodyString && body.Text != "" {
		return body.Text
	}
	if body.Message != "" {
		return body.Message
	}
	return GenericSubmitFailure
}

// SubmissionMessage renders any error returned by a submission. Backend
// answers go through ErrorMessage and local input errors keep their own text.
// Anything else, transport failures included, gets GenericSubmitFailure so
// backend addresses never reach the user.
func SubmissionMessage(err error) string {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return ErrorMessage(respErr.Body)
	}
	if errors.Is(err, ErrInvalidInput) {
		return err.Error()
	}
	return GenericSubmitFailure
}
