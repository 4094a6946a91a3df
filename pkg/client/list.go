package client

import (
	"bytes"
	"encoding/json"

	"smartcomments/pkg/models"
)

// ListShape tells which of the two list encodings the backend answered with.
type ListShape int

const (
	ShapeUnknown ListShape = iota
	ShapeArray
	ShapePaginated
)

func (s ListShape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapePaginated:
		return "paginated"
	}
	return "unknown"
}

// ListResponse is the decoded form of a list endpoint answer. For ShapeArray
// only Items is set; for ShapePaginated Page holds the envelope and Items
// mirrors Page.Results; ShapeUnknown carries no items.
type ListResponse[T any] struct {
	Shape ListShape
	Items []T
	Page  *models.PaginatedResponse[T]
}

// Results is the single normalization point: callers that do not care about
// pagination read the current page from here.
func (l ListResponse[T]) Results() []T {
	if l.Items == nil {
		return []T{}
	}
	return l.Items
}

// DecodeList decodes a list response that is either a raw JSON array or a
// paginated envelope recognised by its "results" field. Any other body
// decodes to an empty ShapeUnknown response together with ErrUnknownShape.
func DecodeList[T any](b []byte) (ListResponse[T], error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ListResponse[T]{Shape: ShapeUnknown}, ErrUnknownShape
	}

	switch b[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return ListResponse[T]{Shape: ShapeUnknown}, ErrUnknownShape
		}
		if items == nil {
			items = []T{}
		}
		return ListResponse[T]{Shape: ShapeArray, Items: items}, nil

	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(b, &probe); err != nil {
			return ListResponse[T]{Shape: ShapeUnknown}, ErrUnknownShape
		}
		if _, ok := probe["results"]; !ok {
			return ListResponse[T]{Shape: ShapeUnknown}, ErrUnknownShape
		}

		var page models.PaginatedResponse[T]
		if err := json.Unmarshal(b, &page); err != nil {
			return ListResponse[T]{Shape: ShapeUnknown}, ErrUnknownShape
		}
		if page.Results == nil {
			page.Results = []T{}
		}
		return ListResponse[T]{Shape: ShapePaginated, Items: page.Results, Page: &page}, nil
	}

	return ListResponse[T]{Shape: ShapeUnknown}, ErrUnknownShape
}

// Unwrap returns exactly the results of an envelope, a raw array unchanged,
// and an empty slice for anything else.
func Unwrap[T any](b []byte) []T {
	l, _ := DecodeList[T](b)
	return l.Results()
}
