// Package view holds the screen state machines of the front-end: the post
// list, the post detail with its comment form, and the moderator queue.
// Each load function performs its backend calls and returns the settled
// state; a screen is Loading only until the load function returns.
package view

import (
	"context"

	"smartcomments/pkg/client"
	"smartcomments/pkg/models"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// State is the load state of one screen. Data is set only when Loaded,
// Error only when Failed.
type State[T any] struct {
	Status Status `json:"status"`
	Data   *T     `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`

	// Err is the cause of a failure, kept for callers that map it to a
	// response status.
	Err error `json:"-"`
}

func Loading[T any]() State[T] {
	return State[T]{Status: StatusLoading}
}

func Loaded[T any](data T) State[T] {
	return State[T]{Status: StatusLoaded, Data: &data}
}

func Failed[T any](msg string, err error) State[T] {
	return State[T]{Status: StatusFailed, Error: msg, Err: err}
}

func (s State[T]) IsLoaded() bool { return s.Status == StatusLoaded }

func (s State[T]) IsFailed() bool { return s.Status == StatusFailed }

// Backend is the read side of the client used by the screens.
type Backend interface {
	ListPosts(ctx context.Context, opts client.ListPostsOptions) (client.ListResponse[models.Post], error)
	GetPost(ctx context.Context, id int) (models.Post, error)
	CommentSettings(ctx context.Context) (models.CommentSettings, error)
	FlaggedComments(ctx context.Context) ([]models.Comment, error)
}

type Submitter interface {
	CreateComment(ctx context.Context, nc client.NewComment, opts client.SubmitOptions) (models.Comment, error)
}
