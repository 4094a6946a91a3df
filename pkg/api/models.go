package api

import (
	"smartcomments/pkg/models"
	"smartcomments/pkg/view"
)

type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type submitResponse struct {
	Notice  view.Notice      `json:"notice"`
	Comment *models.Comment  `json:"comment,omitempty"`
	Form    view.CommentForm `json:"form"`
}

type errorResponse struct {
	Error string `json:"error"`
}
