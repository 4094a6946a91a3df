package view

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/client"
	"smartcomments/pkg/models"
)

const (
	msgCommentAdded   = "Comment added successfully!"
	msgCommentFlagged = "Comment added and flagged for review."
	msgFormIncomplete = "Please fill in both name and comment."
)

// DefaultClassifier is preselected in a fresh form.
const DefaultClassifier = models.ClassifierLocalModel

type CommentForm struct {
	Author     string                `json:"author"`
	Content    string                `json:"content"`
	UseML      bool                  `json:"use_ml"`
	Classifier models.ClassifierType `json:"classifier_type"`
}

func NewCommentForm() CommentForm {
	return CommentForm{Classifier: DefaultClassifier}
}

// Reset clears the form back to its initial state.
func (f *CommentForm) Reset() {
	*f = NewCommentForm()
}

func (f CommentForm) options() client.SubmitOptions {
	if !f.UseML {
		return client.SubmitOptions{}
	}
	classifier := f.Classifier
	if classifier == "" {
		classifier = DefaultClassifier
	}
	return client.SubmitOptions{UseML: true, Classifier: classifier}
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Submit sends the form as a comment on postID. Author and content are only
// trimmed, and input left blank is refused without a request. On success the
// form is reset; on failure it keeps what the user typed and the notice
// carries the backend's message.
func (f *CommentForm) Submit(ctx context.Context, s Submitter, postID int) (models.Comment, Notice, error) {
	author := strings.TrimSpace(f.Author)
	content := strings.TrimSpace(f.Content)
	if author == "" || content == "" {
		return models.Comment{}, Notice{Kind: NoticeError, Text: msgFormIncomplete}, client.ErrInvalidInput
	}

	comment, err := s.CreateComment(ctx, client.NewComment{PostID: postID, Author: author, Content: content}, f.options())
	if err != nil {
		sID := shorten(client.RequestID(ctx))
		if errors.Is(err, client.ErrValidation) {
			log.Infof("[Submit][%s] comment on post %d rejected: %v", sID, postID, err)
		} else {
			log.Errorf("[Submit][%s] CreateComment() returned error: %v", sID, err)
		}
		return models.Comment{}, Notice{Kind: NoticeError, Text: client.SubmissionMessage(err)}, err
	}

	f.Reset()

	n := Notice{Kind: NoticeSuccess, Text: msgCommentAdded}
	if comment.FlaggedForReview {
		n.Text = msgCommentFlagged
	}
	return comment, n, nil
}
