package view

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/client"
	"smartcomments/pkg/models"
)

const (
	msgLoadFlaggedFailed = "Failed to load flagged comments"
	msgAllClear          = "No flagged comments. All clear!"
)

type ModeratorQueue struct {
	Comments []models.Comment `json:"comments"`
	Summary  string           `json:"summary"`
	Empty    string           `json:"empty,omitempty"`
}

// LoadModeratorQueue fetches the flagged comments. Every call is a fresh
// fetch, so reloading the screen is the refresh action.
func LoadModeratorQueue(ctx context.Context, b Backend) State[ModeratorQueue] {
	comments, err := b.FlaggedComments(ctx)
	if err != nil {
		log.Errorf("[LoadModeratorQueue][%s] FlaggedComments() returned error: %v", shorten(client.RequestID(ctx)), err)
		return Failed[ModeratorQueue](msgLoadFlaggedFailed, err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	q := ModeratorQueue{Comments: comments, Summary: FlaggedSummary(len(comments))}
	if len(comments) == 0 {
		q.Empty = msgAllClear
	}

	return Loaded(q)
}

func FlaggedSummary(n int) string {
	noun := "comments"
	if n == 1 {
		noun = "comment"
	}
	return fmt.Sprintf("%d %s flagged for review", n, noun)
}
