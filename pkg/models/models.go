package models

// Post is a blog post as served by the backend. CommentCount is denormalized
// and may differ from len(Comments) when the backend returns a subset.
type Post struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
	Comments     []Comment `json:"comments"`
	CommentCount int       `json:"comment_count"`
}

// Comment flag fields are owned by the backend moderation step.
type Comment struct {
	ID               int     `json:"id"`
	PostID           int     `json:"post"`
	Author           string  `json:"author"`
	Content          string  `json:"content"`
	CreatedAt        string  `json:"created_at"`
	FlaggedForReview bool    `json:"flagged_for_review"`
	FlagReason       *string `json:"flag_reason"`
}

// Reason returns the flag reason or an empty string when none was given.
func (c Comment) Reason() string {
	if c.FlagReason == nil {
		return ""
	}
	return *c.FlagReason
}

type PaginatedResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type CommentSettings struct {
	CommentsEnabled bool `json:"comments_enabled"`
}

// ClassifierType selects the backend classifier used when ML moderation is requested.
type ClassifierType string

const (
	ClassifierLocalModel ClassifierType = "local-model"
	ClassifierRemoteAPI  ClassifierType = "remote-api"
)

// Valid reports whether c belongs to the closed set of known classifiers.
func (c ClassifierType) Valid() bool {
	switch c {
	case ClassifierLocalModel, ClassifierRemoteAPI:
		return true
	}
	return false
}
