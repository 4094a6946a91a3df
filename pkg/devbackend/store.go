package devbackend

import (
	"errors"
	"sort"
	"sync"
	"time"

	"smartcomments/pkg/models"
)

var ErrPostNotFound = errors.New("post not found")

// timeLayout has a fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Store is the in-memory state of the development backend.
type Store struct {
	mu              sync.Mutex
	now             func() time.Time
	posts           map[int]models.Post
	comments        map[int]models.Comment
	nextPostID      int
	nextCommentID   int
	commentsEnabled bool
}

func NewStore() *Store {
	return &Store{
		now:             time.Now,
		posts:           make(map[int]models.Post),
		comments:        make(map[int]models.Comment),
		nextPostID:      1,
		nextCommentID:   1,
		commentsEnabled: true,
	}
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// AddPost stores a new post and returns it with id and timestamps assigned.
func (s *Store) AddPost(title, content string) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.timestamp()
	p := models.Post{
		ID:        s.nextPostID,
		Title:     title,
		Content:   content,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.posts[p.ID] = p
	s.nextPostID++

	return s.withComments(p)
}

// Posts returns every post, newest first, with comments embedded.
func (s *Store) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, s.withComments(p))
	}

	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt == posts[j].CreatedAt {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt > posts[j].CreatedAt
	})

	return posts
}

func (s *Store) Post(id int) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, ErrPostNotFound
	}

	return s.withComments(p), nil
}

// AddComment stores a comment on an existing post. The flag state is set by
// the caller.
func (s *Store) AddComment(c models.Comment) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[c.PostID]; !ok {
		return models.Comment{}, ErrPostNotFound
	}

	c.ID = s.nextCommentID
	c.CreatedAt = s.timestamp()
	s.comments[c.ID] = c
	s.nextCommentID++

	return c, nil
}

// Comments returns comments oldest first. postID <= 0 means every post.
func (s *Store) Comments(postID int, flaggedOnly bool) []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.filterComments(postID, flaggedOnly)
}

func (s *Store) CommentsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commentsEnabled
}

func (s *Store) SetCommentsEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commentsEnabled = enabled
}

func (s *Store) withComments(p models.Post) models.Post {
	p.Comments = s.filterComments(p.ID, false)
	p.CommentCount = len(p.Comments)
	return p
}

func (s *Store) filterComments(postID int, flaggedOnly bool) []models.Comment {
	comments := make([]models.Comment, 0)
	for _, c := range s.comments {
		if postID > 0 && c.PostID != postID {
			continue
		}
		if flaggedOnly && !c.FlaggedForReview {
			continue
		}
		comments = append(comments, c)
	}

	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt == comments[j].CreatedAt {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt < comments[j].CreatedAt
	})

	return comments
}
