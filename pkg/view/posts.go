package view

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/client"
	"smartcomments/pkg/models"
)

const (
	msgLoadPostsFailed = "Failed to load posts"
	msgLoadPostFailed  = "Failed to load post"
	msgPostNotFound    = "Post not found"
	msgPageNotFound    = "Page not found"
	msgNoPosts         = "No posts yet. Create one to get started!"
)

type PostPage struct {
	Posts       []models.Post `json:"posts"`
	CurrentPage int           `json:"current_page"`
	TotalPages  int           `json:"total_pages"`
	TotalCount  int           `json:"total_count"`
	HasPrevious bool          `json:"has_previous"`
	HasNext     bool          `json:"has_next"`
	Empty       string        `json:"empty,omitempty"`
}

// LoadPostList loads one page of the post list. A flat array answer is a
// single page holding every post. A page past the end fails as not found.
func LoadPostList(ctx context.Context, b Backend, page int) State[PostPage] {
	if page < 1 {
		page = 1
	}

	sID := shorten(client.RequestID(ctx))

	resp, err := b.ListPosts(ctx, client.ListPostsOptions{Page: page, PageSize: PostsPerPage})
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			log.Infof("[LoadPostList][%s] page %d not found", sID, page)
			return Failed[PostPage](msgPageNotFound, err)
		}
		log.Errorf("[LoadPostList][%s] ListPosts() returned error: %v", sID, err)
		return Failed[PostPage](msgLoadPostsFailed, err)
	}

	posts := resp.Results()
	pp := PostPage{
		Posts:       posts,
		CurrentPage: page,
		TotalPages:  1,
		TotalCount:  len(posts),
	}
	if resp.Shape == client.ShapePaginated {
		pp.TotalCount = resp.Page.Count
		pp.TotalPages = TotalPages(resp.Page.Count, PostsPerPage)
	} else {
		pp.CurrentPage = 1
	}
	pp.HasPrevious = pp.CurrentPage > 1
	pp.HasNext = pp.CurrentPage < pp.TotalPages
	if pp.TotalCount == 0 {
		pp.Empty = msgNoPosts
	}

	return Loaded(pp)
}

type PostDetail struct {
	Post            models.Post `json:"post"`
	CommentsEnabled bool        `json:"comments_enabled"`
}

// LoadPostDetail loads a post and the comment settings. A settings failure
// leaves comments enabled.
func LoadPostDetail(ctx context.Context, b Backend, id int) State[PostDetail] {
	sID := shorten(client.RequestID(ctx))

	post, err := b.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			log.Infof("[LoadPostDetail][%s] post %d not found", sID, id)
			return Failed[PostDetail](msgPostNotFound, err)
		}
		log.Errorf("[LoadPostDetail][%s] GetPost() returned error: %v", sID, err)
		return Failed[PostDetail](msgLoadPostFailed, err)
	}

	return Loaded(PostDetail{Post: post, CommentsEnabled: CommentsEnabled(ctx, b)})
}

// CommentsEnabled asks the backend whether comments are accepted and
// answers true when it cannot tell.
func CommentsEnabled(ctx context.Context, b Backend) bool {
	settings, err := b.CommentSettings(ctx)
	if err != nil {
		log.Warnf("[CommentsEnabled][%s] failed to load comment settings, assuming enabled: %v", shorten(client.RequestID(ctx)), err)
		return true
	}
	return settings.CommentsEnabled
}

func shorten(id string) string {
	if len(id) > 6 {
		return id[:6] + "..."
	}
	return id
}
