// Package client talks to the comments backend REST API.
//
// Every operation is a single blocking request/response. There is no retry
// and no per-call timeout: the http.Client passed to New carries the global
// timeout and ctx carries cancellation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/models"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 10 * time.Second

	maxBodySize = 4 << 20
)

const (
	postsPath           = "/posts/"
	commentsPath        = "/comments/"
	flaggedCommentsPath = "/comments/flagged/"
	commentSettingsPath = "/comments/settings/"
)

type Client struct {
	base *url.URL
	http *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the timeout of the client-wide http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a client for the backend rooted at baseURL, e.g.
// "http://localhost:8000/api". Endpoint paths are appended verbatim, so the
// trailing slashes the backend expects are preserved.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

type ListPostsOptions struct {
	// Page and PageSize are omitted from the request when zero.
	Page     int `json:"page" validate:"gte=0"`
	PageSize int `json:"page_size" validate:"gte=0"`
}

// ListPosts requests one page of posts. The backend may answer with a flat
// array or a paginated envelope; the returned ListResponse records which.
// An unrecognized body is logged and treated as an empty list.
func (c *Client) ListPosts(ctx context.Context, opts ListPostsOptions) (ListResponse[models.Post], error) {
	if err := validate.Struct(opts); err != nil {
		return ListResponse[models.Post]{}, invalidInput(err)
	}

	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}

	b, err := c.do(ctx, http.MethodGet, postsPath, q, nil, classList)
	if err != nil {
		return ListResponse[models.Post]{}, err
	}

	return decodeListLogged[models.Post](ctx, "ListPosts", b), nil
}

// GetPost fetches a post together with its full comment sequence.
func (c *Client) GetPost(ctx context.Context, id int) (models.Post, error) {
	if id <= 0 {
		return models.Post{}, fmt.Errorf("%w: post id must be positive, got %d", ErrInvalidInput, id)
	}

	path := fmt.Sprintf("%s%d/", postsPath, id)
	b, err := c.do(ctx, http.MethodGet, path, nil, nil, classRead)
	if err != nil {
		return models.Post{}, err
	}

	var post models.Post
	if err := json.Unmarshal(b, &post); err != nil {
		return models.Post{}, fmt.Errorf("decoding post %d: %w", id, err)
	}

	return post, nil
}

type newPost struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CreatePost creates a post. Title and content are trimmed and must not be empty.
func (c *Client) CreatePost(ctx context.Context, title, content string) (models.Post, error) {
	req := newPost{Title: strings.TrimSpace(title), Content: strings.TrimSpace(content)}
	if err := validate.Struct(req); err != nil {
		return models.Post{}, invalidInput(err)
	}

	b, err := c.do(ctx, http.MethodPost, postsPath, nil, req, classSubmit)
	if err != nil {
		return models.Post{}, err
	}

	var post models.Post
	if err := json.Unmarshal(b, &post); err != nil {
		return models.Post{}, fmt.Errorf("decoding created post: %w", err)
	}

	return post, nil
}

type ListCommentsOptions struct {
	// PostID filters by parent post when positive.
	PostID      int
	FlaggedOnly bool
}

// ListComments returns the comments matching opts. The pagination envelope,
// if any, is unwrapped.
func (c *Client) ListComments(ctx context.Context, opts ListCommentsOptions) ([]models.Comment, error) {
	q := url.Values{}
	if opts.PostID > 0 {
		q.Set("post", strconv.Itoa(opts.PostID))
	}
	if opts.FlaggedOnly {
		q.Set("flagged", "true")
	}

	b, err := c.do(ctx, http.MethodGet, commentsPath, q, nil, classList)
	if err != nil {
		return nil, err
	}

	return decodeListLogged[models.Comment](ctx, "ListComments", b).Results(), nil
}

// FlaggedComments returns every comment currently flagged for review. It is
// the moderator queue's data source and is safe to call repeatedly.
func (c *Client) FlaggedComments(ctx context.Context) ([]models.Comment, error) {
	b, err := c.do(ctx, http.MethodGet, flaggedCommentsPath, nil, nil, classList)
	if err != nil {
		return nil, err
	}

	return decodeListLogged[models.Comment](ctx, "FlaggedComments", b).Results(), nil
}

// CommentSettings reports whether comment submission is enabled. Callers are
// expected to treat a failure as "enabled".
func (c *Client) CommentSettings(ctx context.Context) (models.CommentSettings, error) {
	b, err := c.do(ctx, http.MethodGet, commentSettingsPath, nil, nil, classRead)
	if err != nil {
		return models.CommentSettings{}, err
	}

	var s models.CommentSettings
	if err := json.Unmarshal(b, &s); err != nil {
		return models.CommentSettings{}, fmt.Errorf("decoding comment settings: %w", err)
	}

	return s, nil
}

// NewComment is the submission body: what the comment is.
type NewComment struct {
	PostID  int    `json:"post" validate:"gt=0"`
	Author  string `json:"author" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// SubmitOptions travel as query parameters: how the comment is processed.
type SubmitOptions struct {
	UseML      bool
	Classifier models.ClassifierType
}

// Query encodes the options. Nothing is sent unless UseML is set; the
// classifier is only sent together with use_ml.
func (o SubmitOptions) Query() url.Values {
	q := url.Values{}
	if !o.UseML {
		return q
	}
	q.Set("use_ml", "true")
	if o.Classifier != "" {
		q.Set("classifier_type", string(o.Classifier))
	}
	return q
}

// CreateComment submits a comment. Author and content are trimmed; empty
// values are rejected with ErrInvalidInput before any request is made. The
// returned comment carries the flag state decided by the backend.
func (c *Client) CreateComment(ctx context.Context, nc NewComment, opts SubmitOptions) (models.Comment, error) {
	nc.Author = strings.TrimSpace(nc.Author)
	nc.Content = strings.TrimSpace(nc.Content)
	if err := validate.Struct(nc); err != nil {
		return models.Comment{}, invalidInput(err)
	}
	if opts.UseML && opts.Classifier != "" && !opts.Classifier.Valid() {
		return models.Comment{}, fmt.Errorf("%w: unknown classifier type %q", ErrInvalidInput, opts.Classifier)
	}

	b, err := c.do(ctx, http.MethodPost, commentsPath, opts.Query(), nc, classSubmit)
	if err != nil {
		return models.Comment{}, err
	}

	var comment models.Comment
	if err := json.Unmarshal(b, &comment); err != nil {
		return models.Comment{}, fmt.Errorf("decoding created comment: %w", err)
	}

	if comment.FlaggedForReview {
		log.Infof("[CreateComment][%s] comment %d on post %d flagged: %s", shorten(RequestID(ctx)), comment.ID, comment.PostID, comment.Reason())
	}

	return comment, nil
}

// do performs one request and returns the body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, rc requestClass) ([]byte, error) {
	target := c.endpoint(path, q)

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("creating request %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	reqID := RequestID(ctx)
	if reqID == "" {
		if id, err := uuid.NewV4(); err == nil {
			reqID = id.String()
		}
	}
	if reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}
	sID := shorten(reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Errorf("[client][%s] %s %s failed: %v", sID, method, target, err)
		return nil, &NetworkError{Op: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		log.Errorf("[client][%s] %s %s: reading response body: %v", sID, method, target, err)
		return nil, &NetworkError{Op: method, URL: target, Err: err}
	}

	log.Debugf("[client][%s] %s %s -> %d in %v", sID, method, target, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respErr := newResponseError(method, target, resp.StatusCode, b, rc)
		if resp.StatusCode >= http.StatusInternalServerError {
			log.Errorf("[client][%s] %v", sID, respErr)
		} else {
			log.Infof("[client][%s] %v", sID, respErr)
		}
		return nil, respErr
	}

	return b, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func decodeListLogged[T any](ctx context.Context, op string, b []byte) ListResponse[T] {
	l, err := DecodeList[T](b)
	if err != nil {
		log.Warnf("[%s][%s] %v, treating as empty list", op, shorten(RequestID(ctx)), err)
	}
	return l
}

func invalidInput(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fieldMessage(fe))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
