// Package devbackend is an in-memory stand-in for the comments backend REST
// API. It answers with the same shapes as the real service (paginated
// envelopes, field errors, detail messages) so the front-end can run and be
// tested without it. Moderation uses the rule-based censor regardless of the
// requested classifier.
package devbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/censor"
	"smartcomments/pkg/models"
)

const (
	DefaultPrefix   = "/api"
	defaultPageSize = 10
	maxPageSize     = 100
)

const commentsDisabledDetail = "Comments are currently disabled. Please try again later."

type Server struct {
	Store *Store

	r        *mux.Router
	censor   *censor.Censor
	prefix   string
	paginate bool
}

type Option func(*Server)

// WithoutPagination makes list endpoints answer with raw arrays, like a
// backend without a pagination class.
func WithoutPagination() Option {
	return func(s *Server) { s.paginate = false }
}

func WithCensor(c *censor.Censor) Option {
	return func(s *Server) {
		if c != nil {
			s.censor = c
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = strings.TrimRight(prefix, "/") }
}

func New(opts ...Option) *Server {
	s := &Server{
		Store:    NewStore(),
		r:        mux.NewRouter(),
		censor:   censor.New(),
		prefix:   DefaultPrefix,
		paginate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints()

	return s
}

func (s *Server) Router() *mux.Router {
	return s.r
}

func (s *Server) endpoints() {
	s.r.Use(jsonMiddleware)

	api := s.r
	if s.prefix != "" {
		api = s.r.PathPrefix(s.prefix).Subrouter()
	}

	api.HandleFunc("/posts/", s.listPostsHandler).Methods(http.MethodGet)
	api.HandleFunc("/posts/", s.createPostHandler).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}/", s.postHandler).Methods(http.MethodGet)
	api.HandleFunc("/comments/", s.listCommentsHandler).Methods(http.MethodGet)
	api.HandleFunc("/comments/", s.createCommentHandler).Methods(http.MethodPost)
	api.HandleFunc("/comments/flagged/", s.flaggedCommentsHandler).Methods(http.MethodGet)
	api.HandleFunc("/comments/settings/", s.settingsHandler).Methods(http.MethodGet)
}

func (s *Server) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeList(w, r, s.Store.Posts())
}

func (s *Server) postHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	post, err := s.Store.Post(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Post matches the given query."})
		log.Debugf("[postHandler][%s] post %d: %v", shortID(r), id, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error - " + err.Error()})
		return
	}
	defer r.Body.Close()

	fieldErrs := map[string][]string{}
	if strings.TrimSpace(req.Title) == "" {
		fieldErrs["title"] = []string{"This field may not be blank."}
	}
	if len([]rune(req.Title)) > 200 {
		fieldErrs["title"] = []string{"Ensure this field has no more than 200 characters."}
	}
	if strings.TrimSpace(req.Content) == "" {
		fieldErrs["content"] = []string{"This field may not be blank."}
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}

	post := s.Store.AddPost(req.Title, req.Content)
	log.Infof("[createPostHandler][%s] post %d created", shortID(r), post.ID)
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	postID, _ := strconv.Atoi(r.URL.Query().Get("post"))
	flaggedOnly := r.URL.Query().Get("flagged") == "true"

	s.writeList(w, r, s.Store.Comments(postID, flaggedOnly))
}

// flaggedCommentsHandler always answers with a raw array.
func (s *Server) flaggedCommentsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Comments(0, true))
}

func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.CommentSettings{CommentsEnabled: s.Store.CommentsEnabled()})
}

func (s *Server) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shortID(r)

	if !s.Store.CommentsEnabled() {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": commentsDisabledDetail})
		log.Debugf("[createCommentHandler][%s] rejected, comments disabled", sID)
		return
	}

	var req struct {
		Post    *int   `json:"post"`
		Author  string `json:"author"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error - " + err.Error()})
		return
	}
	defer r.Body.Close()

	fieldErrs := map[string][]string{}
	if req.Post == nil {
		fieldErrs["post"] = []string{"This field is required."}
	}
	if strings.TrimSpace(req.Author) == "" {
		fieldErrs["author"] = []string{"This field may not be blank."}
	}
	if len([]rune(req.Author)) > 100 {
		fieldErrs["author"] = []string{"Ensure this field has no more than 100 characters."}
	}
	if strings.TrimSpace(req.Content) == "" {
		fieldErrs["content"] = []string{"This field may not be blank."}
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}

	classifier := r.URL.Query().Get("classifier_type")
	if classifier != "" && !models.ClassifierType(classifier).Valid() {
		writeJSON(w, http.StatusBadRequest, []string{fmt.Sprintf("Classification failed: unknown classifier type %q", classifier)})
		return
	}

	comment := models.Comment{
		PostID:  *req.Post,
		Author:  req.Author,
		Content: req.Content,
	}
	if flagged, reason := s.censor.Check(req.Content); flagged {
		comment.FlaggedForReview = true
		comment.FlagReason = &reason
	}

	comment, err := s.Store.AddComment(comment)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			writeJSON(w, http.StatusBadRequest, map[string][]string{
				"post": {fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *req.Post)},
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal Server Error"})
		log.Errorf("[createCommentHandler][%s] AddComment() returned error: %v", sID, err)
		return
	}

	log.Infof("[createCommentHandler][%s] comment %d on post %d created (use_ml=%s classifier=%q flagged=%v)",
		sID, comment.ID, comment.PostID, r.URL.Query().Get("use_ml"), classifier, comment.FlaggedForReview)
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, items any) {
	if !s.paginate {
		writeJSON(w, http.StatusOK, items)
		return
	}

	var (
		page any
		err  error
	)
	switch v := items.(type) {
	case []models.Post:
		page, err = paginate(r, v)
	case []models.Comment:
		page, err = paginate(r, v)
	default:
		err = fmt.Errorf("unsupported list type %T", items)
	}
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Invalid page."})
		log.Debugf("[writeList][%s] %v", shortID(r), err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// paginate cuts one page out of items using the page and page_size query
// parameters. Page numbers outside the list are an error, except page 1 of
// an empty list.
func paginate[T any](r *http.Request, items []T) (models.PaginatedResponse[T], error) {
	q := r.URL.Query()

	pageSize, err := strconv.Atoi(q.Get("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return models.PaginatedResponse[T]{}, fmt.Errorf("invalid page %q", raw)
		}
	}

	count := len(items)
	numPages := (count + pageSize - 1) / pageSize
	if numPages == 0 {
		numPages = 1
	}
	if page > numPages {
		return models.PaginatedResponse[T]{}, fmt.Errorf("page %d out of range 1..%d", page, numPages)
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > count {
		end = count
	}

	resp := models.PaginatedResponse[T]{
		Count:   count,
		Results: append(make([]T, 0, end-start), items[start:end]...),
	}
	if page < numPages {
		next := pageURL(r, page+1)
		resp.Next = &next
	}
	if page > 1 {
		prev := pageURL(r, page-1)
		resp.Previous = &prev
	}

	return resp, nil
}

// pageURL builds the absolute URL of another page of the current request.
// The first page is addressed without a page parameter.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	q := r.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[writeJSON] failed to encode response: %v", err)
	}
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func shortID(r *http.Request) string {
	id := r.Header.Get("X-Request-Id")
	if len(id) > 6 {
		return id[:6] + "..."
	}
	return id
}
