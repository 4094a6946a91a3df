// Package api is the HTTP front-end. Each route renders one screen as JSON
// by loading it through the backend client on every request.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/client"
	"smartcomments/pkg/models"
	"smartcomments/pkg/view"
)

const maxBodyBytes = 1 << 20

// Backend is everything the front-end needs from the comments backend.
// *client.Client implements it.
type Backend interface {
	view.Backend
	view.Submitter
	CreatePost(ctx context.Context, title, content string) (models.Post, error)
	ListComments(ctx context.Context, opts client.ListCommentsOptions) ([]models.Comment, error)
}

type API struct {
	ServiceName string

	r  *mux.Router
	b  Backend
	lw LogWriter
}

// New builds the router. lw may be nil, in which case request logs are not
// shipped.
func New(name string, b Backend, lw LogWriter) (*API, error) {
	if b == nil {
		return nil, errors.New("api: nil backend")
	}

	api := API{
		ServiceName: name,
		r:           mux.NewRouter(),
		b:           b,
		lw:          lw,
	}
	api.endpoints()

	return &api, nil
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.headerMiddleware)
	if api.lw != nil {
		api.r.Use(api.loggingMiddleware(api.lw))
	}

	api.r.HandleFunc("/posts", api.postListHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/posts", api.createPostHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/posts/{id:[0-9]+}", api.postDetailHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/posts/{id:[0-9]+}/comments", api.submitCommentHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/comments", api.commentsHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/moderator", api.moderatorHandler).Methods(http.MethodGet)

	// CORS preflight for every route; headerMiddleware sets the headers.
	api.r.Methods(http.MethodOptions).HandlerFunc(api.preflightHandler)
}

func (api *API) preflightHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) postListHandler(w http.ResponseWriter, r *http.Request) {
	page := view.ParsePage(r.URL.Query().Get("page"))
	writeState(w, view.LoadPostList(r.Context(), api.b, page))
}

func (api *API) postDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		writeState(w, view.Failed[view.PostDetail]("Post not found", client.ErrNotFound))
		return
	}

	writeState(w, view.LoadPostDetail(r.Context(), api.b, id))
}

func (api *API) moderatorHandler(w http.ResponseWriter, r *http.Request) {
	writeState(w, view.LoadModeratorQueue(r.Context(), api.b))
}

func (api *API) createPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(client.RequestID(r.Context()))

	var req createPostRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Bad Request: invalid JSON"})
		log.Debugf("[createPostHandler][%s] failed to decode request body: %v", sID, err)
		return
	}
	defer r.Body.Close()

	post, err := api.b.CreatePost(r.Context(), req.Title, req.Content)
	if err != nil {
		writeJSON(w, submitStatus(err), errorResponse{Error: postFailureMessage(err)})
		log.Infof("[createPostHandler][%s] CreatePost() returned error: %v", sID, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (api *API) submitCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(client.RequestID(r.Context()))

	postID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || postID < 1 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Post not found"})
		return
	}

	form := view.NewCommentForm()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Bad Request: invalid JSON"})
		log.Debugf("[submitCommentHandler][%s] failed to decode request body: %v", sID, err)
		return
	}
	defer r.Body.Close()

	comment, notice, err := form.Submit(r.Context(), api.b, postID)
	if err != nil {
		writeJSON(w, submitStatus(err), submitResponse{Notice: notice, Form: form})
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{Notice: notice, Comment: &comment, Form: form})
}

func (api *API) commentsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(client.RequestID(r.Context()))
	q := r.URL.Query()

	opts := client.ListCommentsOptions{FlaggedOnly: q.Get("flagged") == "true"}
	if raw := q.Get("post"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid post parameter"})
			log.Debugf("[commentsHandler][%s] invalid post parameter %q", sID, raw)
			return
		}
		opts.PostID = id
	}

	comments, err := api.b.ListComments(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to load comments"})
		log.Errorf("[commentsHandler][%s] ListComments() returned error: %v", sID, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// submitStatus maps a submission error to a response status. Rejections by
// the client or the backend are 400; anything else is a backend failure.
func submitStatus(err error) int {
	if errors.Is(err, client.ErrInvalidInput) || errors.Is(err, client.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func postFailureMessage(err error) string {
	if errors.Is(err, client.ErrInvalidInput) {
		return err.Error()
	}
	var respErr *client.ResponseError
	if errors.As(err, &respErr) {
		if msg := client.ErrorMessage(respErr.Body); msg != client.GenericSubmitFailure {
			return msg
		}
	}
	return "Failed to create post"
}

// writeState answers with a screen state: 200 when loaded, 404 when the
// resource is missing and 502 for any other failure.
func writeState[T any](w http.ResponseWriter, st view.State[T]) {
	status := http.StatusOK
	if st.IsFailed() {
		status = http.StatusBadGateway
		if errors.Is(st.Err, client.ErrNotFound) {
			status = http.StatusNotFound
		}
	}

	writeJSON(w, status, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[writeJSON] failed to encode response: %v", err)
	}
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
