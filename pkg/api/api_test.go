package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/h2non/gock"
	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/client"
	"smartcomments/pkg/devbackend"
	"smartcomments/pkg/models"
	"smartcomments/pkg/view"
)

const backendURL = "http://backend.test"

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func newTestAPI(t *testing.T, baseURL string, lw LogWriter) *API {
	t.Helper()

	c, err := client.New(baseURL)
	if err != nil {
		t.Fatalf("client.New() returned error: %v", err)
	}
	api, err := New("frontend-test", c, lw)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return api
}

func serve(api *API, method, target string, body []byte) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestNewNilBackend(t *testing.T) {
	if _, err := New("x", nil, nil); err == nil {
		t.Error("want error for nil backend, got nil")
	}
}

func TestAPI_postListHandler(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Get("/api/posts/").
		MatchParam("page", "^2$").
		MatchParam("page_size", "^10$").
		Reply(http.StatusOK).
		JSON(map[string]any{
			"count":    25,
			"next":     backendURL + "/api/posts/?page=3",
			"previous": backendURL + "/api/posts/",
			"results":  []models.Post{{ID: 15, Title: "Fifteen"}},
		})

	api := newTestAPI(t, backendURL+"/api", nil)
	rr := serve(api, http.MethodGet, "/posts?page=2", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("want Content-Type application/json, got %q", ct)
	}

	st := decode[view.State[view.PostPage]](t, rr)
	if st.Status != view.StatusLoaded {
		t.Fatalf("want status %q, got %q", view.StatusLoaded, st.Status)
	}
	if st.Data.TotalPages != 3 {
		t.Errorf("want 3 total pages, got %d", st.Data.TotalPages)
	}
	if st.Data.CurrentPage != 2 {
		t.Errorf("want current page 2, got %d", st.Data.CurrentPage)
	}
	if len(st.Data.Posts) != 1 || st.Data.Posts[0].Title != "Fifteen" {
		t.Errorf("want the single post of page 2, got %+v", st.Data.Posts)
	}
	if !gock.IsDone() {
		t.Error("want all backend mocks consumed")
	}
}

func TestAPI_postListHandlerBackendDown(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Get("/api/posts/").
		ReplyError(errors.New("connection refused"))

	api := newTestAPI(t, backendURL+"/api", nil)
	rr := serve(api, http.MethodGet, "/posts", nil)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("want status code %v, got %v", http.StatusBadGateway, rr.Code)
	}
	st := decode[view.State[view.PostPage]](t, rr)
	if st.Error != "Failed to load posts" {
		t.Errorf("want error %q, got %q", "Failed to load posts", st.Error)
	}
}

func TestAPI_postListHandlerPageNotFound(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Get("/api/posts/").
		MatchParam("page", "^9$").
		Reply(http.StatusNotFound).
		JSON(map[string]string{"detail": "Invalid page."})

	api := newTestAPI(t, backendURL+"/api", nil)
	rr := serve(api, http.MethodGet, "/posts?page=9", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v, got %v", http.StatusNotFound, rr.Code)
	}
	st := decode[view.State[view.PostPage]](t, rr)
	if st.Error != "Page not found" {
		t.Errorf("want error %q, got %q", "Page not found", st.Error)
	}
}

func TestAPI_preflight(t *testing.T) {
	api := newTestAPI(t, backendURL+"/api", nil)

	for _, target := range []string{"/posts", "/posts/1/comments"} {
		req := httptest.NewRequest(http.MethodOptions, target, nil)
		req.Header.Set("Origin", "http://blog.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		api.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("%s: want status code %v, got %v", target, http.StatusNoContent, rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("%s: want Access-Control-Allow-Origin %q, got %q", target, "*", got)
		}
		if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
			t.Errorf("%s: want POST allowed, got %q", target, got)
		}
	}
}

func TestAPI_postDetailHandler(t *testing.T) {
	defer gock.Off()

	reason := "Contains URL"
	gock.New(backendURL).
		Get("/api/posts/1/").
		Reply(http.StatusOK).
		JSON(models.Post{
			ID:    1,
			Title: "Hello",
			Comments: []models.Comment{
				{ID: 1, PostID: 1, Author: "Ann", Content: "Hi"},
				{ID: 2, PostID: 1, Author: "Bot", Content: "http://x", FlaggedForReview: true, FlagReason: &reason},
			},
			CommentCount: 2,
		})
	gock.New(backendURL).
		Get("/api/comments/settings/").
		Reply(http.StatusInternalServerError)

	api := newTestAPI(t, backendURL+"/api", nil)
	rr := serve(api, http.MethodGet, "/posts/1", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
	st := decode[view.State[view.PostDetail]](t, rr)
	if !st.Data.CommentsEnabled {
		t.Error("want comments enabled when settings cannot be loaded")
	}
	if len(st.Data.Post.Comments) != 2 {
		t.Errorf("want 2 comments, got %d", len(st.Data.Post.Comments))
	}
	if st.Data.Post.Comments[1].Reason() != reason {
		t.Errorf("want flag reason %q, got %q", reason, st.Data.Post.Comments[1].Reason())
	}
}

func TestAPI_postDetailHandlerNotFound(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Get("/api/posts/9/").
		Reply(http.StatusNotFound).
		JSON(map[string]string{"detail": "No Post matches the given query."})

	api := newTestAPI(t, backendURL+"/api", nil)
	rr := serve(api, http.MethodGet, "/posts/9", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v, got %v", http.StatusNotFound, rr.Code)
	}
	st := decode[view.State[view.PostDetail]](t, rr)
	if st.Error != "Post not found" {
		t.Errorf("want error %q, got %q", "Post not found", st.Error)
	}
	if st.Data != nil {
		t.Errorf("want no data on failure, got %+v", st.Data)
	}
}

func TestAPI_submitCommentHandler(t *testing.T) {
	defer gock.Off()

	var gotBody map[string]any
	gock.New(backendURL).
		Post("/api/comments/").
		MatchParam("use_ml", "^true$").
		MatchParam("classifier_type", "^local-model$").
		AddMatcher(func(r *http.Request, _ *gock.Request) (bool, error) {
			b, err := io.ReadAll(r.Body)
			if err != nil {
				return false, err
			}
			r.Body = io.NopCloser(bytes.NewReader(b))
			return true, json.Unmarshal(b, &gotBody)
		}).
		Reply(http.StatusCreated).
		JSON(models.Comment{ID: 5, PostID: 1, Author: "Ann", Content: "Hi"})

	api := newTestAPI(t, backendURL+"/api", nil)
	body := []byte(`{"author":" Ann ","content":"Hi","use_ml":true,"classifier_type":"local-model"}`)
	rr := serve(api, http.MethodPost, "/posts/1/comments", body)

	if rr.Code != http.StatusCreated {
		t.Fatalf("want status code %v, got %v: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	wantBody := map[string]any{"post": float64(1), "author": "Ann", "content": "Hi"}
	for k, v := range wantBody {
		if gotBody[k] != v {
			t.Errorf("want backend body %s=%v, got %v", k, v, gotBody[k])
		}
	}
	if len(gotBody) != len(wantBody) {
		t.Errorf("want backend body %v, got %v", wantBody, gotBody)
	}

	resp := decode[submitResponse](t, rr)
	if resp.Notice.Kind != view.NoticeSuccess {
		t.Errorf("want success notice, got %+v", resp.Notice)
	}
	if resp.Comment == nil || resp.Comment.ID != 5 {
		t.Errorf("want created comment 5, got %+v", resp.Comment)
	}
	if resp.Form != view.NewCommentForm() {
		t.Errorf("want reset form, got %+v", resp.Form)
	}
}

func TestAPI_submitCommentHandlerRejected(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Post("/api/comments/").
		Reply(http.StatusForbidden).
		JSON(map[string]string{"detail": "Comments are currently disabled. Please try again later."})

	api := newTestAPI(t, backendURL+"/api", nil)
	body := []byte(`{"author":"Ann","content":"Hi","use_ml":false,"classifier_type":"remote-api"}`)
	rr := serve(api, http.MethodPost, "/posts/1/comments", body)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want status code %v, got %v", http.StatusBadRequest, rr.Code)
	}

	resp := decode[submitResponse](t, rr)
	if resp.Notice.Text != "Comments are currently disabled. Please try again later." {
		t.Errorf("want backend detail as notice, got %q", resp.Notice.Text)
	}
	wantForm := view.CommentForm{Author: "Ann", Content: "Hi", Classifier: models.ClassifierRemoteAPI}
	if resp.Form != wantForm {
		t.Errorf("want form %+v kept, got %+v", wantForm, resp.Form)
	}
	if resp.Comment != nil {
		t.Errorf("want no comment, got %+v", resp.Comment)
	}
}

func TestAPI_submitCommentHandlerBackendDown(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Post("/api/comments/").
		ReplyError(errors.New("dial tcp 10.0.0.1:8000: connect: connection refused"))

	api := newTestAPI(t, backendURL+"/api", nil)
	rr := serve(api, http.MethodPost, "/posts/1/comments", []byte(`{"author":"Ann","content":"if a<b then"}`))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("want status code %v, got %v", http.StatusBadGateway, rr.Code)
	}
	resp := decode[submitResponse](t, rr)
	if resp.Notice.Text != client.GenericSubmitFailure {
		t.Errorf("want notice %q, got %q", client.GenericSubmitFailure, resp.Notice.Text)
	}
	if strings.Contains(rr.Body.String(), "backend.test") || strings.Contains(rr.Body.String(), "10.0.0.1") {
		t.Errorf("want no backend address in response, got %s", rr.Body.String())
	}
	if resp.Form.Content != "if a<b then" {
		t.Errorf("want form content kept, got %q", resp.Form.Content)
	}
}

func TestAPI_submitCommentHandlerBadInput(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Post("/api/comments/").
		Reply(http.StatusCreated).
		JSON(models.Comment{ID: 1})

	api := newTestAPI(t, backendURL+"/api", nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"blank author", `{"author":"  ","content":"Hi"}`, http.StatusBadRequest},
		{"blank content", `{"author":"Ann","content":""}`, http.StatusBadRequest},
		{"invalid json", `{"author":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rr := serve(api, http.MethodPost, "/posts/1/comments", []byte(tt.body))
		if rr.Code != tt.want {
			t.Errorf("%s: want status code %v, got %v", tt.name, tt.want, rr.Code)
		}
	}
	if !gock.IsPending() {
		t.Error("want no backend request for bad input")
	}
}

func TestAPI_moderatorHandler(t *testing.T) {
	defer gock.Off()

	reason := "Excessive exclamation marks"
	gock.New(backendURL).
		Get("/api/comments/flagged/").
		Times(2).
		Reply(http.StatusOK).
		JSON([]models.Comment{{ID: 3, Author: "Loud", Content: "WOW!!!", FlaggedForReview: true, FlagReason: &reason}})

	api := newTestAPI(t, backendURL+"/api", nil)

	for i := 0; i < 2; i++ {
		rr := serve(api, http.MethodGet, "/moderator", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("want status code %v, got %v", http.StatusOK, rr.Code)
		}
		st := decode[view.State[view.ModeratorQueue]](t, rr)
		if st.Data.Summary != "1 comment flagged for review" {
			t.Errorf("want summary %q, got %q", "1 comment flagged for review", st.Data.Summary)
		}
	}
	if !gock.IsDone() {
		t.Error("want every moderator view load to refetch")
	}
}

func TestAPI_commentsHandler(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Get("/api/comments/").
		MatchParam("post", "^4$").
		MatchParam("flagged", "^true$").
		Reply(http.StatusOK).
		JSON(map[string]any{"count": 1, "next": nil, "previous": nil, "results": []models.Comment{{ID: 8, PostID: 4}}})

	api := newTestAPI(t, backendURL+"/api", nil)

	rr := serve(api, http.MethodGet, "/comments?post=4&flagged=true", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
	got := decode[[]models.Comment](t, rr)
	if len(got) != 1 || got[0].ID != 8 {
		t.Errorf("want unwrapped comment 8, got %+v", got)
	}

	rr = serve(api, http.MethodGet, "/comments?post=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("want status code %v for invalid post, got %v", http.StatusBadRequest, rr.Code)
	}
}

func TestAPI_requestIDPropagation(t *testing.T) {
	defer gock.Off()

	gock.New(backendURL).
		Get("/api/comments/flagged/").
		MatchHeader("X-Request-Id", "^req-123$").
		Reply(http.StatusOK).
		JSON([]models.Comment{})

	api := newTestAPI(t, backendURL+"/api", nil)

	req := httptest.NewRequest(http.MethodGet, "/moderator", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
	if got := rr.Header().Get("X-Request-Id"); got != "req-123" {
		t.Errorf("want X-Request-Id %q, got %q", "req-123", got)
	}
	if !gock.IsDone() {
		t.Error("want request id forwarded to the backend")
	}
}

func TestAPI_devBackendRoundTrip(t *testing.T) {
	backend := devbackend.New()
	srv := httptest.NewServer(backend.Router())
	defer srv.Close()

	api := newTestAPI(t, srv.URL+devbackend.DefaultPrefix, nil)

	rr := serve(api, http.MethodPost, "/posts", []byte(`{"title":"Hello","content":"World"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status code %v, got %v: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	post := decode[models.Post](t, rr)

	rr = serve(api, http.MethodPost, "/posts", []byte(`{"title":" ","content":"World"}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("want status code %v for blank title, got %v", http.StatusBadRequest, rr.Code)
	}

	rr = serve(api, http.MethodPost, "/posts/1/comments", []byte(`{"author":"Spammer","content":"this is a scam"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status code %v, got %v: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	resp := decode[submitResponse](t, rr)
	if resp.Comment == nil || !resp.Comment.FlaggedForReview {
		t.Errorf("want flagged comment, got %+v", resp.Comment)
	}

	rr = serve(api, http.MethodGet, "/moderator", nil)
	queue := decode[view.State[view.ModeratorQueue]](t, rr)
	if len(queue.Data.Comments) != 1 {
		t.Errorf("want 1 flagged comment, got %d", len(queue.Data.Comments))
	}

	backend.Store.SetCommentsEnabled(false)
	rr = serve(api, http.MethodGet, "/posts/1", nil)
	detail := decode[view.State[view.PostDetail]](t, rr)
	if detail.Data.CommentsEnabled {
		t.Error("want comments disabled")
	}
	if detail.Data.Post.ID != post.ID {
		t.Errorf("want post %d, got %d", post.ID, detail.Data.Post.ID)
	}

	rr = serve(api, http.MethodGet, "/posts", nil)
	list := decode[view.State[view.PostPage]](t, rr)
	if list.Data.TotalCount != 1 || list.Data.TotalPages != 1 {
		t.Errorf("want 1 post on 1 page, got %d posts on %d pages", list.Data.TotalCount, list.Data.TotalPages)
	}

	rr = serve(api, http.MethodPost, "/posts/1/comments", []byte(`{"author":"Ann","content":"Hello"}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("want status code %v when comments are disabled, got %v", http.StatusBadRequest, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Comments are currently disabled") {
		t.Errorf("want disabled notice, got %s", rr.Body.String())
	}
}
