package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/0x0BSoD/constellation/internal/model"
	"github.com/0x0BSoD/constellation/internal/render"
	"github.com/0x0BSoD/constellation/internal/storage"
	"github.com/0x0BSoD/constellation/internal/timeline"
)

const testToken = "s3cret"

type recordingAnnouncer struct {
	mu    sync.Mutex
	posts []model.Post
}

func (a *recordingAnnouncer) Announce(post model.Post) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.posts = append(a.posts, post)
}

func (a *recordingAnnouncer) all() []model.Post {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Post(nil), a.posts...)
}

type testEnv struct {
	server    *httptest.Server
	posts     *storage.PostSQLStorage
	announcer *recordingAnnouncer
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	db, err := sqlx.Connect("sqlite", filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(context.Background(), db))

	env := &testEnv{
		posts:     storage.NewPostStorage(db),
		announcer: &recordingAnnouncer{},
	}

	s := New(
		env.posts,
		storage.NewSettingsStorage(db),
		timeline.NewCache(timeline.New(time.UTC)),
		render.DefaultStyle(),
		token,
		env.announcer,
	)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	env.server = httptest.NewServer(s.Handler())
	t.Cleanup(env.server.Close)

	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) seed(t *testing.T, posts ...model.Post) []string {
	t.Helper()

	ids := make([]string, len(posts))
	for i, p := range posts {
		id, err := e.posts.Store(context.Background(), p)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

type layoutBody struct {
	Posts []struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"created_at"`
		X         float64   `json:"x"`
		Y         float64   `json:"y"`
	} `json:"posts"`
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, testToken)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", nil).StatusCode)
}

func TestLayout(t *testing.T) {
	env := newTestEnv(t, testToken)

	empty := decode[layoutBody](t, env.do(t, http.MethodGet, "/api/posts", "", nil))
	assert.NotNil(t, empty.Posts)
	assert.Empty(t, empty.Posts)

	env.seed(t,
		model.Post{Title: "later", Content: "b", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		model.Post{Title: "earlier", Content: "a", CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	)

	resp := env.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body := decode[layoutBody](t, resp)
	require.Len(t, body.Posts, 2)
	assert.Equal(t, "earlier", body.Posts[0].Title)
	assert.Equal(t, 5.0, body.Posts[0].X)
	assert.Equal(t, 10.0, body.Posts[0].Y)
	assert.Equal(t, "later", body.Posts[1].Title)
	assert.Equal(t, 95.0, body.Posts[1].X)
}

func TestPost(t *testing.T) {
	env := newTestEnv(t, testToken)
	ids := env.seed(t, model.Post{
		Title:     "video",
		Content:   "watch this",
		CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		VideoURL:  "https://www.youtube.com/watch?v=abc",
	})

	body := decode[postResponse](t, env.do(t, http.MethodGet, "/api/posts/"+ids[0], "", nil))
	assert.Equal(t, ids[0], body.ID)
	assert.Equal(t, "https://www.youtube.com/embed/abc", body.EmbedURL)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/posts/nope", "", nil).StatusCode)
}

func TestYear(t *testing.T) {
	env := newTestEnv(t, testToken)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodGet, "/api/year?fraction=0.5", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/year?fraction=half", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/year", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/year?fraction=NaN", "", nil).StatusCode)
	for _, fraction := range []string{"1e30", "-0.1", "1.5", "Inf", "-Inf"} {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/year?fraction="+fraction, "", nil).StatusCode, fraction)
	}

	env.seed(t,
		model.Post{Title: "a", CreatedAt: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)},
		model.Post{Title: "b", CreatedAt: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)},
	)

	body := decode[map[string]int](t, env.do(t, http.MethodGet, "/api/year?fraction=0.5", "", nil))
	assert.Equal(t, 2021, body["year"])

	body = decode[map[string]int](t, env.do(t, http.MethodGet, "/api/year?fraction=0", "", nil))
	assert.Equal(t, 2020, body["year"])
	body = decode[map[string]int](t, env.do(t, http.MethodGet, "/api/year?fraction=1", "", nil))
	assert.Equal(t, 2022, body["year"])
}

func TestSVGEndpoint(t *testing.T) {
	env := newTestEnv(t, testToken)
	env.seed(t, model.Post{Title: "solo", CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)})

	resp := env.do(t, http.MethodGet, "/constellation.svg", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<title>solo · January 1, 2023</title>")
}

func TestAdmin_Auth(t *testing.T) {
	env := newTestEnv(t, testToken)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/admin/posts", "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/admin/posts", "wrong", nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/posts", testToken, nil).StatusCode)

	disabled := newTestEnv(t, "")
	assert.Equal(t, http.StatusForbidden, disabled.do(t, http.MethodGet, "/api/admin/posts", "anything", nil).StatusCode)
}

func TestAdmin_PostLifecycle(t *testing.T) {
	env := newTestEnv(t, testToken)

	resp := env.do(t, http.MethodPost, "/api/admin/posts", testToken, postRequest{
		Title:     "  New star ",
		Content:   "# Hello",
		CreatedAt: "2024-01-07",
		MediaURL:  "https://example.com/a.png",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[postResponse](t, resp)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "New star", created.Title)
	assert.True(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC).Equal(created.CreatedAt))
	announced := env.announcer.all()
	require.Len(t, announced, 1)
	assert.Equal(t, created.ID, announced[0].ID)

	resp = env.do(t, http.MethodPut, "/api/admin/posts/"+created.ID, testToken, postRequest{
		Title:     "Renamed",
		Content:   "# Hello again",
		CreatedAt: "2024-02-10",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := env.posts.PostByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Empty(t, stored.MediaURL)
	assert.True(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC).Equal(stored.CreatedAt))

	list := decode[struct {
		Posts []postResponse `json:"posts"`
	}](t, env.do(t, http.MethodGet, "/api/admin/posts", testToken, nil))
	require.Len(t, list.Posts, 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/posts/"+created.ID, testToken, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/admin/posts/"+created.ID, testToken, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/admin/posts/"+created.ID, testToken, postRequest{Title: "x", Content: "y"}).StatusCode)
}

func TestAdmin_DuplicateExternalURL(t *testing.T) {
	env := newTestEnv(t, testToken)

	first := postRequest{Title: "Sirius", Content: "bright", ExternalURL: "https://example.com/sirius"}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/admin/posts", testToken, first).StatusCode)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/admin/posts", testToken, first).StatusCode)

	other := decode[postResponse](t, env.do(t, http.MethodPost, "/api/admin/posts", testToken, postRequest{Title: "Vega", Content: "blue"}))
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPut, "/api/admin/posts/"+other.ID, testToken, first).StatusCode)

	assert.Len(t, env.announcer.all(), 2)
}

func TestAdmin_CreateValidation(t *testing.T) {
	env := newTestEnv(t, testToken)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/admin/posts", testToken, postRequest{Content: "no title"}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/admin/posts", testToken, postRequest{Title: "no content"}).StatusCode)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/admin/posts", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, env.announcer.all())
}

func TestAdmin_Settings(t *testing.T) {
	env := newTestEnv(t, testToken)

	resp := env.do(t, http.MethodPut, "/api/admin/settings", testToken, settingsBody{
		Headline:      "Stars",
		AboutContent:  "About **me**",
		AboutVideoURL: "https://www.youtube.com/watch?v=me",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	admin := decode[settingsBody](t, env.do(t, http.MethodGet, "/api/admin/settings", testToken, nil))
	assert.Equal(t, "Stars", admin.Headline)

	about := decode[settingsBody](t, env.do(t, http.MethodGet, "/api/about", "", nil))
	assert.Equal(t, "About **me**", about.AboutContent)
	assert.Equal(t, "https://www.youtube.com/embed/me", about.AboutEmbedURL)
	assert.Empty(t, about.AboutMediaURL)
}

func TestParseCreatedAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	existing := time.Date(2023, 3, 4, 18, 30, 15, 0, time.UTC)

	tests := []struct {
		name     string
		raw      string
		existing time.Time
		want     time.Time
	}{
		{name: "empty new post", raw: "", want: now},
		{name: "empty keeps existing", raw: " ", existing: existing, want: existing},
		{name: "rfc3339", raw: "2024-01-07T23:59:00+02:00", want: time.Date(2024, 1, 7, 21, 59, 0, 0, time.UTC)},
		{name: "date new post", raw: "2024-01-07", want: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)},
		{name: "date keeps time of day", raw: "2024-01-07", existing: existing, want: time.Date(2024, 1, 7, 18, 30, 15, 0, time.UTC)},
		{name: "garbage", raw: "yesterday", existing: existing, want: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCreatedAt(tt.raw, tt.existing, now)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestRun_Shutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := New(nil, nil, timeline.NewCache(timeline.New(time.UTC)), render.DefaultStyle(), "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, addr, time.Second) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
