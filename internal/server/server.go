package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/0x0BSoD/constellation/internal/model"
	"github.com/0x0BSoD/constellation/internal/render"
	"github.com/0x0BSoD/constellation/internal/timeline"
)

type PostStorage interface {
	Store(ctx context.Context, post model.Post) (string, error)
	Update(ctx context.Context, post model.Post) error
	Delete(ctx context.Context, id string) error
	PostByID(ctx context.Context, id string) (*model.Post, error)
	Posts(ctx context.Context, ascending bool) ([]model.Post, error)
}

type SettingsStorage interface {
	Settings(ctx context.Context) (model.SiteSettings, error)
	Save(ctx context.Context, settings model.SiteSettings) error
}

type Announcer interface {
	Announce(post model.Post)
}

type Server struct {
	posts      PostStorage
	settings   SettingsStorage
	layout     *timeline.Cache
	style      render.Style
	adminToken string
	announcer  Announcer

	now func() time.Time
}

// New wires the HTTP API. announcer may be nil. An empty adminToken
// disables the admin endpoints.
func New(
	posts PostStorage,
	settings SettingsStorage,
	layout *timeline.Cache,
	style render.Style,
	adminToken string,
	announcer Announcer,
) *Server {
	return &Server{
		posts:      posts,
		settings:   settings,
		layout:     layout,
		style:      style,
		adminToken: adminToken,
		announcer:  announcer,
		now:        time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /api/posts", s.handleLayout)
	mux.HandleFunc("GET /api/posts/{id}", s.handlePost)
	mux.HandleFunc("GET /api/year", s.handleYear)
	mux.HandleFunc("GET /api/about", s.handleAbout)
	mux.HandleFunc("GET /constellation.svg", s.handleSVG)

	mux.HandleFunc("GET /api/admin/posts", s.adminsOnly(s.handleAdminPosts))
	mux.HandleFunc("POST /api/admin/posts", s.adminsOnly(s.handleCreatePost))
	mux.HandleFunc("PUT /api/admin/posts/{id}", s.adminsOnly(s.handleUpdatePost))
	mux.HandleFunc("DELETE /api/admin/posts/{id}", s.adminsOnly(s.handleDeletePost))
	mux.HandleFunc("GET /api/admin/settings", s.adminsOnly(s.handleAdminSettings))
	mux.HandleFunc("PUT /api/admin/settings", s.adminsOnly(s.handleSaveSettings))

	return mux
}

// Run serves on addr until ctx is done, then waits up to grace for open
// requests to finish.
func (s *Server) Run(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] http server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Printf("[INFO] http server stopped")
	return ctx.Err()
}
