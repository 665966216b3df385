package server

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/constellation/internal/model"
	"github.com/0x0BSoD/constellation/internal/render"
	"github.com/0x0BSoD/constellation/internal/storage"
	"github.com/0x0BSoD/constellation/internal/timeline"
)

type postResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	MediaURL    string    `json:"media_url,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	EmbedURL    string    `json:"embed_url,omitempty"`
	ExternalURL string    `json:"external_url,omitempty"`
	NewTab      bool      `json:"new_tab"`
}

func newPostResponse(p model.Post) postResponse {
	resp := postResponse{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		CreatedAt:   p.CreatedAt,
		MediaURL:    p.MediaURL,
		VideoURL:    p.VideoURL,
		ExternalURL: p.ExternalURL,
		NewTab:      p.NewTab,
	}
	if p.VideoURL != "" {
		resp.EmbedURL = model.EmbedURL(p.VideoURL)
	}
	return resp
}

type plottedResponse struct {
	postResponse
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.Posts(r.Context(), true)
	if err != nil {
		internalError(w, "list posts", err)
		return
	}

	plotted := lo.Map(s.layout.ComputeLayout(posts), func(p timeline.PlottedPost, _ int) plottedResponse {
		return plottedResponse{postResponse: newPostResponse(p.Post), X: p.X, Y: p.Y}
	})

	writeJSON(w, http.StatusOK, map[string]any{"posts": plotted})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.posts.PostByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		internalError(w, "get post", err)
		return
	}

	writeJSON(w, http.StatusOK, newPostResponse(*post))
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	fraction, err := strconv.ParseFloat(r.URL.Query().Get("fraction"), 64)
	if err != nil || math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		http.Error(w, "fraction must be a number between 0 and 1", http.StatusBadRequest)
		return
	}

	posts, err := s.posts.Posts(r.Context(), true)
	if err != nil {
		internalError(w, "list posts", err)
		return
	}

	year, ok := s.layout.Engine().EstimateYearAtPosition(posts, fraction)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"year": year})
}

type settingsBody struct {
	Headline      string `json:"headline"`
	AboutContent  string `json:"about_content"`
	AboutMediaURL string `json:"about_media_url"`
	AboutVideoURL string `json:"about_video_url"`
	AboutEmbedURL string `json:"about_embed_url,omitempty"`
}

func newSettingsBody(s model.SiteSettings) settingsBody {
	body := settingsBody{
		Headline:      s.Headline,
		AboutContent:  s.AboutContent,
		AboutMediaURL: s.AboutMediaURL,
		AboutVideoURL: s.AboutVideoURL,
	}
	if s.AboutVideoURL != "" {
		body.AboutEmbedURL = model.EmbedURL(s.AboutVideoURL)
	}
	return body
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Settings(r.Context())
	if err != nil {
		internalError(w, "read settings", err)
		return
	}

	writeJSON(w, http.StatusOK, newSettingsBody(settings))
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.Posts(r.Context(), true)
	if err != nil {
		internalError(w, "list posts", err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	if err := render.SVG(w, s.layout.ComputeLayout(posts), s.style); err != nil {
		log.Printf("[ERROR] failed to write svg: %v", err)
	}
}

func (s *Server) handleAdminPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.Posts(r.Context(), false)
	if err != nil {
		internalError(w, "list posts", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": lo.Map(posts, func(p model.Post, _ int) postResponse { return newPostResponse(p) }),
	})
}

type postRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	CreatedAt   string `json:"created_at"`
	MediaURL    string `json:"media_url"`
	VideoURL    string `json:"video_url"`
	ExternalURL string `json:"external_url"`
	NewTab      bool   `json:"new_tab"`
}

func (req postRequest) validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return errors.New("content is required")
	}
	return nil
}

func (req postRequest) toModel(createdAt time.Time) model.Post {
	return model.Post{
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		CreatedAt:   createdAt,
		MediaURL:    strings.TrimSpace(req.MediaURL),
		VideoURL:    strings.TrimSpace(req.VideoURL),
		ExternalURL: strings.TrimSpace(req.ExternalURL),
		NewTab:      req.NewTab,
	}
}

func decodePostRequest(w http.ResponseWriter, r *http.Request) (postRequest, bool) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}

	post := req.toModel(parseCreatedAt(req.CreatedAt, time.Time{}, s.now()))

	id, err := s.posts.Store(r.Context(), post)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicatePost) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		internalError(w, "store post", err)
		return
	}
	post.ID = id

	if s.announcer != nil {
		s.announcer.Announce(post)
	}

	writeJSON(w, http.StatusCreated, newPostResponse(post))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}

	existing, err := s.posts.PostByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		internalError(w, "get post", err)
		return
	}

	post := req.toModel(parseCreatedAt(req.CreatedAt, existing.CreatedAt, s.now()))
	post.ID = existing.ID

	if err := s.posts.Update(r.Context(), post); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, storage.ErrDuplicatePost) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		internalError(w, "update post", err)
		return
	}

	writeJSON(w, http.StatusOK, newPostResponse(post))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		internalError(w, "delete post", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Settings(r.Context())
	if err != nil {
		internalError(w, "read settings", err)
		return
	}

	writeJSON(w, http.StatusOK, newSettingsBody(settings))
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings := model.SiteSettings{
		Headline:      body.Headline,
		AboutContent:  body.AboutContent,
		AboutMediaURL: strings.TrimSpace(body.AboutMediaURL),
		AboutVideoURL: strings.TrimSpace(body.AboutVideoURL),
	}
	if err := s.settings.Save(r.Context(), settings); err != nil {
		internalError(w, "save settings", err)
		return
	}

	writeJSON(w, http.StatusOK, newSettingsBody(settings))
}

const dateOnly = "2006-01-02"

// parseCreatedAt reads the created_at field of the admin form. A full
// RFC 3339 timestamp is taken as is. A bare date keeps the time of day of
// existing, or midnight UTC for a new post. An empty value keeps existing.
// Anything else, or an empty value for a new post, means now.
func parseCreatedAt(raw string, existing, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)

	if raw == "" {
		if !existing.IsZero() {
			return existing
		}
		return now
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}

	if d, err := time.Parse(dateOnly, raw); err == nil {
		if existing.IsZero() {
			return d
		}
		e := existing.UTC()
		return time.Date(d.Year(), d.Month(), d.Day(), e.Hour(), e.Minute(), e.Second(), e.Nanosecond(), time.UTC)
	}

	return now
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] failed to encode response: %v", err)
	}
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("[ERROR] failed to %s: %v", op, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
