package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/0x0BSoD/constellation/internal/model"
)

type PostSQLStorage struct {
	db *sqlx.DB
}

func NewPostStorage(db *sqlx.DB) *PostSQLStorage {
	return &PostSQLStorage{db: db}
}

// Store inserts post under a freshly generated ID and returns that ID. A
// zero CreatedAt is replaced with the current time. ErrDuplicatePost is
// returned when another post already links to the same ExternalURL.
func (s *PostSQLStorage) Store(ctx context.Context, post model.Post) (string, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.ID = uuid.NewString()

	if _, err := conn.ExecContext(
		ctx,
		conn.Rebind(`INSERT INTO posts (id, title, content, created_at, media_url, video_url, external_url, new_tab)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		post.ID,
		post.Title,
		post.Content,
		normalizeTime(post.CreatedAt),
		nullIfEmpty(post.MediaURL),
		nullIfEmpty(post.VideoURL),
		nullIfEmpty(post.ExternalURL),
		post.NewTab,
	); err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicatePost
		}
		return "", err
	}

	return post.ID, nil
}

func (s *PostSQLStorage) Update(ctx context.Context, post model.Post) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.ExecContext(
		ctx,
		conn.Rebind(`UPDATE posts
				SET title = ?, content = ?, created_at = ?, media_url = ?, video_url = ?, external_url = ?, new_tab = ?
				WHERE id = ?`),
		post.Title,
		post.Content,
		normalizeTime(post.CreatedAt),
		nullIfEmpty(post.MediaURL),
		nullIfEmpty(post.VideoURL),
		nullIfEmpty(post.ExternalURL),
		post.NewTab,
		post.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePost
		}
		return err
	}

	return expectOneRow(res)
}

func (s *PostSQLStorage) Delete(ctx context.Context, id string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, conn.Rebind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return err
	}

	return expectOneRow(res)
}

func (s *PostSQLStorage) PostByID(ctx context.Context, id string) (*model.Post, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var post dbPost
	if err := conn.GetContext(
		ctx,
		&post,
		conn.Rebind(`SELECT id, title, content, created_at, media_url, video_url, external_url, new_tab
				FROM posts WHERE id = ?`),
		id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	p := post.toModel()
	return &p, nil
}

// Posts returns every post ordered by creation time, oldest first when
// ascending is set and newest first otherwise.
func (s *PostSQLStorage) Posts(ctx context.Context, ascending bool) ([]model.Post, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `SELECT id, title, content, created_at, media_url, video_url, external_url, new_tab
			FROM posts ORDER BY created_at DESC, id DESC`
	if ascending {
		query = `SELECT id, title, content, created_at, media_url, video_url, external_url, new_tab
			FROM posts ORDER BY created_at ASC, id ASC`
	}

	var posts []dbPost
	if err := conn.SelectContext(ctx, &posts, query); err != nil {
		return nil, err
	}

	return lo.Map(posts, func(post dbPost, _ int) model.Post { return post.toModel() }), nil
}

func (s *PostSQLStorage) ExistsByExternalURL(ctx context.Context, url string) (bool, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	var count int
	if err := conn.GetContext(
		ctx,
		&count,
		conn.Rebind(`SELECT COUNT(*) FROM posts WHERE external_url = ?`),
		url,
	); err != nil {
		return false, err
	}

	return count > 0, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// normalizeTime stores instants in UTC at the microsecond precision Postgres
// keeps, so both backends hand back the same value.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

type dbPost struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	CreatedAt   time.Time      `db:"created_at"`
	MediaURL    sql.NullString `db:"media_url"`
	VideoURL    sql.NullString `db:"video_url"`
	ExternalURL sql.NullString `db:"external_url"`
	NewTab      bool           `db:"new_tab"`
}

func (p dbPost) toModel() model.Post {
	return model.Post{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		CreatedAt:   p.CreatedAt,
		MediaURL:    p.MediaURL.String,
		VideoURL:    p.VideoURL.String,
		ExternalURL: p.ExternalURL.String,
		NewTab:      p.NewTab,
	}
}
