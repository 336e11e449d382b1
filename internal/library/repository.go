package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/db"
)

type Repository interface {
	CreateVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetVideoByPath(ctx context.Context, path string) (*Video, error)
	FindVideo(ctx context.Context, name string, size int64) (*Video, error)
	ListVideos(ctx context.Context, query string) ([]*Video, error)
	UpdateVideoDuration(ctx context.Context, id string, seconds float64) error
	UpdateVideoFile(ctx context.Context, v *Video) error
	DeleteVideos(ctx context.Context, ids []string) (int64, error)
	PruneVideos(ctx context.Context, keep int) (int64, error)
	CountVideos(ctx context.Context) (int, error)

	CreateSearch(ctx context.Context, rec *SearchRecord) error
	UpdateSearch(ctx context.Context, rec *SearchRecord) error
	GetSearch(ctx context.Context, id string) (*SearchRecord, error)
	ListSearches(ctx context.Context, videoID string, limit int) ([]*SearchRecord, error)
	LatestFoundSearch(ctx context.Context) (*SearchRecord, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
	tx func(context.Context, func(*sql.Tx) error) error
}

func NewRepository(database *db.DB) *SQLiteRepository {
	return &SQLiteRepository{db: database.Conn(), tx: database.WithTx}
}

const videoColumns = `id, name, path, size, type, duration_seconds, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) CreateVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, name, path, size, type, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.Name, v.Path, v.Size, v.Type, nullFloat(v.DurationSeconds), v.CreatedAt.UTC().Format(time.RFC3339))
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrAlreadySaved, v.Path)
	}
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideoRow(row)
}

func (r *SQLiteRepository) GetVideoByPath(ctx context.Context, path string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE path = ?`, path)
	return scanVideoRow(row)
}

// FindVideo looks a video up by the name and size pair used for duplicate
// detection.
func (r *SQLiteRepository) FindVideo(ctx context.Context, name string, size int64) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE name = ? AND size = ?
		ORDER BY created_at DESC LIMIT 1
	`, name, size)
	return scanVideoRow(row)
}

func scanVideoRow(row *sql.Row) (*Video, error) {
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func scanVideo(s scanner) (*Video, error) {
	var v Video
	var duration sql.NullFloat64
	var createdAt string

	if err := s.Scan(&v.ID, &v.Name, &v.Path, &v.Size, &v.Type, &duration, &createdAt); err != nil {
		return nil, err
	}
	v.DurationSeconds = duration.Float64
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}

// ListVideos returns the library newest first. A non-empty query keeps only
// names containing it, ignoring case.
func (r *SQLiteRepository) ListVideos(ctx context.Context, query string) ([]*Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos`
	var args []any
	if query = strings.TrimSpace(query); query != "" {
		q += ` WHERE instr(lower(name), lower(?)) > 0`
		args = append(args, query)
	}
	q += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *SQLiteRepository) UpdateVideoDuration(ctx context.Context, id string, seconds float64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE videos SET duration_seconds = ? WHERE id = ?", nullFloat(seconds), id)
	return err
}

// UpdateVideoFile stores the size, type and duration of a file that changed
// on disk since it was saved.
func (r *SQLiteRepository) UpdateVideoFile(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET size = ?, type = ?, duration_seconds = ? WHERE id = ?
	`, v.Size, v.Type, nullFloat(v.DurationSeconds), v.ID)
	return err
}

// DeleteVideos removes all ids in a single transaction. Search history of the
// removed videos goes with them.
func (r *SQLiteRepository) DeleteVideos(ctx context.Context, ids []string) (int64, error) {
	var removed int64
	err := r.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "DELETE FROM videos WHERE id = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// PruneVideos keeps the keep most recent videos and deletes the rest.
func (r *SQLiteRepository) PruneVideos(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM videos WHERE id NOT IN (
			SELECT id FROM videos ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&count)
	return count, err
}

const searchColumns = `id, video_id, description, status, timestamp_raw, end_timestamp_raw, target_seconds,
	similarity, category, category_score, message, error, created_at, updated_at`

func (r *SQLiteRepository) CreateSearch(ctx context.Context, s *SearchRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO searches (`+searchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.VideoID, s.Description, s.Status,
		nullString(s.TimestampRaw), nullString(s.EndTimestampRaw), nullInt(s.TargetSeconds),
		nullFloat(s.Similarity), nullString(s.Category), nullFloat(s.CategoryScore),
		nullString(s.Message), nullString(s.Error),
		s.CreatedAt.UTC().Format(time.RFC3339), s.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) UpdateSearch(ctx context.Context, s *SearchRecord) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE searches SET status = ?, timestamp_raw = ?, end_timestamp_raw = ?, target_seconds = ?,
			similarity = ?, category = ?, category_score = ?, message = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, s.Status, nullString(s.TimestampRaw), nullString(s.EndTimestampRaw), nullInt(s.TargetSeconds),
		nullFloat(s.Similarity), nullString(s.Category), nullFloat(s.CategoryScore),
		nullString(s.Message), nullString(s.Error), s.UpdatedAt.UTC().Format(time.RFC3339), s.ID)
	return err
}

func (r *SQLiteRepository) GetSearch(ctx context.Context, id string) (*SearchRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+searchColumns+` FROM searches WHERE id = ?`, id)
	s, err := scanSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListSearches returns history newest first, optionally for one video.
func (r *SQLiteRepository) ListSearches(ctx context.Context, videoID string, limit int) ([]*SearchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + searchColumns + ` FROM searches`
	var args []any
	if videoID != "" {
		q += ` WHERE video_id = ?`
		args = append(args, videoID)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SearchRecord
	for rows.Next() {
		s, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) LatestFoundSearch(ctx context.Context) (*SearchRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+searchColumns+` FROM searches
		WHERE status = ? AND target_seconds IS NOT NULL
		ORDER BY updated_at DESC, rowid DESC LIMIT 1
	`, SearchStatusFound)
	s, err := scanSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func scanSearch(sc scanner) (*SearchRecord, error) {
	var s SearchRecord
	var ts, endTS, category, message, errMsg sql.NullString
	var target sql.NullInt64
	var similarity, categoryScore sql.NullFloat64
	var createdAt, updatedAt string

	err := sc.Scan(&s.ID, &s.VideoID, &s.Description, &s.Status, &ts, &endTS, &target,
		&similarity, &category, &categoryScore, &message, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.TimestampRaw = ts.String
	s.EndTimestampRaw = endTS.String
	if target.Valid {
		v := int(target.Int64)
		s.TargetSeconds = &v
	}
	s.Similarity = similarity.Float64
	s.Category = category.String
	s.CategoryScore = categoryScore.Float64
	s.Message = message.String
	s.Error = errMsg.String
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
