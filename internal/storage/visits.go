package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const defaultVisitLimit = 100

// RecordVisit stores a visit to url. A repeat visit bumps the count and
// last-visit time, and replaces the title when a new one is given.
func (s *SQLiteStore) RecordVisit(ctx context.Context, url, title string) (*Visit, error) {
	if url == "" {
		return nil, errors.New("url is required")
	}

	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visits (id, url, title, visit_count, first_visit_unix_ms, last_visit_unix_ms)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			visit_count = visit_count + 1,
			last_visit_unix_ms = excluded.last_visit_unix_ms,
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE visits.title END
	`, uuid.NewString(), url, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	row := s.db.QueryRowContext(ctx, visitSelect+` WHERE url = ?`, url)
	return scanVisit(row)
}

// GetVisit returns the visit with id.
func (s *SQLiteStore) GetVisit(ctx context.Context, id string) (*Visit, error) {
	row := s.db.QueryRowContext(ctx, visitSelect+` WHERE id = ?`, id)
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	return v, err
}

// QueryVisits returns visits matching q, most recent first.
func (s *SQLiteStore) QueryVisits(ctx context.Context, q VisitQuery) ([]Visit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultVisitLimit
	}

	query := visitSelect
	var args []any
	if q.Substring != "" {
		query += ` WHERE url LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\'`
		pattern := "%" + escapeLike(q.Substring) + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY last_visit_unix_ms DESC, id LIMIT ?`
	args = append(args, limit)

	return s.queryVisits(ctx, query, args...)
}

// TopSites returns the most visited URLs.
func (s *SQLiteStore) TopSites(ctx context.Context, limit int) ([]Visit, error) {
	if limit <= 0 {
		limit = defaultVisitLimit
	}
	return s.queryVisits(ctx,
		visitSelect+` ORDER BY visit_count DESC, last_visit_unix_ms DESC, id LIMIT ?`, limit)
}

// DeleteVisit removes one visit.
func (s *SQLiteStore) DeleteVisit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}
	if n == 0 {
		return ErrVisitNotFound
	}
	return nil
}

// ClearVisits removes all visits and returns how many there were.
func (s *SQLiteStore) ClearVisits(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear visits: %w", err)
	}
	return res.RowsAffected()
}

const visitSelect = `
	SELECT id, url, title, visit_count, first_visit_unix_ms, last_visit_unix_ms
	FROM visits`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*Visit, error) {
	var v Visit
	if err := row.Scan(&v.ID, &v.URL, &v.Title, &v.VisitCount, &v.FirstVisitUnixMs, &v.LastVisitUnixMs); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLiteStore) queryVisits(ctx context.Context, query string, args ...any) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *v)
	}
	return visits, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
