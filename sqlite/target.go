package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fwojciec/stockwatch"
	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3"
)

// Compile-time interface verification.
var _ stockwatch.TargetService = (*TargetService)(nil)

// TargetService implements stockwatch.TargetService using SQLite.
type TargetService struct {
	db *DB
}

// NewTargetService creates a new TargetService.
func NewTargetService(db *DB) *TargetService {
	return &TargetService{db: db}
}

// CreateTarget creates a new target.
func (s *TargetService) CreateTarget(ctx context.Context, target *stockwatch.Target) error {
	target.Normalize()
	if err := target.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM targets WHERE url = ?", target.URL).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return stockwatch.Errorf(stockwatch.ECONFLICT, "target %s is already watched", target.URL)
	}

	target.ID = uuid.New().String()
	target.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO targets (id, name, url, note, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, target.ID, target.Name, target.URL, target.Note, target.CreatedAt.Format(time.RFC3339))
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
		return stockwatch.Errorf(stockwatch.ECONFLICT, "target %s is already watched", target.URL)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FindTargetByID retrieves a target by ID.
func (s *TargetService) FindTargetByID(ctx context.Context, id string) (*stockwatch.Target, error) {
	var target stockwatch.Target
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, note, created_at
		FROM targets
		WHERE id = ?
	`, id).Scan(&target.ID, &target.Name, &target.URL, &target.Note, &createdAt)

	if err == sql.ErrNoRows {
		return nil, stockwatch.Errorf(stockwatch.ENOTFOUND, "target not found")
	}
	if err != nil {
		return nil, err
	}

	target.CreatedAt, err = parseRFC3339(createdAt, "created_at")
	if err != nil {
		return nil, err
	}

	return &target, nil
}

// FindTargets retrieves targets matching the filter, oldest first.
func (s *TargetService) FindTargets(ctx context.Context, filter stockwatch.TargetFilter) ([]*stockwatch.Target, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, name, url, note, created_at FROM targets WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.URL != nil {
		query.WriteString(" AND url = ?")
		args = append(args, strings.TrimSpace(*filter.URL))
	}

	query.WriteString(" ORDER BY created_at ASC, rowid ASC")

	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := make([]*stockwatch.Target, 0)
	for rows.Next() {
		var target stockwatch.Target
		var createdAt string

		if err := rows.Scan(&target.ID, &target.Name, &target.URL, &target.Note, &createdAt); err != nil {
			return nil, err
		}

		target.CreatedAt, err = parseRFC3339(createdAt, "created_at")
		if err != nil {
			return nil, err
		}

		targets = append(targets, &target)
	}

	return targets, rows.Err()
}

// DeleteTarget permanently removes a target.
func (s *TargetService) DeleteTarget(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM targets WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return stockwatch.Errorf(stockwatch.ENOTFOUND, "target not found")
	}

	return nil
}
