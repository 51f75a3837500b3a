package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reqcraft/internal/domain"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

// SaveRun stores a finished run and returns its generated ID.
func (d *Database) SaveRun(ctx context.Context, run domain.Run) (string, error) {
	if strings.TrimSpace(run.TestCases) == "" {
		return "", errors.New("test cases are empty")
	}

	id := uuid.NewString()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `insert into runs
	(id, product_description, user_description, source, test_cases, skipped_chunks, created_at)
	values (?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		id,
		strings.TrimSpace(run.ProductDescription),
		strings.TrimSpace(run.UserDescription),
		strings.TrimSpace(run.Source),
		run.TestCases,
		run.SkippedChunks,
		createdAt.UTC().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	return id, nil
}

func (d *Database) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRunNotFound
	}

	query := `select id, product_description, user_description, source, test_cases, skipped_chunks, created_at
	from runs
	where id = ?`

	var (
		run       domain.Run
		createdAt int64
	)

	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.ProductDescription,
		&run.UserDescription,
		&run.Source,
		&run.TestCases,
		&run.SkippedChunks,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	run.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &run, nil
}

// DeleteRunsBefore removes runs created before cutoff and returns how many.
func (d *Database) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, "delete from runs where created_at < ?", cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}
