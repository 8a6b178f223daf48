package repository

import (
	"context"
	"database/sql"
	"fmt"

	"authentik-admin/internal/domain"
)

// SnapshotRepository persists the directory snapshot in PostgreSQL.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a SnapshotRepository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{
		db: db,
	}
}

// Load returns the snapshot in its stored order.
func (r *SnapshotRepository) Load(ctx context.Context) ([]domain.UserRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT username, full_name, email, invited_by, intro, id_or_pk
		FROM directory_users
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query directory: %w", err)
	}
	defer rows.Close()

	var records []domain.UserRecord
	for rows.Next() {
		rec := domain.UserRecord{IsActive: true}
		if err := rows.Scan(&rec.Username, &rec.FullName, &rec.Email, &rec.InvitedBy, &rec.Intro, &rec.ID); err != nil {
			return nil, fmt.Errorf("failed to scan directory row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	return records, nil
}

// Save replaces the whole table in a single transaction.
func (r *SnapshotRepository) Save(ctx context.Context, records []domain.UserRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM directory_users`); err != nil {
		return fmt.Errorf("failed to clear directory: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO directory_users (position, username, full_name, email, invited_by, intro, id_or_pk)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, i, rec.Username, rec.FullName, rec.Email, rec.InvitedBy, rec.Intro, rec.ID); err != nil {
			return fmt.Errorf("failed to insert %s: %w", rec.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit directory: %w", err)
	}
	return nil
}
