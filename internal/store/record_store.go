package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/cardscan/internal/domain"
)

// ErrNotFound is returned when no record matches the given ID.
var ErrNotFound = errors.New("record not found")

type RecordStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *RecordStore) Create(ctx context.Context, rec domain.ExtractedRecord) (*domain.SavedRecord, error) {
	saved := &domain.SavedRecord{
		ExtractedRecord: rec.Clone(),
		ID:              uuid.NewString(),
		CreatedAt:       s.now(),
	}
	saved.UpdatedAt = saved.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, name, aadhar_number, dob, gender, address, pin_code, father_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, saved.ID, rec.Name, rec.AadharNumber, rec.DOB, rec.Gender, rec.Address, rec.PinCode, rec.FatherName,
		saved.CreatedAt, saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	return saved, nil
}

func (s *RecordStore) Get(ctx context.Context, id string) (*domain.SavedRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, aadhar_number, dob, gender, address, pin_code, father_name, created_at, updated_at
		FROM records WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first, skipping offset, along
// with the total number of records.
func (s *RecordStore) List(ctx context.Context, limit, offset int) ([]domain.SavedRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, aadhar_number, dob, gender, address, pin_code, father_name, created_at, updated_at
		FROM records ORDER BY seq DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.SavedRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating records: %w", err)
	}
	return records, total, nil
}

func (s *RecordStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.SavedRecord, error) {
	rec := &domain.SavedRecord{}
	err := row.Scan(&rec.ID, &rec.Name, &rec.AadharNumber, &rec.DOB, &rec.Gender, &rec.Address,
		&rec.PinCode, &rec.FatherName, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
