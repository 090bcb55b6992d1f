// Package postgres is the record store used when DB_BACKEND=postgres.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/store"
)

type recordRow struct {
	Seq          int64  `gorm:"primaryKey;autoIncrement"`
	ID           string `gorm:"column:id;uniqueIndex;not null"`
	Name         *string
	AadharNumber *string `gorm:"index"`
	DOB          *string `gorm:"column:dob"`
	Gender       *string
	Address      *string
	PinCode      string `gorm:"not null;default:''"`
	FatherName   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (recordRow) TableName() string { return "records" }

type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the records table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get db from gorm: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate records table: %w", err)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, rec domain.ExtractedRecord) (*domain.SavedRecord, error) {
	row := fromDomain(rec)
	row.ID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	saved := toDomain(row)
	return &saved, nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]domain.SavedRecord, int, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&recordRow{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	var rows []recordRow
	if err := listQuery(s.db.WithContext(ctx), limit, offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]domain.SavedRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, toDomain(r))
	}
	return records, int(total), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&recordRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func listQuery(db *gorm.DB, limit, offset int) *gorm.DB {
	return db.Model(&recordRow{}).Order("seq DESC").Limit(limit).Offset(offset)
}

func fromDomain(rec domain.ExtractedRecord) recordRow {
	rec = rec.Clone()
	return recordRow{
		Name:         rec.Name,
		AadharNumber: rec.AadharNumber,
		DOB:          rec.DOB,
		Gender:       rec.Gender,
		Address:      rec.Address,
		PinCode:      rec.PinCode,
		FatherName:   rec.FatherName,
	}
}

func toDomain(r recordRow) domain.SavedRecord {
	return domain.SavedRecord{
		ExtractedRecord: domain.ExtractedRecord{
			Name:         r.Name,
			AadharNumber: r.AadharNumber,
			DOB:          r.DOB,
			Gender:       r.Gender,
			Address:      r.Address,
			PinCode:      r.PinCode,
			FatherName:   r.FatherName,
		},
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
