package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type sessionRecord struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Document  string    `gorm:"column:document;type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (sessionRecord) TableName() string { return "session_records" }

// Postgres upserts each record into session_records keyed by its storage key.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres storage: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("postgres storage: migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Put(ctx context.Context, key string, body []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	rec := sessionRecord{Key: key, Document: string(body), UpdatedAt: time.Now().UTC()}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("postgres storage: put %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
