package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/audit"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

const migrateLockID int64 = 51220251

// GormStore implements Store (and audit.Log) using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&PhotoModel{}, &ModerationAuditModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreatePhoto inserts a photo; the database assigns the id.
func (s *GormStore) CreatePhoto(ctx context.Context, p domain.Photo) (domain.Photo, error) {
	model := photoToModel(p)
	model.ID = 0
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Photo{}, err
	}
	return photoFromModel(model), nil
}

// GetPhoto returns one photo by id.
func (s *GormStore) GetPhoto(ctx context.Context, id int64) (domain.Photo, bool, error) {
	var model PhotoModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Photo{}, false, nil
		}
		return domain.Photo{}, false, err
	}
	return photoFromModel(model), true, nil
}

// ListApproved returns a page of approved photos, newest first.
func (s *GormStore) ListApproved(ctx context.Context, tag domain.EventTag, limit, offset int) ([]domain.Photo, int, error) {
	query := s.db.WithContext(ctx).Model(&PhotoModel{}).Where("is_approved = ?", true)
	if tag != "" {
		query = query.Where("event_tag = ?", string(tag))
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []PhotoModel
	if err := query.Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	return photosFromModels(models), int(total), nil
}

// ListPending returns photos awaiting review, oldest first.
func (s *GormStore) ListPending(ctx context.Context) ([]domain.Photo, error) {
	var models []PhotoModel
	if err := s.db.WithContext(ctx).
		Where("is_approved = ?", false).
		Order("timestamp ASC").Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return photosFromModels(models), nil
}

// ApprovePhoto marks id approved. Postgres counts matched rows, so
// re-approving reports found.
func (s *GormStore) ApprovePhoto(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&PhotoModel{}).Where("id = ?", id).Update("is_approved", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateCaption rewrites name and message only.
func (s *GormStore) UpdateCaption(ctx context.Context, id int64, name, message string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&PhotoModel{}).Where("id = ?", id).Updates(map[string]any{
		"name":    name,
		"message": message,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeletePhoto removes id and returns the deleted row.
func (s *GormStore) DeletePhoto(ctx context.Context, id int64) (domain.Photo, bool, error) {
	return s.deleteWhere(ctx, "id = ?", id)
}

// DeleteApprovedPhoto removes id only while it is approved.
func (s *GormStore) DeleteApprovedPhoto(ctx context.Context, id int64) (domain.Photo, bool, error) {
	return s.deleteWhere(ctx, "id = ? AND is_approved = ?", id, true)
}

func (s *GormStore) deleteWhere(ctx context.Context, query string, args ...any) (domain.Photo, bool, error) {
	var model PhotoModel
	res := s.db.WithContext(ctx).Clauses(clause.Returning{}).Where(query, args...).Delete(&model)
	if res.Error != nil {
		return domain.Photo{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Photo{}, false, nil
	}
	return photoFromModel(model), true, nil
}

// Record stores a moderation audit entry.
func (s *GormStore) Record(ctx context.Context, e audit.Entry) error {
	verdicts, err := json.Marshal(map[string]domain.Assessment{"text": e.Text, "image": e.Image})
	if err != nil {
		return fmt.Errorf("encode verdicts: %w", err)
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&ModerationAuditModel{
		PhotoID:   e.PhotoID,
		EventTag:  string(e.EventTag),
		Overall:   string(e.Overall),
		Outcome:   string(e.Outcome),
		Verdicts:  datatypes.JSON(verdicts),
		CreatedAt: at,
	}).Error
}

// Recent returns the latest audit entries, newest first.
func (s *GormStore) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []ModerationAuditModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]audit.Entry, 0, len(models))
	for _, m := range models {
		var verdicts map[string]domain.Assessment
		_ = json.Unmarshal(m.Verdicts, &verdicts)
		out = append(out, audit.Entry{
			PhotoID:  m.PhotoID,
			EventTag: domain.EventTag(m.EventTag),
			Text:     verdicts["text"],
			Image:    verdicts["image"],
			Overall:  domain.Verdict(m.Overall),
			Outcome:  audit.Outcome(m.Outcome),
			At:       m.CreatedAt,
		})
	}
	return out, nil
}

func photoToModel(p domain.Photo) PhotoModel {
	return PhotoModel{
		ID:         p.ID,
		ObjectKey:  p.ObjectKey,
		Name:       p.Name,
		Message:    p.Message,
		EventTag:   string(p.EventTag),
		IsApproved: p.IsApproved,
		Timestamp:  p.Timestamp.UTC(),
		TakenAt:    p.TakenAt.UTC(),
		Width:      p.Width,
		Height:     p.Height,
		TokenHash:  p.TokenHash,
	}
}

func photoFromModel(m PhotoModel) domain.Photo {
	return domain.Photo{
		ID:         m.ID,
		ObjectKey:  m.ObjectKey,
		Name:       m.Name,
		Message:    m.Message,
		EventTag:   domain.EventTag(m.EventTag),
		IsApproved: m.IsApproved,
		Timestamp:  m.Timestamp.UTC(),
		TakenAt:    m.TakenAt.UTC(),
		Width:      m.Width,
		Height:     m.Height,
		TokenHash:  m.TokenHash,
	}
}

func photosFromModels(models []PhotoModel) []domain.Photo {
	res := make([]domain.Photo, 0, len(models))
	for _, m := range models {
		res = append(res, photoFromModel(m))
	}
	return res
}
