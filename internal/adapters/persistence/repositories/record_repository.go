package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mortgageos/internal/adapters/persistence/models"
)

// ============================================================
// Documents
// ============================================================

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(doc).Error
}

func (r *documentRepository) ListByLoan(ctx context.Context, loanID string) ([]*models.Document, error) {
	var docs []*models.Document
	err := conn(ctx, r.db).Where("loan_id = ?", loanID).Order("created_at DESC").Find(&docs).Error
	return docs, err
}

// ============================================================
// Notes
// ============================================================

type noteRepository struct {
	db *gorm.DB
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Create(ctx context.Context, note *models.LoanNote) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(note).Error
}

func (r *noteRepository) ListByLoan(ctx context.Context, loanID string) ([]*models.LoanNote, error) {
	var notes []*models.LoanNote
	err := conn(ctx, r.db).Preload("Author").Where("loan_id = ?", loanID).Order("created_at DESC").Find(&notes).Error
	return notes, err
}

// ============================================================
// Audit log
// ============================================================

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new append-only audit repository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(entry).Error
}

// List lists entries newest first; count and page come from one transaction
func (r *auditLogRepository) List(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, int64, error) {
	var entries []*models.AuditLog
	var total int64

	err := readConsistent(ctx, r.db, func(tx *gorm.DB) error {
		q := tx.Model(&models.AuditLog{})
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		q = q.Session(&gorm.Session{})

		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Preload("User").
			Order("created_at DESC, id DESC").
			Offset(filter.Offset).
			Limit(filter.Limit).
			Find(&entries).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ============================================================
// System configuration
// ============================================================

type systemConfigRepository struct {
	db *gorm.DB
}

// NewSystemConfigRepository creates a new system config repository
func NewSystemConfigRepository(db *gorm.DB) SystemConfigRepository {
	return &systemConfigRepository{db: db}
}

func (r *systemConfigRepository) List(ctx context.Context) ([]*models.SystemConfig, error) {
	var cfgs []*models.SystemConfig
	err := conn(ctx, r.db).Order("config_key ASC").Find(&cfgs).Error
	return cfgs, err
}

func (r *systemConfigRepository) Get(ctx context.Context, key string) (*models.SystemConfig, error) {
	var cfg models.SystemConfig
	err := conn(ctx, r.db).Where("config_key = ?", key).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert inserts cfg or overwrites the row with the same key
func (r *systemConfigRepository) Upsert(ctx context.Context, cfg *models.SystemConfig) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_by", "updated_at"}),
	}).Create(cfg).Error
}
