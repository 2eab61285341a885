package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"mortgageos/internal/core/domain"
)

// ErrAuditImmutable is returned by the audit model hooks on update or delete
var ErrAuditImmutable = errors.New("audit log entries are immutable")

// ============================================================
// Users
// ============================================================

// User represents users table
type User struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	Email          string            `gorm:"uniqueIndex;size:191;not null" json:"email"`
	FirstName      string            `gorm:"size:100" json:"firstName"`
	LastName       string            `gorm:"size:100" json:"lastName"`
	PasswordHash   string            `gorm:"size:255;not null" json:"-"`
	Role           domain.Role       `gorm:"size:20;not null;default:'BORROWER';index" json:"role"`
	Status         domain.UserStatus `gorm:"size:30;not null;default:'ACTIVE'" json:"status"`
	FailedAttempts int               `gorm:"not null;default:0" json:"failedAttempts"`
	LastLoginAt    *time.Time        `json:"lastLoginAt"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = domain.NormalizeEmail(u.Email)
	return nil
}

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserResponse DTO
type UserResponse struct {
	ID             string            `json:"id"`
	Email          string            `json:"email"`
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	Role           domain.Role       `json:"role"`
	Status         domain.UserStatus `json:"status"`
	FailedAttempts int               `json:"failedAttempts"`
	LastLoginAt    *time.Time        `json:"lastLoginAt"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		Status:         u.Status,
		FailedAttempts: u.FailedAttempts,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}

// ============================================================
// Loan applications
// ============================================================

// LoanApplication represents loan_applications table
type LoanApplication struct {
	ID              string            `gorm:"primaryKey;size:36" json:"id"`
	UserID          string            `gorm:"size:36;not null;index" json:"userId"`
	LoanType        domain.LoanType   `gorm:"size:20;not null" json:"loanType"`
	PropertyState   string            `gorm:"size:2" json:"propertyState"`
	PropertyAddress string            `gorm:"size:255" json:"propertyAddress"`
	PropertyCity    string            `gorm:"size:100" json:"propertyCity"`
	PropertyZip     string            `gorm:"size:10" json:"propertyZip"`
	EstimatedValue  *float64          `gorm:"type:decimal(14,2)" json:"estimatedValue"`
	LoanAmount      *float64          `gorm:"type:decimal(14,2)" json:"loanAmount"`
	FormData        domain.FormData   `gorm:"serializer:json;type:text" json:"formData"`
	Status          domain.LoanStatus `gorm:"size:30;not null;default:'DRAFT';index" json:"status"`
	SubmittedAt     *time.Time        `json:"submittedAt"`
	CreatedAt       time.Time         `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	// DocumentCount is filled by list queries
	DocumentCount int64 `gorm:"-:all" json:"-"`
}

func (LoanApplication) TableName() string {
	return "loan_applications"
}

func (l *LoanApplication) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// BorrowerSummary is the owner block embedded in staff views
type BorrowerSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoanResponse DTO
type LoanResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	LoanType        domain.LoanType   `json:"loanType"`
	PropertyState   string            `json:"propertyState"`
	PropertyAddress string            `json:"propertyAddress,omitempty"`
	PropertyCity    string            `json:"propertyCity,omitempty"`
	PropertyZip     string            `json:"propertyZip,omitempty"`
	EstimatedValue  *float64          `json:"estimatedValue"`
	LoanAmount      *float64          `json:"loanAmount"`
	FormData        domain.FormData   `json:"formData"`
	Status          domain.LoanStatus `json:"status"`
	SubmittedAt     *time.Time        `json:"submittedAt"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	DocumentCount   int64             `json:"documentCount"`
	Borrower        *BorrowerSummary  `json:"borrower,omitempty"`
}

func (l *LoanApplication) ToResponse() *LoanResponse {
	resp := &LoanResponse{
		ID:              l.ID,
		UserID:          l.UserID,
		LoanType:        l.LoanType,
		PropertyState:   l.PropertyState,
		PropertyAddress: l.PropertyAddress,
		PropertyCity:    l.PropertyCity,
		PropertyZip:     l.PropertyZip,
		EstimatedValue:  l.EstimatedValue,
		LoanAmount:      l.LoanAmount,
		FormData:        l.FormData,
		Status:          l.Status,
		SubmittedAt:     l.SubmittedAt,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
		DocumentCount:   l.DocumentCount,
	}
	if l.User != nil {
		resp.Borrower = &BorrowerSummary{
			ID:        l.User.ID,
			Email:     l.User.Email,
			FirstName: l.User.FirstName,
			LastName:  l.User.LastName,
		}
	}
	return resp
}

// ============================================================
// Documents & notes
// ============================================================

// Document represents documents table. Only metadata and the store URL are kept.
type Document struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;not null;index" json:"userId"`
	LoanID      string    `gorm:"size:36;not null;index" json:"loanId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Type        string    `gorm:"size:50;not null;default:'GENERAL'" json:"type"`
	ContentType string    `gorm:"size:100" json:"contentType"`
	Size        int64     `gorm:"not null" json:"size"`
	URL         string    `gorm:"size:500;not null" json:"url"`
	Status      string    `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`

	User *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Loan *LoanApplication `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// LoanNote represents loan_notes table
type LoanNote struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	LoanID    string    `gorm:"size:36;not null;index" json:"loanId"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Author *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Loan   *LoanApplication `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"-"`
}

func (LoanNote) TableName() string {
	return "loan_notes"
}

func (n *LoanNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// NoteResponse DTO
type NoteResponse struct {
	ID         string    `json:"id"`
	LoanID     string    `json:"loanId"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (n *LoanNote) ToResponse() *NoteResponse {
	resp := &NoteResponse{
		ID:        n.ID,
		LoanID:    n.LoanID,
		Content:   n.Content,
		AuthorID:  n.UserID,
		CreatedAt: n.CreatedAt,
	}
	if n.Author != nil {
		resp.AuthorName = n.Author.FullName()
	}
	return resp
}

// ============================================================
// Audit trail
// ============================================================

// DeletedUserLabel is shown for audit entries whose actor no longer exists
const DeletedUserLabel = "Deleted user"

// AuditLog represents audit_logs table. Rows are append-only.
type AuditLog struct {
	ID        string             `gorm:"primaryKey;size:26" json:"id"`
	UserID    *string            `gorm:"size:36;index" json:"userId"`
	Action    domain.AuditAction `gorm:"size:40;not null;index" json:"action"`
	Metadata  domain.Metadata    `gorm:"serializer:json;type:text" json:"metadata"`
	IPAddress string             `gorm:"size:64" json:"ipAddress"`
	CreatedAt time.Time          `gorm:"autoCreateTime;index" json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	return nil
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// AuditLogResponse DTO
type AuditLogResponse struct {
	ID        string             `json:"id"`
	UserID    *string            `json:"userId"`
	UserName  string             `json:"userName"`
	UserEmail string             `json:"userEmail,omitempty"`
	Action    domain.AuditAction `json:"action"`
	Metadata  domain.Metadata    `json:"metadata"`
	IPAddress string             `json:"ipAddress"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (a *AuditLog) ToResponse() *AuditLogResponse {
	resp := &AuditLogResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Action:    a.Action,
		Metadata:  a.Metadata,
		IPAddress: a.IPAddress,
		CreatedAt: a.CreatedAt,
	}
	switch {
	case a.User != nil:
		resp.UserName = a.User.FullName()
		resp.UserEmail = a.User.Email
	case a.UserID == nil:
		resp.UserName = DeletedUserLabel
	}
	return resp
}

// ============================================================
// System configuration
// ============================================================

// SystemConfig represents system_configs table
type SystemConfig struct {
	Key         string    `gorm:"column:config_key;primaryKey;size:100" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Description string    `gorm:"size:255" json:"description"`
	UpdatedBy   *string   `gorm:"size:36" json:"updatedBy"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (SystemConfig) TableName() string {
	return "system_configs"
}

// AllModels returns every model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&LoanApplication{},
		&Document{},
		&LoanNote{},
		&AuditLog{},
		&SystemConfig{},
	}
}
