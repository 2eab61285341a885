package services

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/adapters/storage"
	"mortgageos/internal/core/domain"
)

// Document errors
var (
	ErrNoFile       = domain.Validation("No file uploaded")
	ErrFileTooLarge = domain.Validation("File exceeds the 10MB limit")
	ErrFileName     = domain.Validation("Invalid file name")
)

const defaultDocumentType = "GENERAL"

// DocumentService stores borrower documents for a loan
type DocumentService struct {
	tx    repositories.Transactor
	loans repositories.LoanRepository
	docs  repositories.DocumentRepository
	files storage.FileStore
	audit *AuditService
}

// NewDocumentService creates a new document service
func NewDocumentService(
	tx repositories.Transactor,
	loans repositories.LoanRepository,
	docs repositories.DocumentRepository,
	files storage.FileStore,
	audit *AuditService,
) *DocumentService {
	return &DocumentService{tx: tx, loans: loans, docs: docs, files: files, audit: audit}
}

// UploadInput is one uploaded file
type UploadInput struct {
	Name        string
	Type        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload stores the file, then records its metadata. When the metadata
// cannot be persisted the stored file is removed again. Finalized loans
// accept documents from staff only.
func (s *DocumentService) Upload(ctx context.Context, actor domain.Actor, loanID string, input UploadInput) (*models.Document, error) {
	if input.Body == nil || strings.TrimSpace(input.Name) == "" {
		return nil, ErrNoFile
	}
	if input.Size > storage.MaxUploadSize {
		return nil, ErrFileTooLarge
	}
	loan, err := s.accessibleLoan(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}
	if !domain.CanEditContent(actor, loan.Status) {
		return nil, domain.ErrFinalizedLoan
	}

	url, err := s.files.Save(ctx, storage.Object{
		Name:        input.Name,
		ContentType: input.ContentType,
		Size:        input.Size,
		Body:        input.Body,
	})
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return nil, ErrFileTooLarge
	case errors.Is(err, storage.ErrInvalidName):
		return nil, ErrFileName
	case err != nil:
		return nil, err
	}

	docType := strings.ToUpper(strings.TrimSpace(input.Type))
	if docType == "" {
		docType = defaultDocumentType
	}
	doc := &models.Document{
		UserID:      actor.ID,
		LoanID:      loanID,
		Name:        input.Name,
		Type:        docType,
		ContentType: input.ContentType,
		Size:        input.Size,
		URL:         url,
		Status:      "PENDING",
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.docs.Create(ctx, doc); err != nil {
			return err
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditDocumentUpload, domain.Metadata{
			"docId":  doc.ID,
			"loanId": loanID,
			"name":   doc.Name,
		})
	})
	if err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), url); delErr != nil {
			log.Printf("⚠️ Could not remove orphaned upload %s: %v", url, delErr)
		}
		return nil, err
	}

	log.Printf("📄 Document %s uploaded to loan %s", doc.ID, loanID)
	return doc, nil
}

// List returns the documents attached to a loan
func (s *DocumentService) List(ctx context.Context, actor domain.Actor, loanID string) ([]*models.Document, error) {
	if _, err := s.accessibleLoan(ctx, actor, loanID); err != nil {
		return nil, err
	}
	docs, err := s.docs.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	return docs, nil
}

func (s *DocumentService) accessibleLoan(ctx context.Context, actor domain.Actor, loanID string) (*models.LoanApplication, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	if !domain.CanAccessLoan(actor, loan.UserID) {
		return nil, ErrLoanAccess
	}
	return loan, nil
}
