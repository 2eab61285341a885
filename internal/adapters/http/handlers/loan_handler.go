package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mortgageos/internal/core/services"
	"mortgageos/internal/pkg/response"
)

// LoanHandler handles loan application endpoints
type LoanHandler struct {
	loanService     *services.LoanService
	documentService *services.DocumentService
	noteService     *services.NoteService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loans *services.LoanService, docs *services.DocumentService, notes *services.NoteService) *LoanHandler {
	return &LoanHandler{
		loanService:     loans,
		documentService: docs,
		noteService:     notes,
	}
}

// ListMine returns the borrower's applications
// @Summary List my applications
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.LoanResponse}
// @Router /loans [get]
func (h *LoanHandler) ListMine(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	loans, err := h.loanService.ListMine(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return response.Success(c, "", loans)
}

// Create starts a draft application
// @Summary Create application
// @Description Starts a DRAFT application. One non-terminal application per borrower.
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateLoanInput true "Application"
// @Success 201 {object} response.Response{data=models.LoanResponse}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Create(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.CreateLoanInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	loan, err := h.loanService.Create(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return response.Created(c, "Application created", loan)
}

// Get returns one application with its documents
// @Summary Get application
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response{data=services.LoanDetail}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	loan, err := h.loanService.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, "", loan)
}

// Update patches application content
// @Summary Update application
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param body body services.UpdateLoanInput true "Changes"
// @Success 200 {object} response.Response{data=models.LoanResponse}
// @Router /loans/{id} [put]
func (h *LoanHandler) Update(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.UpdateLoanInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	loan, err := h.loanService.UpdateContent(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return err
	}
	return response.Success(c, "Application updated", loan)
}

// Submit moves a draft to SUBMITTED
// @Summary Submit application
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response{data=models.LoanResponse}
// @Failure 400 {object} response.Response
// @Router /loans/{id}/submit [post]
func (h *LoanHandler) Submit(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	loan, err := h.loanService.Submit(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, "Application submitted", loan)
}

// Withdraw lets the applicant abandon a non-final application
// @Summary Withdraw application
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response{data=models.LoanResponse}
// @Router /loans/{id}/withdraw [post]
func (h *LoanHandler) Withdraw(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	loan, err := h.loanService.Withdraw(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, "Application withdrawn", loan)
}

// SetStatus applies a staff status change
// @Summary Change application status
// @Tags Lender
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param body body services.SetStatusInput true "Target status"
// @Success 200 {object} response.Response{data=models.LoanResponse}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{id}/status [put]
func (h *LoanHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.SetStatusInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	loan, err := h.loanService.SetStatus(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return err
	}
	return response.Success(c, "Status updated", loan)
}

// Risk returns the debt-to-income assessment
// @Summary Risk assessment
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response{data=domain.RiskAssessment}
// @Failure 400 {object} response.Response
// @Router /loans/{id}/risk [get]
func (h *LoanHandler) Risk(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	risk, err := h.loanService.Risk(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, "", risk)
}

// Pipeline lists submitted applications for staff
// @Summary Lender pipeline
// @Tags Lender
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param status query string false "Status filter"
// @Param search query string false "Borrower name or email"
// @Success 200 {object} response.Response{data=[]models.LoanResponse}
// @Router /lender/loans [get]
func (h *LoanHandler) Pipeline(c *fiber.Ctx) error {
	loans, page, err := h.loanService.ListPipeline(c.UserContext(), services.PipelineInput{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Status: strings.TrimSpace(c.Query("status")),
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		return err
	}
	return response.Paginated(c, loans, page)
}

// ListDocuments returns a loan's documents
// @Summary List documents
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response{data=[]models.Document}
// @Router /loans/{id}/documents [get]
func (h *LoanHandler) ListDocuments(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	docs, err := h.documentService.List(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, "", docs)
}

// UploadDocument stores a multipart file against a loan
// @Summary Upload document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param file formData file true "Document (max 10MB)"
// @Param docType formData string false "Document type" default(GENERAL)
// @Success 201 {object} response.Response{data=models.Document}
// @Failure 400 {object} response.Response
// @Failure 413 {object} response.Response
// @Router /loans/{id}/documents [post]
func (h *LoanHandler) UploadDocument(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return services.ErrNoFile
	}
	f, err := fh.Open()
	if err != nil {
		return services.ErrNoFile.Wrap(err)
	}
	defer f.Close()

	doc, err := h.documentService.Upload(c.UserContext(), actor, c.Params("id"), services.UploadInput{
		Name:        fh.Filename,
		Type:        strings.TrimSpace(c.FormValue("docType")),
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return err
	}
	return response.Created(c, "Document uploaded", doc)
}

// ListNotes returns staff notes, newest first
// @Summary List notes
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response{data=[]models.NoteResponse}
// @Router /loans/{id}/notes [get]
func (h *LoanHandler) ListNotes(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	notes, err := h.noteService.List(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, "", notes)
}

// CreateNote adds a staff note
// @Summary Add note
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param body body services.CreateNoteInput true "Note"
// @Success 201 {object} response.Response{data=models.NoteResponse}
// @Router /loans/{id}/notes [post]
func (h *LoanHandler) CreateNote(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.CreateNoteInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	note, err := h.noteService.Create(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return err
	}
	return response.Created(c, "Note added", note)
}
