package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mortgageos/internal/core/services"
	"mortgageos/internal/pkg/response"
)

// AdminHandler serves the audit trail, system settings and dashboard stats
type AdminHandler struct {
	auditService     *services.AuditService
	settingsService  *services.SettingsService
	dashboardService *services.DashboardService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(audit *services.AuditService, settings *services.SettingsService, dashboard *services.DashboardService) *AdminHandler {
	return &AdminHandler{
		auditService:     audit,
		settingsService:  settings,
		dashboardService: dashboard,
	}
}

// ListAudit returns the audit trail, newest first
// @Summary Audit log
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param action query string false "Action filter"
// @Param userId query string false "Actor filter"
// @Success 200 {object} response.Response{data=[]models.AuditLogResponse}
// @Router /audit [get]
func (h *AdminHandler) ListAudit(c *fiber.Ctx) error {
	entries, page, err := h.auditService.List(c.UserContext(), services.AuditListInput{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Action: strings.TrimSpace(c.Query("action")),
		UserID: strings.TrimSpace(c.Query("userId")),
	})
	if err != nil {
		return err
	}
	return response.Paginated(c, entries, page)
}

// ListSettings returns all system settings ordered by key
// @Summary List settings
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.SystemConfig}
// @Router /settings [get]
func (h *AdminHandler) ListSettings(c *fiber.Ctx) error {
	settings, err := h.settingsService.List(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, "", settings)
}

// UpsertSetting creates or replaces one setting
// @Summary Upsert setting
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpsertSettingInput true "Setting"
// @Success 200 {object} response.Response{data=models.SystemConfig}
// @Router /settings [put]
func (h *AdminHandler) UpsertSetting(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.UpsertSettingInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	setting, err := h.settingsService.Upsert(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return response.Success(c, "Setting saved", setting)
}

// Stats returns platform totals
// @Summary Admin stats
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=services.AdminStats}
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.dashboardService.AdminStats(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, "", stats)
}
