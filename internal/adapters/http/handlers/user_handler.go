package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mortgageos/internal/core/services"
	"mortgageos/internal/pkg/response"
)

// UserHandler handles user management and profile endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing all users (Admin only)
// @Summary List all users
// @Description Get a paginated list of all users (Admin only)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param search query string false "Name or email"
// @Success 200 {object} response.Response{data=[]models.UserResponse}
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, page, err := h.userService.List(c.UserContext(), services.UserListInput{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		return err
	}
	return response.Paginated(c, users, page)
}

// GetUser handles getting a user by ID (Admin only)
// @Summary Get user by ID
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 404 {object} response.Response
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.userService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, "", user)
}

// CreateUser handles staff-created accounts (Admin only)
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "User"
// @Success 201 {object} response.Response{data=models.UserResponse}
// @Failure 409 {object} response.Response
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.CreateUserInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.userService.Create(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return response.Created(c, "User created successfully", user)
}

// UpdateUser handles account changes (Admin only)
// @Summary Update user
// @Description Setting status ACTIVE also clears failed login attempts
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param body body services.UpdateUserInput true "Changes"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.UpdateUserInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.userService.Update(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return err
	}
	return response.Success(c, "User updated successfully", user)
}

// DeleteUser handles account removal (Admin only)
// @Summary Delete user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.userService.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return response.Success(c, "User deleted successfully", nil)
}

// GetProfile returns the caller's profile
// @Summary Get profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Router /profile [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	user, err := h.userService.GetProfile(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return response.Success(c, "", user)
}

// UpdateProfile changes the caller's own details
// @Summary Update profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpdateProfileInput true "Changes"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Router /profile [put]
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req services.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.userService.UpdateProfile(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return response.Success(c, "Profile updated successfully", user)
}
