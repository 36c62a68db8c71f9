package handlers

import (
	"github.com/authorizerdev/authorizer-go"
	"github.com/gofiber/fiber/v2"
	"github.com/invosuite/billdesk/internal/middleware"
	"github.com/invosuite/billdesk/internal/services"
	"github.com/invosuite/billdesk/internal/utils"
)

// UserHandler handles user directory routes
type UserHandler struct {
	Users *services.UserService
}

type userBody struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type changePasswordBody struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ListUsers handles GET /api/users
// @Summary List console users
// @Tags Users
// @Produce json
// @Success 200 {array} services.User
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Users.List()
	if err != nil {
		return respondError(c, err, "users.list")
	}
	return c.Status(fiber.StatusOK).JSON(users)
}

// CreateUser handles POST /api/users
// @Summary Create a console user
// @Description Provision an identity account with a temporary password and write the directory entry. The acting admin's session is unaffected.
// @Tags Users
// @Accept json
// @Produce json
// @Param body body userBody true "New user"
// @Success 200 {object} services.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var body userBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "users.create")
	}
	user, err := h.Users.Create(body.Email, body.Role, body.Password)
	if err != nil {
		return respondError(c, err, "users.create")
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// UpdateUser handles PUT /api/users/:uid
// @Summary Update a console user's email and role
// @Tags Users
// @Accept json
// @Produce json
// @Param uid path string true "User ID"
// @Param body body userBody true "Updated user"
// @Success 200 {object} services.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /users/{uid} [put]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	var body userBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "users.update")
	}
	user, err := h.Users.Update(c.Params("uid"), body.Email, body.Role)
	if err != nil {
		return respondError(c, err, "users.update")
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// DeleteUser handles DELETE /api/users/:uid
// @Summary Delete a console user
// @Description Remove the directory entry and the identity account behind it
// @Tags Users
// @Produce json
// @Param uid path string true "User ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /users/{uid} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	uid := c.Params("uid")
	if err := h.Users.Delete(uid); err != nil {
		return respondError(c, err, "users.delete")
	}
	return utils.MutationSuccessResponse(c, uid)
}

// ChangePassword handles POST /api/account/password
// @Summary Change the signed-in user's password
// @Description Re-authenticate with the current password, then set the new one
// @Tags Users
// @Accept json
// @Produce json
// @Param body body changePasswordBody true "Password change"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /account/password [post]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	var body changePasswordBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "account.password")
	}

	user, ok := c.Locals(middleware.LocalUser).(*authorizer.User)
	if !ok {
		return utils.ErrorResponse(c, "No session user", fiber.StatusUnauthorized, "account.password")
	}
	if err := h.Users.ChangePassword(user.ID, body.CurrentPassword, body.NewPassword); err != nil {
		return respondError(c, err, "account.password")
	}
	return utils.MutationSuccessResponse(c, "")
}
