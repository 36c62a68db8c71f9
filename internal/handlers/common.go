package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/invosuite/billdesk/internal/services"
	"github.com/invosuite/billdesk/internal/types"
	"github.com/invosuite/billdesk/internal/utils"
	"github.com/sirupsen/logrus"
)

// respondError translates domain errors to the uniform JSON error body.
// Store failures log server-side and return a generic 500; in-memory
// session state is never torn down by a failed operation.
func respondError(c *fiber.Ctx, err error, errorType string) error {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return utils.ErrorResponse(c, verr.Error(), fiber.StatusBadRequest, errorType)
	}

	var aerr *services.AuthError
	if errors.As(err, &aerr) {
		return utils.ErrorResponse(c, services.FriendlyAuthMessage(aerr), fiber.StatusBadRequest, errorType)
	}

	if errors.Is(err, types.ErrNotFound) {
		return utils.NotFoundResponse(c, "Not found")
	}
	if errors.Is(err, types.ErrForbidden) {
		return utils.ErrorResponse(c, "Your role does not permit this change", fiber.StatusForbidden, errorType)
	}

	var cerr *types.CustomError
	if errors.As(err, &cerr) {
		return utils.ErrorResponse(c, cerr.Message, cerr.Code, cerr.Type)
	}

	logrus.WithError(err).WithField("type", errorType).Error("request failed")
	return utils.ErrorResponse(c, "Internal server error", fiber.StatusInternalServerError, errorType)
}
