package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/invosuite/billdesk/internal/templates"
	"github.com/invosuite/billdesk/internal/utils"
)

// ClientHandler handles client settings routes
type ClientHandler struct {
	Templates *templates.Adapter
}

// ListClients handles GET /api/clients
// @Summary List clients
// @Description List all clients with their products and template schemas
// @Tags Clients
// @Produce json
// @Success 200 {array} templates.Client
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /clients [get]
func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.Templates.ListClients()
	if err != nil {
		return respondError(c, err, "clients.list")
	}
	return c.Status(fiber.StatusOK).JSON(clients)
}

// GetClient handles GET /api/clients/:clientId
// @Summary Get one client
// @Description Get a client document, normalized to the multi-product shape
// @Tags Clients
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {object} templates.Client
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /clients/{clientId} [get]
func (h *ClientHandler) GetClient(c *fiber.Ctx) error {
	client, err := h.Templates.LoadClient(c.Params("clientId"))
	if err != nil {
		return respondError(c, err, "clients.get")
	}
	return c.Status(fiber.StatusOK).JSON(client)
}

// DeleteClient handles DELETE /api/clients/:clientId
// @Summary Delete a client
// @Description Delete a client and cascade over all of its billing data
// @Tags Clients
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /clients/{clientId} [delete]
func (h *ClientHandler) DeleteClient(c *fiber.Ctx) error {
	clientID := c.Params("clientId")
	if err := h.Templates.DeleteClient(clientID); err != nil {
		return respondError(c, err, "clients.delete")
	}
	return utils.MutationSuccessResponse(c, clientID)
}
