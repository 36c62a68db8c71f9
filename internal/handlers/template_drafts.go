package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/templates"
	"github.com/invosuite/billdesk/internal/types"
	"github.com/invosuite/billdesk/internal/utils"
)

// TemplateDraftHandler handles template editor draft routes
type TemplateDraftHandler struct {
	Editor *templates.Editor
}

type createDraftBody struct {
	ClientID string                 `json:"clientId"`
	Products types.FlexList[string] `json:"products"`
}

type fieldBody struct {
	Name        string             `json:"name"`
	Type        schema.FieldType   `json:"type"`
	Values      string             `json:"values"`
	Permissions schema.Permissions `json:"permissions"`
}

// CreateDraft handles POST /api/template-drafts
// @Summary Open a template draft
// @Description Open a draft for an existing client, or a new client when clientId is empty
// @Tags Templates
// @Accept json
// @Produce json
// @Param body body createDraftBody true "Draft parameters"
// @Success 200 {object} templates.Draft
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /template-drafts [post]
func (h *TemplateDraftHandler) CreateDraft(c *fiber.Ctx) error {
	var body createDraftBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "templates.draft.create")
	}

	var draft *templates.Draft
	var err error
	if body.ClientID != "" {
		draft, err = h.Editor.Open(body.ClientID)
	} else {
		draft, err = h.Editor.New(body.Products.Slice())
	}
	if err != nil {
		return respondError(c, err, "templates.draft.create")
	}
	return c.Status(fiber.StatusOK).JSON(draft)
}

// GetDraft handles GET /api/template-drafts/:draftId
// @Summary Get a template draft
// @Tags Templates
// @Produce json
// @Param draftId path string true "Draft ID"
// @Success 200 {object} templates.Draft
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId} [get]
func (h *TemplateDraftHandler) GetDraft(c *fiber.Ctx) error {
	draft, err := h.Editor.Get(c.Params("draftId"))
	if err != nil {
		return respondError(c, err, "templates.draft.get")
	}
	return c.Status(fiber.StatusOK).JSON(draft)
}

// DiscardDraft handles DELETE /api/template-drafts/:draftId
// @Summary Discard a template draft
// @Tags Templates
// @Produce json
// @Param draftId path string true "Draft ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Router /template-drafts/{draftId} [delete]
func (h *TemplateDraftHandler) DiscardDraft(c *fiber.Ctx) error {
	h.Editor.Discard(c.Params("draftId"))
	return utils.MutationSuccessResponse(c, "")
}

// SetName handles PUT /api/template-drafts/:draftId/name
// @Summary Set the draft's client name
// @Tags Templates
// @Accept json
// @Produce json
// @Param draftId path string true "Draft ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/name [put]
func (h *TemplateDraftHandler) SetName(c *fiber.Ctx) error {
	var body struct {
		ClientName string `json:"clientName"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "templates.draft.name")
	}
	if err := h.Editor.SetClientName(c.Params("draftId"), body.ClientName); err != nil {
		return respondError(c, err, "templates.draft.name")
	}
	return utils.MutationSuccessResponse(c, "")
}

// SetActive handles PUT /api/template-drafts/:draftId/active
// @Summary Switch the draft's active product
// @Tags Templates
// @Accept json
// @Produce json
// @Param draftId path string true "Draft ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/active [put]
func (h *TemplateDraftHandler) SetActive(c *fiber.Ctx) error {
	var body struct {
		Product string `json:"product"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "templates.draft.active")
	}
	if err := h.Editor.SetActive(c.Params("draftId"), body.Product); err != nil {
		return respondError(c, err, "templates.draft.active")
	}
	return utils.MutationSuccessResponse(c, "")
}

// ToggleProduct handles POST /api/template-drafts/:draftId/products/toggle
// @Summary Toggle a product in the draft
// @Description Select or deselect a product; the last selected product cannot be removed
// @Tags Templates
// @Accept json
// @Produce json
// @Param draftId path string true "Draft ID"
// @Success 200 {object} templates.Draft
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/products/toggle [post]
func (h *TemplateDraftHandler) ToggleProduct(c *fiber.Ctx) error {
	var body struct {
		Product string `json:"product"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "templates.draft.toggle")
	}
	draftID := c.Params("draftId")
	if err := h.Editor.ToggleProduct(draftID, body.Product); err != nil {
		return respondError(c, err, "templates.draft.toggle")
	}
	draft, err := h.Editor.Get(draftID)
	if err != nil {
		return respondError(c, err, "templates.draft.toggle")
	}
	return c.Status(fiber.StatusOK).JSON(draft)
}

// AddField handles POST /api/template-drafts/:draftId/fields
// @Summary Add a field to the active product
// @Tags Templates
// @Accept json
// @Produce json
// @Param draftId path string true "Draft ID"
// @Param body body fieldBody true "Field definition"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/fields [post]
func (h *TemplateDraftHandler) AddField(c *fiber.Ctx) error {
	var body fieldBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "templates.field.add")
	}
	fieldID, err := h.Editor.AddField(c.Params("draftId"), body.Name, body.Type, body.Values, body.Permissions)
	if err != nil {
		return respondError(c, err, "templates.field.add")
	}
	return utils.MutationSuccessResponse(c, fieldID)
}

// EditField handles PUT /api/template-drafts/:draftId/fields/:fieldId
// @Summary Edit a field of the active product
// @Description Overwrite a field's name, type, values and permissions; id and index are kept
// @Tags Templates
// @Accept json
// @Produce json
// @Param draftId path string true "Draft ID"
// @Param fieldId path string true "Field ID"
// @Param body body fieldBody true "Field definition"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/fields/{fieldId} [put]
func (h *TemplateDraftHandler) EditField(c *fiber.Ctx) error {
	var body fieldBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "templates.field.edit")
	}
	err := h.Editor.EditField(c.Params("draftId"), c.Params("fieldId"), body.Name, body.Type, body.Values, body.Permissions)
	if err != nil {
		return respondError(c, err, "templates.field.edit")
	}
	return utils.MutationSuccessResponse(c, c.Params("fieldId"))
}

// DeleteField handles DELETE /api/template-drafts/:draftId/fields/:fieldId
// @Summary Delete a field from the active product
// @Description Mandatory fields cannot be deleted
// @Tags Templates
// @Produce json
// @Param draftId path string true "Draft ID"
// @Param fieldId path string true "Field ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/fields/{fieldId} [delete]
func (h *TemplateDraftHandler) DeleteField(c *fiber.Ctx) error {
	if err := h.Editor.DeleteField(c.Params("draftId"), c.Params("fieldId")); err != nil {
		return respondError(c, err, "templates.field.delete")
	}
	return utils.MutationSuccessResponse(c, c.Params("fieldId"))
}

// MoveField handles POST /api/template-drafts/:draftId/fields/:fieldId/move
// @Summary Move a field up or down
// @Description Swap display positions with the neighboring field; moving past either end is a no-op
// @Tags Templates
// @Accept json
// @Produce json
// @Param draftId path string true "Draft ID"
// @Param fieldId path string true "Field ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/fields/{fieldId}/move [post]
func (h *TemplateDraftHandler) MoveField(c *fiber.Ctx) error {
	var body struct {
		Direction string `json:"direction"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "templates.field.move")
	}
	if err := h.Editor.MoveField(c.Params("draftId"), c.Params("fieldId"), body.Direction); err != nil {
		return respondError(c, err, "templates.field.move")
	}
	return utils.MutationSuccessResponse(c, c.Params("fieldId"))
}

// SaveDraft handles POST /api/template-drafts/:draftId/save
// @Summary Save a template draft
// @Description Persist the draft as one client document write and drop the draft
// @Tags Templates
// @Produce json
// @Param draftId path string true "Draft ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /template-drafts/{draftId}/save [post]
func (h *TemplateDraftHandler) SaveDraft(c *fiber.Ctx) error {
	clientID, err := h.Editor.Save(c.Params("draftId"))
	if err != nil {
		return respondError(c, err, "templates.draft.save")
	}
	return utils.MutationSuccessResponse(c, clientID)
}
