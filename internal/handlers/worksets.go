package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/invosuite/billdesk/internal/export"
	"github.com/invosuite/billdesk/internal/middleware"
	"github.com/invosuite/billdesk/internal/records"
	"github.com/invosuite/billdesk/internal/types"
	"github.com/invosuite/billdesk/internal/utils"
)

// WorksetHandler handles billing workset routes
type WorksetHandler struct {
	Worksets *records.Manager
}

type openWorksetBody struct {
	ClientID string `json:"clientId"`
	Product  string `json:"product"`
}

type setCellBody struct {
	Value types.FlexString `json:"value"`
}

// OpenWorkset handles POST /api/worksets
// @Summary Open a billing workset
// @Description Resolve the client's schema, load all records and start an in-memory editing session
// @Tags Worksets
// @Accept json
// @Produce json
// @Param body body openWorksetBody true "Client and product"
// @Success 200 {object} records.Snapshot
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets [post]
func (h *WorksetHandler) OpenWorkset(c *fiber.Ctx) error {
	var body openWorksetBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "worksets.open")
	}
	if body.ClientID == "" || body.Product == "" {
		return utils.ErrorResponse(c, "clientId and product are required", fiber.StatusBadRequest, "worksets.open")
	}
	snap, err := h.Worksets.Open(body.ClientID, body.Product)
	if err != nil {
		return respondError(c, err, "worksets.open")
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}

// GetWorkset handles GET /api/worksets/:worksetId
// @Summary Get the current workset snapshot
// @Tags Worksets
// @Produce json
// @Param worksetId path string true "Workset ID"
// @Success 200 {object} records.Snapshot
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets/{worksetId} [get]
func (h *WorksetHandler) GetWorkset(c *fiber.Ctx) error {
	snap, err := h.Worksets.Snapshot(c.Params("worksetId"))
	if err != nil {
		return respondError(c, err, "worksets.get")
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}

// CloseWorkset handles DELETE /api/worksets/:worksetId
// @Summary Close a workset without saving
// @Tags Worksets
// @Produce json
// @Param worksetId path string true "Workset ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Router /worksets/{worksetId} [delete]
func (h *WorksetHandler) CloseWorkset(c *fiber.Ctx) error {
	h.Worksets.Close(c.Params("worksetId"))
	return utils.MutationSuccessResponse(c, "")
}

// Refilter handles POST /api/worksets/:worksetId/filter
// @Summary Reload and filter the workset's records
// @Description Reload records from the store and apply the criteria; unsaved edits are discarded. When refilters race, the newest request wins.
// @Tags Worksets
// @Accept json
// @Produce json
// @Param worksetId path string true "Workset ID"
// @Param body body records.Criteria true "Filter criteria"
// @Success 200 {object} records.Snapshot
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets/{worksetId}/filter [post]
func (h *WorksetHandler) Refilter(c *fiber.Ctx) error {
	var criteria records.Criteria
	if err := c.BodyParser(&criteria); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "worksets.filter")
	}
	snap, err := h.Worksets.Refilter(c.Params("worksetId"), criteria)
	if err != nil {
		return respondError(c, err, "worksets.filter")
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}

// SetCell handles PUT /api/worksets/:worksetId/records/:recordId/cells/:fieldId
// @Summary Set one cell value
// @Description Write a cell after checking the acting role's edit policy and the field type
// @Tags Worksets
// @Accept json
// @Produce json
// @Param worksetId path string true "Workset ID"
// @Param recordId path string true "Record ID"
// @Param fieldId path string true "Field ID"
// @Param body body setCellBody true "Cell value"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets/{worksetId}/records/{recordId}/cells/{fieldId} [put]
func (h *WorksetHandler) SetCell(c *fiber.Ctx) error {
	var body setCellBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "worksets.cell")
	}
	err := h.Worksets.SetCell(
		c.Params("worksetId"),
		c.Params("recordId"),
		c.Params("fieldId"),
		body.Value.String(),
		middleware.RoleFromContext(c),
	)
	if err != nil {
		return respondError(c, err, "worksets.cell")
	}
	return utils.MutationSuccessResponse(c, "")
}

// AddRecord handles POST /api/worksets/:worksetId/records
// @Summary Add an empty record to the workset
// @Tags Worksets
// @Produce json
// @Param worksetId path string true "Workset ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets/{worksetId}/records [post]
func (h *WorksetHandler) AddRecord(c *fiber.Ctx) error {
	recordID, err := h.Worksets.AddRecord(c.Params("worksetId"), middleware.RoleFromContext(c))
	if err != nil {
		return respondError(c, err, "worksets.record.add")
	}
	return utils.MutationSuccessResponse(c, recordID)
}

// DeleteRecord handles DELETE /api/worksets/:worksetId/records/:recordId
// @Summary Delete a record from the workset
// @Tags Worksets
// @Produce json
// @Param worksetId path string true "Workset ID"
// @Param recordId path string true "Record ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets/{worksetId}/records/{recordId} [delete]
func (h *WorksetHandler) DeleteRecord(c *fiber.Ctx) error {
	err := h.Worksets.DeleteRecord(c.Params("worksetId"), c.Params("recordId"), middleware.RoleFromContext(c))
	if err != nil {
		return respondError(c, err, "worksets.record.delete")
	}
	return utils.MutationSuccessResponse(c, c.Params("recordId"))
}

// SaveWorkset handles POST /api/worksets/:worksetId/save
// @Summary Save the workset
// @Description Persist the working set as the whole record document; months outside the working set are dropped
// @Tags Worksets
// @Produce json
// @Param worksetId path string true "Workset ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets/{worksetId}/save [post]
func (h *WorksetHandler) SaveWorkset(c *fiber.Ctx) error {
	if err := h.Worksets.Save(c.Params("worksetId"), middleware.RoleFromContext(c)); err != nil {
		return respondError(c, err, "worksets.save")
	}
	return utils.MutationSuccessResponse(c, "")
}

// ExportWorkset handles GET /api/worksets/:worksetId/export
// @Summary Export the workset as a spreadsheet
// @Description Stream an xlsx projection of the current workset: header row in schema order, one row per record
// @Tags Worksets
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param worksetId path string true "Workset ID"
// @Success 200 {file} binary
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /worksets/{worksetId}/export [get]
func (h *WorksetHandler) ExportWorkset(c *fiber.Ctx) error {
	snap, err := h.Worksets.Snapshot(c.Params("worksetId"))
	if err != nil {
		return respondError(c, err, "worksets.export")
	}

	f, err := export.Workbook(snap)
	if err != nil {
		return respondError(c, err, "worksets.export")
	}
	defer f.Close()

	filename := export.Filename(snap.ClientName, snap.Product)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return f.Write(c.Response().BodyWriter())
}
