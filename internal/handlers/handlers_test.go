package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/invosuite/billdesk/internal/handlers"
	"github.com/invosuite/billdesk/internal/middleware"
	"github.com/invosuite/billdesk/internal/models"
	"github.com/invosuite/billdesk/internal/records"
	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/store"
	"github.com/invosuite/billdesk/internal/templates"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testApp is a fiber app wired to an in-memory document store. Routes are
// registered without the session middleware; asRole injects the acting
// role the way the middleware would after a validated session.
type testApp struct {
	app       *fiber.App
	store     *store.Store
	templates *templates.Adapter
	editor    *templates.Editor
	worksets  *records.Manager
}

func setupTestApp(t *testing.T, role schema.Role) *testApp {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.AutoMigrate(&models.StoreDocument{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	docs := store.New(db)
	templateAdapter := templates.NewAdapter(docs)
	editor := templates.NewEditor(templateAdapter)
	recordAdapter := records.NewAdapter(docs)
	worksets := records.NewManager(recordAdapter, templateAdapter)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalRole, role)
		return c.Next()
	})

	clientHandler := &handlers.ClientHandler{Templates: templateAdapter}
	app.Get("/api/clients", clientHandler.ListClients)
	app.Get("/api/clients/:clientId", clientHandler.GetClient)
	app.Delete("/api/clients/:clientId", clientHandler.DeleteClient)

	draftHandler := &handlers.TemplateDraftHandler{Editor: editor}
	app.Post("/api/template-drafts", draftHandler.CreateDraft)
	app.Get("/api/template-drafts/:draftId", draftHandler.GetDraft)
	app.Delete("/api/template-drafts/:draftId", draftHandler.DiscardDraft)
	app.Put("/api/template-drafts/:draftId/name", draftHandler.SetName)
	app.Put("/api/template-drafts/:draftId/active", draftHandler.SetActive)
	app.Post("/api/template-drafts/:draftId/products/toggle", draftHandler.ToggleProduct)
	app.Post("/api/template-drafts/:draftId/fields", draftHandler.AddField)
	app.Put("/api/template-drafts/:draftId/fields/:fieldId", draftHandler.EditField)
	app.Delete("/api/template-drafts/:draftId/fields/:fieldId", draftHandler.DeleteField)
	app.Post("/api/template-drafts/:draftId/fields/:fieldId/move", draftHandler.MoveField)
	app.Post("/api/template-drafts/:draftId/save", draftHandler.SaveDraft)

	worksetHandler := &handlers.WorksetHandler{Worksets: worksets}
	app.Post("/api/worksets", worksetHandler.OpenWorkset)
	app.Get("/api/worksets/:worksetId", worksetHandler.GetWorkset)
	app.Delete("/api/worksets/:worksetId", worksetHandler.CloseWorkset)
	app.Post("/api/worksets/:worksetId/filter", worksetHandler.Refilter)
	app.Put("/api/worksets/:worksetId/records/:recordId/cells/:fieldId", worksetHandler.SetCell)
	app.Post("/api/worksets/:worksetId/records", worksetHandler.AddRecord)
	app.Delete("/api/worksets/:worksetId/records/:recordId", worksetHandler.DeleteRecord)
	app.Post("/api/worksets/:worksetId/save", worksetHandler.SaveWorkset)
	app.Get("/api/worksets/:worksetId/export", worksetHandler.ExportWorkset)

	return &testApp{
		app:       app,
		store:     docs,
		templates: templateAdapter,
		editor:    editor,
		worksets:  worksets,
	}
}

func (ta *testApp) request(t *testing.T, method, target string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// Non-object bodies (arrays, binaries) are decoded by the caller.
		return resp.StatusCode, nil
	}
	return resp.StatusCode, result
}

// seedClient persists a client with the mandatory schema for one product
// and returns the client id.
func seedClient(t *testing.T, ta *testApp, name, product string) string {
	t.Helper()
	id, err := ta.templates.SaveClient("", name, map[string]schema.Schema{
		product: schema.Mandatory(),
	})
	if err != nil {
		t.Fatalf("Failed to seed client: %v", err)
	}
	return id
}

func TestGetClient(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")

	status, result := ta.request(t, "GET", "/api/clients/"+clientID, nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["clientName"] != "Acme Corp" {
		t.Errorf("Expected clientName 'Acme Corp', got %v", result["clientName"])
	}
	schemas, ok := result["schemas"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected schemas object, got %v", result["schemas"])
	}
	if _, ok := schemas["widgets"]; !ok {
		t.Errorf("Expected widgets schema in %v", schemas)
	}
}

func TestGetClientNotFound(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)

	status, result := ta.request(t, "GET", "/api/clients/client_missing", nil)
	if status != 404 {
		t.Fatalf("Expected status 404, got %d", status)
	}
	if ok, _ := result["ok"].(bool); ok {
		t.Errorf("Expected ok=false in error response, got %v", result)
	}
}

func TestDeleteClient(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")

	status, _ := ta.request(t, "DELETE", "/api/clients/"+clientID, nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}

	status, _ = ta.request(t, "GET", "/api/clients/"+clientID, nil)
	if status != 404 {
		t.Errorf("Expected 404 after delete, got %d", status)
	}
}

func TestListClients(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	seedClient(t, ta, "Beta LLC", "widgets")
	seedClient(t, ta, "Acme Corp", "widgets")

	req := httptest.NewRequest("GET", "/api/clients", nil)
	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var clients []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&clients); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("Expected 2 clients, got %d", len(clients))
	}
	if clients[0]["clientName"] != "Acme Corp" || clients[1]["clientName"] != "Beta LLC" {
		t.Errorf("Expected clients ordered by name, got %v", clients)
	}
}

func TestDraftLifecycle(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)

	status, result := ta.request(t, "POST", "/api/template-drafts", map[string]interface{}{
		"products": []string{"widgets", "gadgets"},
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d: %v", status, result)
	}
	draftID, _ := result["id"].(string)
	if draftID == "" {
		t.Fatalf("Expected draft id in response, got %v", result)
	}

	status, _ = ta.request(t, "PUT", "/api/template-drafts/"+draftID+"/name", map[string]interface{}{
		"clientName": "Acme Corp",
	})
	if status != 200 {
		t.Fatalf("Expected status 200 setting name, got %d", status)
	}

	status, result = ta.request(t, "POST", "/api/template-drafts/"+draftID+"/fields", map[string]interface{}{
		"name":        "Region",
		"type":        "dropdown",
		"values":      "North,South",
		"permissions": map[string]bool{"accounts": true, "support": false},
	})
	if status != 200 {
		t.Fatalf("Expected status 200 adding field, got %d: %v", status, result)
	}
	if result["id"] != "f4" {
		t.Errorf("Expected new field id f4, got %v", result["id"])
	}

	status, result = ta.request(t, "POST", "/api/template-drafts/"+draftID+"/save", nil)
	if status != 200 {
		t.Fatalf("Expected status 200 saving draft, got %d: %v", status, result)
	}
	clientID, _ := result["id"].(string)
	if clientID == "" {
		t.Fatalf("Expected client id after save, got %v", result)
	}

	// The draft is dropped after a successful save.
	status, _ = ta.request(t, "GET", "/api/template-drafts/"+draftID, nil)
	if status != 404 {
		t.Errorf("Expected 404 for saved draft, got %d", status)
	}

	status, result = ta.request(t, "GET", "/api/clients/"+clientID, nil)
	if status != 200 {
		t.Fatalf("Expected status 200 loading saved client, got %d", status)
	}
	if result["clientName"] != "Acme Corp" {
		t.Errorf("Expected clientName 'Acme Corp', got %v", result["clientName"])
	}
}

func TestDraftRequiresProduct(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)

	status, _ := ta.request(t, "POST", "/api/template-drafts", map[string]interface{}{
		"products": []string{},
	})
	if status != 400 {
		t.Errorf("Expected status 400 without products, got %d", status)
	}
}

func TestDeleteMandatoryFieldRejected(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)

	_, result := ta.request(t, "POST", "/api/template-drafts", map[string]interface{}{
		"products": []string{"widgets"},
	})
	draftID := result["id"].(string)

	status, _ := ta.request(t, "DELETE", "/api/template-drafts/"+draftID+"/fields/f1", nil)
	if status != 400 {
		t.Errorf("Expected status 400 deleting mandatory field, got %d", status)
	}
}

func TestToggleLastProductRejected(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)

	_, result := ta.request(t, "POST", "/api/template-drafts", map[string]interface{}{
		"products": []string{"widgets"},
	})
	draftID := result["id"].(string)

	status, _ := ta.request(t, "POST", "/api/template-drafts/"+draftID+"/products/toggle", map[string]interface{}{
		"product": "widgets",
	})
	if status != 400 {
		t.Errorf("Expected status 400 deselecting last product, got %d", status)
	}
}

func openTestWorkset(t *testing.T, ta *testApp, clientID string) string {
	t.Helper()
	status, result := ta.request(t, "POST", "/api/worksets", map[string]interface{}{
		"clientId": clientID,
		"product":  "widgets",
	})
	if status != 200 {
		t.Fatalf("Expected status 200 opening workset, got %d: %v", status, result)
	}
	worksetID, _ := result["id"].(string)
	if worksetID == "" {
		t.Fatalf("Expected workset id in response, got %v", result)
	}
	return worksetID
}

func TestOpenWorkset(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")

	status, result := ta.request(t, "POST", "/api/worksets", map[string]interface{}{
		"clientId": clientID,
		"product":  "widgets",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d: %v", status, result)
	}
	if result["clientName"] != "Acme Corp" {
		t.Errorf("Expected clientName 'Acme Corp', got %v", result["clientName"])
	}
	order, _ := result["fieldOrder"].([]interface{})
	if len(order) != 3 || order[0] != "f1" {
		t.Errorf("Expected mandatory field order starting at f1, got %v", order)
	}
}

func TestOpenWorksetValidation(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)

	status, _ := ta.request(t, "POST", "/api/worksets", map[string]interface{}{
		"clientId": "client_1",
	})
	if status != 400 {
		t.Errorf("Expected status 400 without product, got %d", status)
	}

	status, _ = ta.request(t, "POST", "/api/worksets", map[string]interface{}{
		"clientId": "client_missing",
		"product":  "widgets",
	})
	if status != 404 {
		t.Errorf("Expected status 404 for unknown client, got %d", status)
	}
}

func TestWorksetRecordEditing(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")
	worksetID := openTestWorkset(t, ta, clientID)

	status, result := ta.request(t, "POST", "/api/worksets/"+worksetID+"/records", nil)
	if status != 200 {
		t.Fatalf("Expected status 200 adding record, got %d: %v", status, result)
	}
	recordID := result["id"].(string)

	status, _ = ta.request(t, "PUT", "/api/worksets/"+worksetID+"/records/"+recordID+"/cells/f2", map[string]interface{}{
		"value": "Sent",
	})
	if status != 200 {
		t.Fatalf("Expected status 200 setting cell, got %d", status)
	}

	// Dropdown cells only accept configured values.
	status, _ = ta.request(t, "PUT", "/api/worksets/"+worksetID+"/records/"+recordID+"/cells/f2", map[string]interface{}{
		"value": "Maybe",
	})
	if status != 400 {
		t.Errorf("Expected status 400 for unknown dropdown value, got %d", status)
	}

	status, result = ta.request(t, "GET", "/api/worksets/"+worksetID, nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	recs := result["records"].(map[string]interface{})
	rec := recs[recordID].(map[string]interface{})
	cell := rec["f2"].(map[string]interface{})
	if cell["value"] != "Sent" {
		t.Errorf("Expected cell f2 'Sent', got %v", cell["value"])
	}
}

func TestWorksetRoleForbidden(t *testing.T) {
	ta := setupTestApp(t, schema.RoleMember)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")
	worksetID := openTestWorkset(t, ta, clientID)

	status, _ := ta.request(t, "POST", "/api/worksets/"+worksetID+"/records", nil)
	if status != 403 {
		t.Errorf("Expected status 403 for member adding record, got %d", status)
	}
}

func TestWorksetSupportPaymentForbidden(t *testing.T) {
	ta := setupTestApp(t, schema.RoleSupport)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")
	worksetID := openTestWorkset(t, ta, clientID)

	status, result := ta.request(t, "POST", "/api/worksets/"+worksetID+"/records", nil)
	if status != 200 {
		t.Fatalf("Expected status 200 adding record as support, got %d: %v", status, result)
	}
	recordID := result["id"].(string)

	status, _ = ta.request(t, "PUT", "/api/worksets/"+worksetID+"/records/"+recordID+"/cells/f3", map[string]interface{}{
		"value": "Paid",
	})
	if status != 403 {
		t.Errorf("Expected status 403 for support editing payment status, got %d", status)
	}

	status, _ = ta.request(t, "PUT", "/api/worksets/"+worksetID+"/records/"+recordID+"/cells/f2", map[string]interface{}{
		"value": "Overdue",
	})
	if status != 200 {
		t.Errorf("Expected status 200 for support editing invoice status, got %d", status)
	}
}

func TestWorksetSaveAndFilter(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")
	worksetID := openTestWorkset(t, ta, clientID)

	_, result := ta.request(t, "POST", "/api/worksets/"+worksetID+"/records", nil)
	recordID := result["id"].(string)
	ta.request(t, "PUT", "/api/worksets/"+worksetID+"/records/"+recordID+"/cells/f1", map[string]interface{}{
		"value": "2026-03",
	})
	ta.request(t, "PUT", "/api/worksets/"+worksetID+"/records/"+recordID+"/cells/f2", map[string]interface{}{
		"value": "Sent",
	})

	status, _ := ta.request(t, "POST", "/api/worksets/"+worksetID+"/save", nil)
	if status != 200 {
		t.Fatalf("Expected status 200 saving workset, got %d", status)
	}

	status, result = ta.request(t, "POST", "/api/worksets/"+worksetID+"/filter", map[string]interface{}{
		"invoiceStatus": "Overdue",
	})
	if status != 200 {
		t.Fatalf("Expected status 200 filtering, got %d", status)
	}
	if recs := result["records"].(map[string]interface{}); len(recs) != 0 {
		t.Errorf("Expected no Overdue records, got %v", recs)
	}

	status, result = ta.request(t, "POST", "/api/worksets/"+worksetID+"/filter", map[string]interface{}{
		"invoiceStatus": "Sent",
	})
	if status != 200 {
		t.Fatalf("Expected status 200 filtering, got %d", status)
	}
	if recs := result["records"].(map[string]interface{}); len(recs) != 1 {
		t.Errorf("Expected one Sent record, got %v", recs)
	}
}

func TestExportWorkset(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")
	worksetID := openTestWorkset(t, ta, clientID)
	ta.request(t, "POST", "/api/worksets/"+worksetID+"/records", nil)

	req := httptest.NewRequest("GET", "/api/worksets/"+worksetID+"/export", nil)
	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd == "" {
		t.Errorf("Expected Content-Disposition header")
	}
}

func TestExportEmptyWorksetRejected(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)
	clientID := seedClient(t, ta, "Acme Corp", "widgets")
	worksetID := openTestWorkset(t, ta, clientID)

	status, _ := ta.request(t, "GET", "/api/worksets/"+worksetID+"/export", nil)
	if status != 400 {
		t.Errorf("Expected status 400 exporting empty workset, got %d", status)
	}
}

func TestGetWorksetNotFound(t *testing.T) {
	ta := setupTestApp(t, schema.RoleAdmin)

	status, _ := ta.request(t, "GET", "/api/worksets/unknown", nil)
	if status != 404 {
		t.Errorf("Expected status 404 for unknown workset, got %d", status)
	}
}
