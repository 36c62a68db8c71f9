package records

import (
	"errors"
	"testing"

	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/templates"
	"github.com/invosuite/billdesk/internal/types"
)

func setupTestManager(t *testing.T) (*Manager, *Adapter, string) {
	t.Helper()
	recs, s := setupTestRecords(t)
	tmpl := templates.NewAdapter(s)

	clientID, err := tmpl.SaveClient("", "Acme", map[string]schema.Schema{
		"widgets": schema.Mandatory(),
	})
	if err != nil {
		t.Fatalf("seed client failed: %v", err)
	}
	return NewManager(recs, tmpl), recs, clientID
}

func TestOpenLoadsSchemaAndRecords(t *testing.T) {
	m, recs, clientID := setupTestManager(t)

	flat := map[string]Record{
		"record_1": record(map[string]string{"f1": "2024-01", "f2": "Sent", "f3": "Paid"}),
	}
	if err := recs.SaveRecords(clientID, "widgets", schema.Mandatory(), flat); err != nil {
		t.Fatalf("seed records failed: %v", err)
	}

	snap, err := m.Open(clientID, "widgets")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if snap.ClientName != "Acme" {
		t.Errorf("clientName = %q", snap.ClientName)
	}
	if len(snap.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(snap.Records))
	}
	if len(snap.FieldOrder) != 3 || snap.FieldOrder[0] != "f1" {
		t.Errorf("field order = %v", snap.FieldOrder)
	}
}

func TestOpenUnknownClient(t *testing.T) {
	m, _, _ := setupTestManager(t)
	if _, err := m.Open("client_missing", "widgets"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetCellEnforcesPolicy(t *testing.T) {
	m, _, clientID := setupTestManager(t)
	snap, err := m.Open(clientID, "widgets")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rid, err := m.AddRecord(snap.ID, schema.RoleAdmin)
	if err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}

	// Support lacks the payment status flag
	err = m.SetCell(snap.ID, rid, schema.FieldIDPaymentStatus, "Paid", schema.RoleSupport)
	if !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected ErrForbidden for support on payment status, got %v", err)
	}

	// Support carries the invoice status flag
	if err := m.SetCell(snap.ID, rid, schema.FieldIDInvoiceStatus, "Sent", schema.RoleSupport); err != nil {
		t.Fatalf("support should edit invoice status: %v", err)
	}

	// Member never edits
	err = m.SetCell(snap.ID, rid, schema.FieldIDInvoiceStatus, "Sent", schema.RoleMember)
	if !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected ErrForbidden for member, got %v", err)
	}
}

func TestSetCellCoercesValue(t *testing.T) {
	m, _, clientID := setupTestManager(t)
	snap, _ := m.Open(clientID, "widgets")
	rid, _ := m.AddRecord(snap.ID, schema.RoleAdmin)

	err := m.SetCell(snap.ID, rid, schema.FieldIDInvoiceStatus, "Mailed", schema.RoleAdmin)
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error for unknown dropdown value, got %v", err)
	}

	if err := m.SetCell(snap.ID, rid, schema.FieldIDMonth, "2024-05", schema.RoleAdmin); err != nil {
		t.Fatalf("valid month rejected: %v", err)
	}
	after, _ := m.Snapshot(snap.ID)
	if after.Records[rid][schema.FieldIDMonth].Value.String() != "2024-05" {
		t.Error("cell value not applied")
	}
}

func TestAddRecordCarriesEveryField(t *testing.T) {
	m, _, clientID := setupTestManager(t)
	snap, _ := m.Open(clientID, "widgets")

	rid, err := m.AddRecord(snap.ID, schema.RoleAccounts)
	if err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	after, _ := m.Snapshot(snap.ID)
	rec := after.Records[rid]
	for _, fid := range []string{"f1", "f2", "f3"} {
		cell, ok := rec[fid]
		if !ok {
			t.Errorf("new record missing field %s", fid)
		}
		if cell.Value != "" {
			t.Errorf("new record field %s should be empty, got %q", fid, cell.Value)
		}
	}

	if _, err := m.AddRecord(snap.ID, schema.RoleMember); !errors.Is(err, types.ErrForbidden) {
		t.Error("member must not add records")
	}
}

func TestDeleteRecord(t *testing.T) {
	m, _, clientID := setupTestManager(t)
	snap, _ := m.Open(clientID, "widgets")
	rid, _ := m.AddRecord(snap.ID, schema.RoleAdmin)

	if err := m.DeleteRecord(snap.ID, rid, schema.RoleMember); !errors.Is(err, types.ErrForbidden) {
		t.Error("member must not delete records")
	}
	if err := m.DeleteRecord(snap.ID, rid, schema.RoleAccounts); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if err := m.DeleteRecord(snap.ID, rid, schema.RoleAccounts); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSavePersistsWorkingSet(t *testing.T) {
	m, recs, clientID := setupTestManager(t)
	snap, _ := m.Open(clientID, "widgets")
	rid, _ := m.AddRecord(snap.ID, schema.RoleAdmin)
	if err := m.SetCell(snap.ID, rid, schema.FieldIDMonth, "2024-06", schema.RoleAdmin); err != nil {
		t.Fatalf("SetCell failed: %v", err)
	}

	if err := m.Save(snap.ID, schema.RoleAccounts); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := recs.LoadRecords(clientID, "widgets")
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if stored[rid][schema.FieldIDMonth].Value.String() != "2024-06" {
		t.Error("saved record not found in store")
	}
}

func TestRefilterAppliesCriteria(t *testing.T) {
	m, recs, clientID := setupTestManager(t)
	flat := statusRecords()
	if err := recs.SaveRecords(clientID, "widgets", schema.Mandatory(), flat); err != nil {
		t.Fatalf("seed records failed: %v", err)
	}
	snap, _ := m.Open(clientID, "widgets")

	after, err := m.Refilter(snap.ID, Criteria{InvoiceStatus: "Sent"})
	if err != nil {
		t.Fatalf("Refilter failed: %v", err)
	}
	if len(after.Records) != 2 {
		t.Errorf("expected 2 Sent records, got %d", len(after.Records))
	}
	if after.Criteria.InvoiceStatus != "Sent" {
		t.Errorf("criteria not recorded: %+v", after.Criteria)
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	m, recs, clientID := setupTestManager(t)
	if err := recs.SaveRecords(clientID, "widgets", schema.Mandatory(), statusRecords()); err != nil {
		t.Fatalf("seed records failed: %v", err)
	}
	snap, _ := m.Open(clientID, "widgets")

	// Two overlapping loads: the first to start finishes last
	first, _, _, s1, err := m.beginLoad(snap.ID)
	if err != nil {
		t.Fatalf("beginLoad failed: %v", err)
	}
	second, _, _, s2, err := m.beginLoad(snap.ID)
	if err != nil {
		t.Fatalf("beginLoad failed: %v", err)
	}

	all, _ := recs.LoadRecords(clientID, "widgets")

	c2 := Criteria{InvoiceStatus: "Pending"}
	if _, err := m.completeLoad(snap.ID, second, Filter(s2, all, c2), c2); err != nil {
		t.Fatalf("completeLoad failed: %v", err)
	}

	c1 := Criteria{InvoiceStatus: "Sent"}
	got, err := m.completeLoad(snap.ID, first, Filter(s1, all, c1), c1)
	if err != nil {
		t.Fatalf("completeLoad failed: %v", err)
	}

	// The stale first request must not overwrite the newer result
	if got.Criteria.InvoiceStatus != "Pending" {
		t.Errorf("stale load overwrote the newest request: %+v", got.Criteria)
	}
	if len(got.Records) != 1 {
		t.Errorf("expected the Pending record only, got %d", len(got.Records))
	}
}
