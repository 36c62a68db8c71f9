package records

import (
	"testing"

	"github.com/invosuite/billdesk/internal/schema"
)

func statusRecords() map[string]Record {
	return map[string]Record{
		"record_1": record(map[string]string{"f1": "2024-01", "f2": "Sent", "f3": "Paid"}),
		"record_2": record(map[string]string{"f1": "2024-02", "f2": "Pending", "f3": "Unpaid"}),
		"record_3": record(map[string]string{"f1": "2024-03", "f2": "Sent", "f3": "Unpaid"}),
	}
}

func TestFilterInvoiceStatus(t *testing.T) {
	s := schema.Mandatory()
	got := Filter(s, statusRecords(), Criteria{InvoiceStatus: "Sent", PaymentStatus: FilterAll})
	if len(got) != 2 {
		t.Fatalf("expected exactly the 2 Sent records, got %d", len(got))
	}
	for id := range got {
		if got[id]["f2"].Value.String() != "Sent" {
			t.Errorf("record %s is not Sent", id)
		}
	}
}

func TestFilterAllMatchesEverything(t *testing.T) {
	s := schema.Mandatory()
	got := Filter(s, statusRecords(), Criteria{InvoiceStatus: FilterAll, PaymentStatus: FilterAll})
	if len(got) != 3 {
		t.Errorf("expected all 3 records, got %d", len(got))
	}
}

func TestFilterStatusIsCaseSensitive(t *testing.T) {
	s := schema.Mandatory()
	got := Filter(s, statusRecords(), Criteria{InvoiceStatus: "sent"})
	if len(got) != 0 {
		t.Errorf("lowercase criteria must not match, got %d records", len(got))
	}
}

func TestFilterMonthRangeInclusive(t *testing.T) {
	s := schema.Mandatory()
	got := Filter(s, statusRecords(), Criteria{MonthFrom: "2024-02", MonthTo: "2024-03"})
	if len(got) != 2 {
		t.Fatalf("expected 2 records in range, got %d", len(got))
	}
	if _, ok := got["record_1"]; ok {
		t.Error("record before range should be excluded")
	}
	if _, ok := got["record_3"]; !ok {
		t.Error("upper bound is inclusive")
	}
}

func TestFilterEmptyMonthValuePasses(t *testing.T) {
	s := schema.Mandatory()
	recs := map[string]Record{
		"record_1": record(map[string]string{"f1": "", "f2": "Sent"}),
		"record_2": record(map[string]string{"f1": "2020-01", "f2": "Sent"}),
	}
	got := Filter(s, recs, Criteria{MonthFrom: "2024-01"})
	if _, ok := got["record_1"]; !ok {
		t.Error("records without a month value must not be excluded by the range")
	}
	if _, ok := got["record_2"]; ok {
		t.Error("record before the range should be excluded")
	}
}

func TestFilterMonthRangeIgnoredWithoutMonthField(t *testing.T) {
	s := schema.Schema{
		"f2": {Name: schema.NameInvoiceStatus, Type: schema.FieldDropdown, Values: []string{"Sent"}, Index: 2},
	}
	recs := map[string]Record{
		"record_1": record(map[string]string{"f2": "Sent"}),
	}
	got := Filter(s, recs, Criteria{MonthFrom: "2024-01", MonthTo: "2024-12"})
	if len(got) != 1 {
		t.Errorf("month range should not apply without a month field, got %d records", len(got))
	}
}

func TestFilterStatusSkippedWithoutNamedField(t *testing.T) {
	// A schema without an "Invoice Status" field cannot constrain on it;
	// every record stays in.
	s := schema.Schema{
		"f1": {Name: "Month", Type: schema.FieldMonth, Index: 1},
	}
	recs := map[string]Record{
		"record_1": record(map[string]string{"f1": "2024-01"}),
		"record_2": record(map[string]string{"f1": "2024-02"}),
	}
	got := Filter(s, recs, Criteria{InvoiceStatus: "Sent", PaymentStatus: "Paid"})
	if len(got) != 2 {
		t.Errorf("status criteria should be skipped without the named field, got %d records", len(got))
	}
}

func TestFilterCombinedCriteria(t *testing.T) {
	s := schema.Mandatory()
	got := Filter(s, statusRecords(), Criteria{
		MonthFrom:     "2024-01",
		MonthTo:       "2024-02",
		InvoiceStatus: "Sent",
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if _, ok := got["record_1"]; !ok {
		t.Error("expected record_1")
	}
}

func TestFilterOptionsFromDropdowns(t *testing.T) {
	invoice, payment := FilterOptions(schema.Mandatory())
	if len(invoice) != 3 || invoice[0] != "Pending" {
		t.Errorf("invoice options = %v", invoice)
	}
	if len(payment) != 3 || payment[0] != "Paid" {
		t.Errorf("payment options = %v", payment)
	}

	// Status field retyped away from dropdown yields no options
	s := schema.Mandatory()
	f := s[schema.FieldIDInvoiceStatus]
	f.Type = schema.FieldString
	f.Values = nil
	s[schema.FieldIDInvoiceStatus] = f
	invoice, _ = FilterOptions(s)
	if len(invoice) != 0 {
		t.Errorf("expected no options for non-dropdown status field, got %v", invoice)
	}
}
