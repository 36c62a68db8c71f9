package records

import (
	"time"

	"github.com/invosuite/billdesk/internal/schema"
)

// FilterAll is the criteria value that imposes no constraint.
const FilterAll = "all"

// Criteria narrows a record set. Empty strings and FilterAll impose no
// constraint for their dimension.
type Criteria struct {
	MonthFrom     string `json:"monthFrom"`
	MonthTo       string `json:"monthTo"`
	InvoiceStatus string `json:"invoiceStatus"`
	PaymentStatus string `json:"paymentStatus"`
}

func active(v string) bool {
	return v != "" && v != FilterAll
}

// Filter applies criteria to a flat record map against the given schema.
// The month range only applies when the schema carries a month field;
// records with an empty month value pass the range. Status criteria match
// the fields literally named "Invoice Status" and "Payment Status" by
// exact value; a schema without such a field skips that criterion.
func Filter(s schema.Schema, records map[string]Record, c Criteria) map[string]Record {
	monthField := MonthFieldID(s)
	invoiceField := fieldByName(s, schema.NameInvoiceStatus)
	paymentField := fieldByName(s, schema.NamePaymentStatus)

	var from, to time.Time
	var hasFrom, hasTo bool
	if monthField != "" {
		if active(c.MonthFrom) {
			if t, err := time.Parse(monthKeyLayout, c.MonthFrom); err == nil {
				from = t
				hasFrom = true
			}
		}
		if active(c.MonthTo) {
			if t, err := time.Parse(monthKeyLayout, c.MonthTo); err == nil {
				// Inclusive upper bound: last instant of the month
				to = t.AddDate(0, 1, 0)
				hasTo = true
			}
		}
	}

	out := map[string]Record{}
	for id, rec := range records {
		if hasFrom || hasTo {
			v := rec[monthField].Value.String()
			if v != "" {
				t, err := time.Parse(monthKeyLayout, v)
				if err != nil {
					continue
				}
				if hasFrom && t.Before(from) {
					continue
				}
				if hasTo && !t.Before(to) {
					continue
				}
			}
		}
		if invoiceField != "" && active(c.InvoiceStatus) && rec[invoiceField].Value.String() != c.InvoiceStatus {
			continue
		}
		if paymentField != "" && active(c.PaymentStatus) && rec[paymentField].Value.String() != c.PaymentStatus {
			continue
		}
		out[id] = rec
	}
	return out
}

// FilterOptions lists the selectable values for the status filters,
// derived from the status fields' dropdown values. Non-dropdown or
// missing status fields yield empty lists.
func FilterOptions(s schema.Schema) (invoice, payment []string) {
	if id := fieldByName(s, schema.NameInvoiceStatus); id != "" && s[id].Type == schema.FieldDropdown {
		invoice = append([]string(nil), s[id].Values...)
	}
	if id := fieldByName(s, schema.NamePaymentStatus); id != "" && s[id].Type == schema.FieldDropdown {
		payment = append([]string(nil), s[id].Values...)
	}
	return invoice, payment
}
