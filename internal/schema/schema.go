// Package schema models billing template field schemas and the per-role
// cell access policy.
package schema

import (
	"sort"
	"strconv"
	"strings"

	"github.com/invosuite/billdesk/internal/types"
)

// FieldType enumerates the cell value types a template field can take.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldMonth    FieldType = "month"
	FieldDropdown FieldType = "dropdown"
)

// Permissions are the per-role edit flags carried on a field. Admin edits
// everything and Member edits nothing regardless of these flags.
type Permissions struct {
	Accounts bool `json:"accounts"`
	Support  bool `json:"support"`
}

// Field is one column definition of a billing template.
type Field struct {
	Name        string      `json:"name"`
	Type        FieldType   `json:"type"`
	Values      []string    `json:"values,omitempty"`
	Index       int         `json:"index"`
	Permissions Permissions `json:"permissions"`
}

// Schema maps stable field ids ("f1", "f2", ...) to field definitions.
type Schema map[string]Field

// Mandatory field ids. These fields exist in every schema and cannot be
// deleted.
const (
	FieldIDMonth         = "f1"
	FieldIDInvoiceStatus = "f2"
	FieldIDPaymentStatus = "f3"
)

// Field names the filter engine matches on literally.
const (
	NameInvoiceStatus = "Invoice Status"
	NamePaymentStatus = "Payment Status"
)

// Mandatory returns a fresh copy of the mandatory field set.
func Mandatory() Schema {
	return Schema{
		FieldIDMonth: {
			Name:        "Month",
			Type:        FieldMonth,
			Index:       1,
			Permissions: Permissions{Accounts: true, Support: false},
		},
		FieldIDInvoiceStatus: {
			Name:        NameInvoiceStatus,
			Type:        FieldDropdown,
			Values:      []string{"Pending", "Sent", "Overdue"},
			Index:       2,
			Permissions: Permissions{Accounts: true, Support: true},
		},
		FieldIDPaymentStatus: {
			Name:        NamePaymentStatus,
			Type:        FieldDropdown,
			Values:      []string{"Paid", "Unpaid", "Partially Paid"},
			Index:       3,
			Permissions: Permissions{Accounts: true, Support: false},
		},
	}
}

// IsMandatory reports whether id belongs to the mandatory field set.
func IsMandatory(id string) bool {
	switch id {
	case FieldIDMonth, FieldIDInvoiceStatus, FieldIDPaymentStatus:
		return true
	}
	return false
}

// Sorted returns the field ids of s ordered by ascending index. Equal
// indexes order by field id, numerically when both ids are f<N> shaped.
func Sorted(s Schema) []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s[ids[i]], s[ids[j]]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		na, aok := fieldNum(ids[i])
		nb, bok := fieldNum(ids[j])
		if aok && bok {
			return na < nb
		}
		return ids[i] < ids[j]
	})
	return ids
}

// NextFieldID allocates the next field id as max f<N> plus one. Gaps left
// by deleted fields are never reused.
func NextFieldID(s Schema) string {
	max := 0
	for id := range s {
		if n, ok := fieldNum(id); ok && n > max {
			max = n
		}
	}
	return "f" + strconv.Itoa(max+1)
}

// NextIndex returns the display index for a newly added field.
func NextIndex(s Schema) int {
	max := 0
	for _, f := range s {
		if f.Index > max {
			max = f.Index
		}
	}
	return max + 1
}

// Validate checks that s is a well-formed schema.
func Validate(s Schema) error {
	for _, id := range []string{FieldIDMonth, FieldIDInvoiceStatus, FieldIDPaymentStatus} {
		if _, ok := s[id]; !ok {
			return types.NewValidationError(id, "mandatory field missing")
		}
	}
	for id, f := range s {
		if strings.TrimSpace(f.Name) == "" {
			return types.NewValidationError(id, "field name is required")
		}
		switch f.Type {
		case FieldString, FieldNumber, FieldDate, FieldMonth:
		case FieldDropdown:
			if len(f.Values) == 0 {
				return types.NewValidationError(id, "dropdown field needs at least one value")
			}
		default:
			return types.NewValidationError(id, "unknown field type: "+string(f.Type))
		}
	}
	return nil
}

// Clone deep-copies a schema.
func Clone(s Schema) Schema {
	out := make(Schema, len(s))
	for id, f := range s {
		if f.Values != nil {
			f.Values = append([]string(nil), f.Values...)
		}
		out[id] = f
	}
	return out
}

func fieldNum(id string) (int, bool) {
	if !strings.HasPrefix(id, "f") {
		return 0, false
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
