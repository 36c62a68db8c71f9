// Package records manages billing records: month-partitioned persistence,
// schema-driven filtering and the in-memory working sets the console edits.
package records

import (
	"errors"
	"time"

	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/store"
	"github.com/invosuite/billdesk/internal/types"
)

// Cell is one record cell. Values arrive as JSON strings or numbers and
// are stored canonically as strings.
type Cell struct {
	Value types.FlexString `json:"value"`
}

// Record maps field ids to cells.
type Record map[string]Cell

const monthKeyLayout = "2006-01"

// Adapter reads and writes billing record documents under
// billingData/{clientId}/{product}. The stored shape partitions records
// by month key; callers work with a flat record map.
type Adapter struct {
	Store *store.Store
}

// NewAdapter creates a record store adapter.
func NewAdapter(s *store.Store) *Adapter {
	return &Adapter{Store: s}
}

func recordsPath(clientID, product string) string {
	return "billingData/" + clientID + "/" + product
}

// LoadRecords flattens every month partition of a client product into one
// record map. A missing document yields an empty map, not an error.
func (a *Adapter) LoadRecords(clientID, product string) (map[string]Record, error) {
	var grouped map[string]map[string]Record
	err := a.Store.Get(recordsPath(clientID, product), &grouped)
	if errors.Is(err, types.ErrNotFound) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	flat := map[string]Record{}
	for _, partition := range grouped {
		for id, rec := range partition {
			flat[id] = rec
		}
	}
	return flat, nil
}

// SaveRecords regroups the flat record map by month key and overwrites the
// whole client product document. Months absent from flat are dropped; the
// working set is the source of truth on save.
func (a *Adapter) SaveRecords(clientID, product string, s schema.Schema, flat map[string]Record) error {
	monthField := MonthFieldID(s)
	grouped := map[string]map[string]Record{}
	for id, rec := range flat {
		key := monthKey(monthField, rec)
		if grouped[key] == nil {
			grouped[key] = map[string]Record{}
		}
		grouped[key][id] = rec
	}
	return a.Store.Set(recordsPath(clientID, product), grouped)
}

// MonthFieldID returns the id of the first month-typed field in schema
// order, or "" when the schema has none.
func MonthFieldID(s schema.Schema) string {
	for _, id := range schema.Sorted(s) {
		if s[id].Type == schema.FieldMonth {
			return id
		}
	}
	return ""
}

// monthKey picks the partition key for a record: the record's month field
// value when it parses, otherwise the current month.
func monthKey(monthField string, rec Record) string {
	if monthField != "" {
		v := rec[monthField].Value.String()
		if _, err := time.Parse(monthKeyLayout, v); err == nil {
			return v
		}
	}
	return time.Now().Format(monthKeyLayout)
}

// fieldByName returns the id of the field literally named name, or "".
func fieldByName(s schema.Schema, name string) string {
	for _, id := range schema.Sorted(s) {
		if s[id].Name == name {
			return id
		}
	}
	return ""
}
