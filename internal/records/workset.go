package records

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/templates"
	"github.com/invosuite/billdesk/internal/types"
)

// Workset is one in-memory editing session over a client product's
// records. The store is only touched on open, refilter and save; cell
// edits stay in memory until the session saves.
type Workset struct {
	ID         string
	ClientID   string
	ClientName string
	Product    string
	Schema     schema.Schema
	Records    map[string]Record
	Criteria   Criteria

	// seq numbers refilter requests; a completing load applies only
	// when it is still the newest request.
	seq uint64
}

// Snapshot is an immutable view of a workset for rendering and export.
type Snapshot struct {
	ID             string            `json:"id"`
	ClientID       string            `json:"clientId"`
	ClientName     string            `json:"clientName"`
	Product        string            `json:"product"`
	Schema         schema.Schema     `json:"schema"`
	FieldOrder     []string          `json:"fieldOrder"`
	Records        map[string]Record `json:"records"`
	Criteria       Criteria          `json:"criteria"`
	InvoiceOptions []string          `json:"invoiceOptions"`
	PaymentOptions []string          `json:"paymentOptions"`
}

func (w *Workset) snapshot() *Snapshot {
	records := make(map[string]Record, len(w.Records))
	for id, rec := range w.Records {
		cp := make(Record, len(rec))
		for fid, cell := range rec {
			cp[fid] = cell
		}
		records[id] = cp
	}
	invoice, payment := FilterOptions(w.Schema)
	return &Snapshot{
		ID:             w.ID,
		ClientID:       w.ClientID,
		ClientName:     w.ClientName,
		Product:        w.Product,
		Schema:         schema.Clone(w.Schema),
		FieldOrder:     schema.Sorted(w.Schema),
		Records:        records,
		Criteria:       w.Criteria,
		InvoiceOptions: invoice,
		PaymentOptions: payment,
	}
}

// Manager holds the live worksets, addressed by opaque handles.
type Manager struct {
	mu        sync.Mutex
	records   *Adapter
	templates *templates.Adapter
	worksets  map[string]*Workset
}

// NewManager creates a workset manager.
func NewManager(records *Adapter, tmpl *templates.Adapter) *Manager {
	return &Manager{
		records:   records,
		templates: tmpl,
		worksets:  map[string]*Workset{},
	}
}

// Open resolves the client's schema for product, loads all records and
// starts a workset with no filter applied.
func (m *Manager) Open(clientID, product string) (*Snapshot, error) {
	client, err := m.templates.LoadClient(clientID)
	if err != nil {
		return nil, err
	}
	s, err := m.templates.LoadSchema(clientID, product)
	if err != nil {
		return nil, err
	}
	recs, err := m.records.LoadRecords(clientID, product)
	if err != nil {
		return nil, err
	}

	w := &Workset{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ClientName: client.ClientName,
		Product:    product,
		Schema:     s,
		Records:    recs,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.worksets[w.ID] = w
	return w.snapshot(), nil
}

// Close drops a workset without saving.
func (m *Manager) Close(worksetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.worksets, worksetID)
}

// Snapshot returns the current view of a workset.
func (m *Manager) Snapshot(worksetID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.locked(worksetID)
	if err != nil {
		return nil, err
	}
	return w.snapshot(), nil
}

// Refilter reloads the workset's records from the store and applies the
// criteria. Unsaved edits are discarded, as on every reload. When several
// refilters race, only the newest request's result lands; the returned
// snapshot always reflects the workset's current state.
func (m *Manager) Refilter(worksetID string, c Criteria) (*Snapshot, error) {
	seq, clientID, product, s, err := m.beginLoad(worksetID)
	if err != nil {
		return nil, err
	}

	recs, err := m.records.LoadRecords(clientID, product)
	if err != nil {
		return nil, err
	}
	filtered := Filter(s, recs, c)

	return m.completeLoad(worksetID, seq, filtered, c)
}

// beginLoad stamps a new load request and captures what it needs from the
// workset.
func (m *Manager) beginLoad(worksetID string) (uint64, string, string, schema.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.locked(worksetID)
	if err != nil {
		return 0, "", "", nil, err
	}
	w.seq++
	return w.seq, w.ClientID, w.Product, schema.Clone(w.Schema), nil
}

// completeLoad applies a finished load only when it is still the newest
// request for the workset. Stale results are discarded.
func (m *Manager) completeLoad(worksetID string, seq uint64, recs map[string]Record, c Criteria) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.locked(worksetID)
	if err != nil {
		return nil, err
	}
	if seq == w.seq {
		w.Records = recs
		w.Criteria = c
	}
	return w.snapshot(), nil
}

// SetCell writes one cell after checking the acting role's edit policy
// and coercing the value against the field type.
func (m *Manager) SetCell(worksetID, recordID, fieldID, value string, role schema.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.locked(worksetID)
	if err != nil {
		return err
	}
	rec, ok := w.Records[recordID]
	if !ok {
		return types.ErrNotFound
	}
	f, ok := w.Schema[fieldID]
	if !ok {
		return types.ErrNotFound
	}
	if !schema.CanEdit(f, role) {
		return types.ErrForbidden
	}
	coerced, err := schema.Coerce(f, value)
	if err != nil {
		return err
	}
	rec[fieldID] = Cell{Value: types.FlexString(coerced)}
	return nil
}

// AddRecord appends an empty record carrying every schema field.
func (m *Manager) AddRecord(worksetID string, role schema.Role) (string, error) {
	if !schema.CanEditAny(role) {
		return "", types.ErrForbidden
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.locked(worksetID)
	if err != nil {
		return "", err
	}

	id := fmt.Sprintf("record_%d", time.Now().UnixMilli())
	for {
		if _, exists := w.Records[id]; !exists {
			break
		}
		id += "0"
	}
	rec := make(Record, len(w.Schema))
	for fid := range w.Schema {
		rec[fid] = Cell{}
	}
	w.Records[id] = rec
	return id, nil
}

// DeleteRecord removes a record from the working set.
func (m *Manager) DeleteRecord(worksetID, recordID string, role schema.Role) error {
	if !schema.CanEditAny(role) {
		return types.ErrForbidden
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.locked(worksetID)
	if err != nil {
		return err
	}
	if _, ok := w.Records[recordID]; !ok {
		return types.ErrNotFound
	}
	delete(w.Records, recordID)
	return nil
}

// Save persists the working set as the whole record document for the
// client product. Months not represented in the working set are dropped.
func (m *Manager) Save(worksetID string, role schema.Role) error {
	if !schema.CanEditAny(role) {
		return types.ErrForbidden
	}
	m.mu.Lock()
	w, err := m.locked(worksetID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	clientID, product := w.ClientID, w.Product
	s := schema.Clone(w.Schema)
	flat := make(map[string]Record, len(w.Records))
	for id, rec := range w.Records {
		cp := make(Record, len(rec))
		for fid, cell := range rec {
			cp[fid] = cell
		}
		flat[id] = cp
	}
	m.mu.Unlock()

	return m.records.SaveRecords(clientID, product, s, flat)
}

func (m *Manager) locked(worksetID string) (*Workset, error) {
	w, ok := m.worksets[worksetID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return w, nil
}
