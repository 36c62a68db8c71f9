package templates

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/types"
)

// Draft is one in-progress template editing session. Drafts live in server
// memory and touch the store only on open and save. Working field maps are
// kept for deselected products so toggling a product off and back on does
// not lose edits; only selected products are persisted.
type Draft struct {
	ID         string                   `json:"id"`
	ClientID   string                   `json:"clientId,omitempty"`
	ClientName string                   `json:"clientName"`
	Products   []string                 `json:"products"`
	Active     string                   `json:"active"`
	Schemas    map[string]schema.Schema `json:"schemas"`
}

func (d *Draft) clone() *Draft {
	out := *d
	out.Products = append([]string(nil), d.Products...)
	out.Schemas = make(map[string]schema.Schema, len(d.Schemas))
	for p, s := range d.Schemas {
		out.Schemas[p] = schema.Clone(s)
	}
	return &out
}

func (d *Draft) selected(product string) bool {
	for _, p := range d.Products {
		if p == product {
			return true
		}
	}
	return false
}

func (d *Draft) activeSchema() (schema.Schema, error) {
	s, ok := d.Schemas[d.Active]
	if !ok {
		return nil, types.NewValidationError("product", "no active product")
	}
	return s, nil
}

// Editor manages template drafts addressed by opaque handles.
type Editor struct {
	mu      sync.Mutex
	adapter *Adapter
	drafts  map[string]*Draft
}

// NewEditor creates a draft manager backed by the given adapter.
func NewEditor(adapter *Adapter) *Editor {
	return &Editor{
		adapter: adapter,
		drafts:  map[string]*Draft{},
	}
}

// New opens a draft for a new client covering the given products.
func (e *Editor) New(products []string) (*Draft, error) {
	if len(products) == 0 {
		return nil, types.NewValidationError("products", "at least one product is required")
	}
	d := &Draft{
		ID:      uuid.NewString(),
		Active:  products[0],
		Schemas: map[string]schema.Schema{},
	}
	for _, p := range products {
		d.Products = append(d.Products, p)
		d.Schemas[p] = schema.Mandatory()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.drafts[d.ID] = d
	return d.clone(), nil
}

// Open loads an existing client into a fresh draft. Every product schema
// is resolved through the mandatory overlay, so drafts of pre-mandatory
// documents edit a complete schema.
func (e *Editor) Open(clientID string) (*Draft, error) {
	client, err := e.adapter.LoadClient(clientID)
	if err != nil {
		return nil, err
	}
	products := make([]string, 0, len(client.Schemas))
	for p := range client.Schemas {
		products = append(products, p)
	}
	sort.Strings(products)

	d := &Draft{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ClientName: client.ClientName,
		Products:   products,
		Schemas:    map[string]schema.Schema{},
	}
	for _, p := range products {
		s, err := e.adapter.LoadSchema(clientID, p)
		if err != nil {
			return nil, err
		}
		d.Schemas[p] = s
	}
	if len(products) > 0 {
		d.Active = products[0]
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.drafts[d.ID] = d
	return d.clone(), nil
}

// Get returns a snapshot of a draft.
func (e *Editor) Get(draftID string) (*Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return nil, err
	}
	return d.clone(), nil
}

// Discard drops a draft without saving.
func (e *Editor) Discard(draftID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.drafts, draftID)
}

// SetClientName updates the draft's client name.
func (e *Editor) SetClientName(draftID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return err
	}
	d.ClientName = name
	return nil
}

// SetActive switches the product whose fields are being edited.
func (e *Editor) SetActive(draftID, product string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return err
	}
	if !d.selected(product) {
		return types.NewValidationError("product", "product is not selected")
	}
	d.Active = product
	return nil
}

// ToggleProduct selects or deselects a product. Deselecting the last
// remaining product is rejected.
func (e *Editor) ToggleProduct(draftID, product string) error {
	if product == "" {
		return types.NewValidationError("product", "product is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return err
	}

	if d.selected(product) {
		if len(d.Products) == 1 {
			return types.NewValidationError("product", "at least one product must stay selected")
		}
		kept := d.Products[:0]
		for _, p := range d.Products {
			if p != product {
				kept = append(kept, p)
			}
		}
		d.Products = kept
		if d.Active == product {
			d.Active = d.Products[0]
		}
		return nil
	}

	d.Products = append(d.Products, product)
	if _, ok := d.Schemas[product]; !ok {
		d.Schemas[product] = schema.Mandatory()
	}
	return nil
}

// AddField appends a field to the active product's schema. Dropdown values
// split on commas with each token trimmed; empty tokens are kept as typed.
// The new field id is max f<N> plus one and its index follows the current
// highest.
func (e *Editor) AddField(draftID, name string, ftype schema.FieldType, values string, perms schema.Permissions) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", types.NewValidationError("name", "field name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return "", err
	}
	s, err := d.activeSchema()
	if err != nil {
		return "", err
	}

	id := schema.NextFieldID(s)
	s[id] = schema.Field{
		Name:        name,
		Type:        ftype,
		Values:      splitValues(ftype, values),
		Index:       schema.NextIndex(s),
		Permissions: perms,
	}
	return id, nil
}

// EditField overwrites a field's name, type, values and permissions. The
// field keeps its id and display index.
func (e *Editor) EditField(draftID, fieldID, name string, ftype schema.FieldType, values string, perms schema.Permissions) error {
	if strings.TrimSpace(name) == "" {
		return types.NewValidationError("name", "field name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return err
	}
	s, err := d.activeSchema()
	if err != nil {
		return err
	}
	f, ok := s[fieldID]
	if !ok {
		return types.ErrNotFound
	}

	f.Name = name
	f.Type = ftype
	f.Values = splitValues(ftype, values)
	f.Permissions = perms
	s[fieldID] = f
	return nil
}

// DeleteField removes a field from the active product's schema. Mandatory
// fields cannot be deleted; the schema is left unchanged.
func (e *Editor) DeleteField(draftID, fieldID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return err
	}
	s, err := d.activeSchema()
	if err != nil {
		return err
	}
	if schema.IsMandatory(fieldID) {
		return types.NewValidationError(fieldID, "mandatory fields cannot be deleted")
	}
	if _, ok := s[fieldID]; !ok {
		return types.ErrNotFound
	}
	delete(s, fieldID)
	return nil
}

// MoveField swaps a field's display index with its sorted neighbor in the
// given direction ("up" or "down"). Moving past either end is a no-op.
func (e *Editor) MoveField(draftID, fieldID, direction string) error {
	if direction != "up" && direction != "down" {
		return types.NewValidationError("direction", "direction must be up or down")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return err
	}
	s, err := d.activeSchema()
	if err != nil {
		return err
	}
	if _, ok := s[fieldID]; !ok {
		return types.ErrNotFound
	}

	ids := schema.Sorted(s)
	pos := 0
	for i, id := range ids {
		if id == fieldID {
			pos = i
			break
		}
	}
	other := pos - 1
	if direction == "down" {
		other = pos + 1
	}
	if other < 0 || other >= len(ids) {
		return nil
	}

	a, b := s[ids[pos]], s[ids[other]]
	a.Index, b.Index = b.Index, a.Index
	s[ids[pos]], s[ids[other]] = a, b
	return nil
}

// Save persists the draft as one client document write and drops the
// draft on success. Only selected products are written.
func (e *Editor) Save(draftID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.locked(draftID)
	if err != nil {
		return "", err
	}

	schemas := make(map[string]schema.Schema, len(d.Products))
	for _, p := range d.Products {
		schemas[p] = d.Schemas[p]
	}
	clientID, err := e.adapter.SaveClient(d.ClientID, d.ClientName, schemas)
	if err != nil {
		return "", err
	}
	delete(e.drafts, draftID)
	return clientID, nil
}

func (e *Editor) locked(draftID string) (*Draft, error) {
	d, ok := e.drafts[draftID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return d, nil
}

func splitValues(ftype schema.FieldType, values string) []string {
	if ftype != schema.FieldDropdown {
		return nil
	}
	tokens := strings.Split(values, ",")
	for i, t := range tokens {
		tokens[i] = strings.TrimSpace(t)
	}
	return tokens
}
