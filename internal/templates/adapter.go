// Package templates manages billing template schemas per client and
// product, including the server-held template editor drafts.
package templates

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/store"
	"github.com/invosuite/billdesk/internal/types"
)

// Client is the normalized client document. Legacy single-template
// documents are normalized into Schemas on read.
type Client struct {
	ID         string                   `json:"id"`
	ClientName string                   `json:"clientName"`
	Schemas    map[string]schema.Schema `json:"schemas"`
}

// defaultProduct is the product key legacy documents without a product
// tag belong to.
const defaultProduct = "tms"

// storedSchema wraps a product's field map in the persisted document:
// schemas hang under {product: {fields: {...}}}.
type storedSchema struct {
	Fields schema.Schema `json:"fields"`
}

// storedClient covers both document shapes: the current multi-product
// shape (schemas) and the legacy single-template shape (template+product).
type storedClient struct {
	ClientName string                  `json:"clientName"`
	Schemas    map[string]storedSchema `json:"schemas"`
	Template   *storedSchema           `json:"template"`
	Product    string                  `json:"product"`
}

func (sc *storedClient) normalize(id string) *Client {
	c := &Client{ID: id, ClientName: sc.ClientName, Schemas: map[string]schema.Schema{}}
	if sc.Schemas != nil {
		for p, s := range sc.Schemas {
			c.Schemas[p] = s.Fields
		}
		return c
	}
	if sc.Template != nil && len(sc.Template.Fields) > 0 {
		product := sc.Product
		if product == "" {
			product = defaultProduct
		}
		c.Schemas[product] = sc.Template.Fields
	}
	return c
}

// Adapter reads and writes client template documents under clients/.
type Adapter struct {
	Store *store.Store
}

// NewAdapter creates a template store adapter.
func NewAdapter(s *store.Store) *Adapter {
	return &Adapter{Store: s}
}

func clientPath(clientID string) string {
	return "clients/" + clientID
}

func billingPath(clientID string) string {
	return "billingData/" + clientID
}

// LoadClient returns the normalized client document.
func (a *Adapter) LoadClient(clientID string) (*Client, error) {
	var sc storedClient
	if err := a.Store.Get(clientPath(clientID), &sc); err != nil {
		return nil, err
	}
	return sc.normalize(clientID), nil
}

// LoadSchema resolves the effective schema for one client product: the
// mandatory field set overlaid with whatever fields the client document
// stores for that product. Stored definitions win over the defaults, so a
// renamed or repermissioned mandatory field survives the overlay.
func (a *Adapter) LoadSchema(clientID, product string) (schema.Schema, error) {
	client, err := a.LoadClient(clientID)
	if err != nil {
		return nil, err
	}
	result := schema.Mandatory()
	for id, f := range client.Schemas[product] {
		result[id] = f
	}
	return result, nil
}

// ListClients returns all client documents ordered by name.
func (a *Adapter) ListClients() ([]*Client, error) {
	children, err := a.Store.Children("clients")
	if err != nil {
		return nil, err
	}
	clients := make([]*Client, 0, len(children))
	for id, raw := range children {
		var sc storedClient
		if err := json.Unmarshal(raw, &sc); err != nil {
			return nil, fmt.Errorf("templates: client %s: %w", id, err)
		}
		clients = append(clients, sc.normalize(id))
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].ClientName != clients[j].ClientName {
			return clients[i].ClientName < clients[j].ClientName
		}
		return clients[i].ID < clients[j].ID
	})
	return clients, nil
}

// SaveClient writes a client document in one store write. An empty
// clientID creates a new client. Only the given products are written;
// billing data for products dropped from the set is left orphaned.
func (a *Adapter) SaveClient(clientID, clientName string, schemas map[string]schema.Schema) (string, error) {
	if clientName == "" {
		return "", types.NewValidationError("clientName", "client name is required")
	}
	for product, s := range schemas {
		if err := schema.Validate(s); err != nil {
			return "", fmt.Errorf("product %s: %w", product, err)
		}
	}
	if clientID == "" {
		clientID = fmt.Sprintf("client_%d", time.Now().UnixMilli())
	}
	stored := make(map[string]storedSchema, len(schemas))
	for product, s := range schemas {
		stored[product] = storedSchema{Fields: s}
	}
	doc := map[string]interface{}{
		"clientName": clientName,
		"schemas":    stored,
	}
	if err := a.Store.Set(clientPath(clientID), doc); err != nil {
		return "", err
	}
	return clientID, nil
}

// DeleteClient removes the client document and cascades over all of the
// client's billing data.
func (a *Adapter) DeleteClient(clientID string) error {
	if err := a.Store.Delete(clientPath(clientID)); err != nil {
		return err
	}
	return a.Store.DeletePrefix(billingPath(clientID))
}
