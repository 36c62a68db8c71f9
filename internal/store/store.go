// Package store persists the billing document tree as path-keyed JSON
// documents. Paths are slash-separated ("clients/client_1", "billingData/
// client_1/widgets"); a write replaces the whole document at its path.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invosuite/billdesk/internal/models"
	"github.com/invosuite/billdesk/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"
)

const pathIndex = "idx_store_documents_path"

// Store reads and writes JSON documents keyed by path.
type Store struct {
	DB *gorm.DB
}

// New creates a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// byPath starts a query pinned to the path index. Index hints are MySQL
// syntax only; other dialects plan off the unique index on their own.
func (s *Store) byPath() *gorm.DB {
	if s.DB.Dialector.Name() == "mysql" {
		return s.DB.Clauses(hints.UseIndex(pathIndex))
	}
	return s.DB
}

// Get loads the document at path into out. Returns types.ErrNotFound when
// no document exists at that path.
func (s *Store) Get(path string, out interface{}) error {
	raw, err := s.GetRaw(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}

// GetRaw loads the raw JSON document at path.
func (s *Store) GetRaw(path string) (json.RawMessage, error) {
	var doc models.StoreDocument
	err := s.byPath().
		Where("path = ?", path).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", path, err)
	}
	return json.RawMessage(doc.Value.JSON), nil
}

// Exists reports whether a document exists at path.
func (s *Store) Exists(path string) (bool, error) {
	var count int64
	err := s.byPath().Model(&models.StoreDocument{}).
		Where("path = ?", path).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: exists %s: %w", path, err)
	}
	return count > 0, nil
}

// Set writes value as the document at path, replacing any prior document.
func (s *Store) Set(path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	return s.SetRaw(path, raw)
}

// SetRaw writes raw JSON as the document at path.
func (s *Store) SetRaw(path string, raw json.RawMessage) error {
	doc := models.StoreDocument{
		Path:  path,
		Value: models.JSON{JSON: datatypes.JSON(raw)},
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at path. Returns types.ErrNotFound when no
// document exists at that path.
func (s *Store) Delete(path string) error {
	result := s.DB.Where("path = ?", path).Delete(&models.StoreDocument{})
	if result.Error != nil {
		return fmt.Errorf("store: delete %s: %w", path, result.Error)
	}
	if result.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeletePrefix removes the document at prefix and every document below it.
func (s *Store) DeletePrefix(prefix string) error {
	err := s.DB.Where("path = ? OR path LIKE ? ESCAPE '!'", prefix, likeChild(prefix)).
		Delete(&models.StoreDocument{}).Error
	if err != nil {
		return fmt.Errorf("store: delete prefix %s: %w", prefix, err)
	}
	return nil
}

// Children returns the direct children of prefix, keyed by their final path
// segment. Documents deeper in the tree are excluded. An empty map means
// the prefix has no children.
func (s *Store) Children(prefix string) (map[string]json.RawMessage, error) {
	var docs []models.StoreDocument
	err := s.byPath().
		Where("path LIKE ? ESCAPE '!' AND path NOT LIKE ? ESCAPE '!'", likeChild(prefix), likeGrandchild(prefix)).
		Order("path").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("store: children %s: %w", prefix, err)
	}

	children := make(map[string]json.RawMessage, len(docs))
	for _, doc := range docs {
		key := doc.Path[strings.LastIndex(doc.Path, "/")+1:]
		children[key] = json.RawMessage(doc.Value.JSON)
	}
	return children, nil
}

// likeEscaper makes a path literal safe inside a LIKE pattern. Generated
// ids carry the _ wildcard ("client_<millis>"), so every prefix must be
// escaped. '!' is the escape character on all supported dialects.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likeChild(prefix string) string {
	return likeEscaper.Replace(prefix) + "/%"
}

func likeGrandchild(prefix string) string {
	return likeEscaper.Replace(prefix) + "/%/%"
}
