package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invosuite/billdesk/internal/config"
	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/store"
	"github.com/invosuite/billdesk/internal/types"
)

// User is one console user directory entry, stored at users/{uid}. The
// uid comes from the identity service; the role lives only here.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserService manages the console user directory and the identity-service
// accounts behind it.
type UserService struct {
	Store    *store.Store
	identity *identityContext
}

// NewUserService creates a user service.
func NewUserService(s *store.Store, cfg *config.Config) *UserService {
	return &UserService{
		Store:    s,
		identity: newIdentityContext(cfg),
	}
}

func userPath(uid string) string {
	return "users/" + uid
}

// Get loads one directory entry.
func (s *UserService) Get(uid string) (*User, error) {
	var u User
	if err := s.Store.Get(userPath(uid), &u); err != nil {
		return nil, err
	}
	u.ID = uid
	return &u, nil
}

// Role resolves the acting role for uid. Users without a directory entry
// act as members.
func (s *UserService) Role(uid string) schema.Role {
	u, err := s.Get(uid)
	if err != nil {
		return schema.RoleMember
	}
	return schema.ParseRole(u.Role)
}

// List returns all directory entries ordered by email.
func (s *UserService) List() ([]*User, error) {
	children, err := s.Store.Children("users")
	if err != nil {
		return nil, err
	}
	users := make([]*User, 0, len(children))
	for uid, raw := range children {
		var u User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("users: entry %s: %w", uid, err)
		}
		u.ID = uid
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Email < users[j].Email
	})
	return users, nil
}

// Create provisions an identity-service account with a temporary password
// through the isolated identity context, then writes the directory entry.
// The acting admin's session is unaffected.
func (s *UserService) Create(email, role, tempPassword string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, types.NewValidationError("email", "email is required")
	}
	if tempPassword == "" {
		return nil, types.NewValidationError("password", "a temporary password is required")
	}
	role = string(schema.ParseRole(role))

	uid, err := s.identity.signup(email, tempPassword)
	if err != nil {
		return nil, err
	}

	u := &User{ID: uid, Email: email, Role: role}
	if err := s.Store.Set(userPath(uid), map[string]string{
		"email": u.Email,
		"role":  u.Role,
	}); err != nil {
		return nil, err
	}
	return u, nil
}

// Update rewrites a directory entry's email and role.
func (s *UserService) Update(uid, email, role string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, types.NewValidationError("email", "email is required")
	}
	if _, err := s.Get(uid); err != nil {
		return nil, err
	}

	u := &User{ID: uid, Email: email, Role: string(schema.ParseRole(role))}
	if err := s.Store.Set(userPath(uid), map[string]string{
		"email": u.Email,
		"role":  u.Role,
	}); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a directory entry and the identity-service account
// behind it.
func (s *UserService) Delete(uid string) error {
	u, err := s.Get(uid)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(userPath(uid)); err != nil {
		return err
	}
	if err := s.identity.deleteUser(u.Email); err != nil {
		// Directory entry is gone; the orphaned identity account can be
		// cleaned up by retrying from the identity dashboard.
		return err
	}
	return nil
}

// ChangePassword re-authenticates with the current password, then sets
// the new one. Identity errors surface as AuthError for friendly mapping.
func (s *UserService) ChangePassword(uid, currentPassword, newPassword string) error {
	if newPassword == "" {
		return types.NewValidationError("newPassword", "a new password is required")
	}
	u, err := s.Get(uid)
	if err != nil {
		return err
	}
	if err := s.identity.verifyPassword(u.Email, currentPassword); err != nil {
		return err
	}
	return s.identity.updatePassword(uid, newPassword)
}
