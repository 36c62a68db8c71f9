package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/authorizerdev/authorizer-go"
	"github.com/invosuite/billdesk/internal/config"
	"github.com/invosuite/billdesk/internal/utils"
	"github.com/sirupsen/logrus"
)

var (
	authClient *authorizer.AuthorizerClient
	authOnce   sync.Once
)

// IsAuthorizerInitialized returns true if the Authorizer client is initialized
func IsAuthorizerInitialized() bool {
	return authClient != nil
}

// InitAuthorizer initializes the Authorizer client (singleton pattern)
func InitAuthorizer(cfg *config.Config, requestProtocol, requestHost string) error {
	var initErr error

	authOnce.Do(func() {
		// Ping the Authorizer service first
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			initErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
		logrus.WithFields(logrus.Fields{
			"authorizerURL": cfg.AuthzURL,
			"clientID":      cfg.AuthzClientID,
			"redirectURL":   redirectURL,
		}).Info("initializing authorizer")

		var err error
		authClient, err = authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			initErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
	})

	return initErr
}

// ValidateSession validates a session cookie and returns the identity user.
func ValidateSession(cookie string) (*authorizer.User, error) {
	if authClient == nil {
		return nil, fmt.Errorf("authorizer client not initialized")
	}

	res, err := authClient.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}
	return res.User, nil
}

// identityContext is a second, independently configured connection to the
// Authorizer service. Admin operations (user creation, password resets) go
// through it as raw GraphQL so the acting admin's own session is never
// touched.
type identityContext struct {
	url         string
	adminSecret string
	client      *http.Client
}

func newIdentityContext(cfg *config.Config) *identityContext {
	return &identityContext{
		url:         strings.TrimSuffix(cfg.AuthzURL, "/") + "/graphql",
		adminSecret: cfg.AuthzAdminSecret,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// graphql posts one GraphQL request. Admin-only mutations send the admin
// secret header; the session cookie is never forwarded.
func (ic *identityContext) graphql(query string, variables map[string]interface{}, admin bool) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"query":     query,
		"variables": variables,
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", ic.url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("x-authorizer-admin-secret", ic.adminSecret)
	}

	resp, err := ic.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %v, body: %s", err, string(body))
	}

	if errs, ok := result["errors"].([]interface{}); ok && len(errs) > 0 {
		if first, ok := errs[0].(map[string]interface{}); ok {
			if msg, ok := first["message"].(string); ok {
				return nil, &AuthError{Message: msg}
			}
		}
		return nil, fmt.Errorf("GraphQL error: %v", errs[0])
	}

	data, ok := result["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("no data in response, body: %s", string(body))
	}
	return data, nil
}

// AuthError carries a raw identity-service error message.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// FriendlyAuthMessage maps known identity-service errors to user-facing
// text. Unknown errors fall back to a generic message.
func FriendlyAuthMessage(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "bad user credentials"), strings.Contains(msg, "invalid password"):
		return "The current password is incorrect."
	case strings.Contains(msg, "user not found"):
		return "No account exists for that email."
	case strings.Contains(msg, "password") && strings.Contains(msg, "weak"):
		return "The new password is too weak."
	case strings.Contains(msg, "already signed up"), strings.Contains(msg, "already exists"):
		return "An account already exists for that email."
	}
	return "The request could not be completed. Please try again."
}

// signup creates an identity-service account and returns the new user's
// id.
func (ic *identityContext) signup(email, password string) (string, error) {
	query := `mutation signup($params: SignUpInput!) {
		signup(params: $params) {
			user {
				id
				email
			}
		}
	}`
	data, err := ic.graphql(query, map[string]interface{}{
		"params": map[string]interface{}{
			"email":            email,
			"password":         password,
			"confirm_password": password,
		},
	}, false)
	if err != nil {
		return "", err
	}

	signup, _ := data["signup"].(map[string]interface{})
	user, _ := signup["user"].(map[string]interface{})
	id, _ := user["id"].(string)
	if id == "" {
		return "", fmt.Errorf("signup returned no user id")
	}
	return id, nil
}

// verifyPassword checks credentials with a throwaway login through the
// isolated context. The resulting session is discarded.
func (ic *identityContext) verifyPassword(email, password string) error {
	query := `mutation login($params: LoginInput!) {
		login(params: $params) {
			user {
				id
			}
		}
	}`
	_, err := ic.graphql(query, map[string]interface{}{
		"params": map[string]interface{}{
			"email":    email,
			"password": password,
		},
	}, false)
	return err
}

// updatePassword sets a new password through the admin mutation.
func (ic *identityContext) updatePassword(userID, newPassword string) error {
	query := `mutation updateUser($params: UpdateUserInput!) {
		_update_user(params: $params) {
			id
		}
	}`
	_, err := ic.graphql(query, map[string]interface{}{
		"params": map[string]interface{}{
			"id":       userID,
			"password": newPassword,
		},
	}, true)
	return err
}

// deleteUser removes an identity-service account through the admin
// mutation.
func (ic *identityContext) deleteUser(email string) error {
	query := `mutation deleteUser($params: DeleteUserInput!) {
		_delete_user(params: $params) {
			message
		}
	}`
	_, err := ic.graphql(query, map[string]interface{}{
		"params": map[string]interface{}{
			"email": email,
		},
	}, true)
	return err
}
