package credentials

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/feedsync/pkg/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Credentials struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	SavedAt     time.Time `json:"saved_at"`
}

// Load loads credentials from disk
func Load() (*Credentials, error) {
	path := config.GetCredentialsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // not logged in yet
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// Save saves credentials to disk
func Save(creds *Credentials) error {
	path := config.GetCredentialsPath()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	// owner read/write only
	return os.WriteFile(path, data, 0600)
}

// Delete deletes credentials from disk
func Delete() error {
	path := config.GetCredentialsPath()
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsExpired checks the token's exp claim. Tokens without one never expire.
func (c *Credentials) IsExpired() bool {
	exp, err := ExpiresAt(c.AccessToken)
	if err != nil || exp.IsZero() {
		return false
	}
	return time.Now().After(exp)
}

// IsValid checks if credentials are usable
func (c *Credentials) IsValid() bool {
	return c != nil && c.AccessToken != "" && !c.IsExpired()
}

// Viewer returns the viewer id, preferring the one stored at login
func (c *Credentials) Viewer() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	id, _ := ViewerID(c.AccessToken)
	return id
}

func parseClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// ViewerID extracts the user id from the token payload without verifying the
// signature; the server remains authoritative. The id is taken from the
// "id" claim, then "userId", then "sub".
func ViewerID(token string) (string, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return "", err
	}

	for _, key := range []string{"id", "userId", "sub"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", fmt.Errorf("token has no user id claim")
}

// ExpiresAt returns the token's expiry, or the zero time if it has none
func ExpiresAt(token string) (time.Time, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, err
	}
	return exp.Time, nil
}
