package credentials

import (
	"os"
	"time"

	json "github.com/json-iterator/go"
	"github.com/zfogg/circle/cli/pkg/config"
)

// Credentials is the persisted auth session
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
}

// Load loads credentials from disk. A missing file yields nil, nil.
func Load() (*Credentials, error) {
	path := config.GetCredentialsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// Save saves credentials to disk, readable by the owner only
func Save(creds *Credentials) error {
	path := config.GetCredentialsPath()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Delete removes the credentials file; a missing file is not an error
func Delete() error {
	err := os.Remove(config.GetCredentialsPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsExpired checks if the access token is expired
func (c *Credentials) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// ExpiresWithin reports whether the token expires in less than d
func (c *Credentials) ExpiresWithin(d time.Duration) bool {
	return time.Now().Add(d).After(c.ExpiresAt)
}

// IsValid checks if credentials are valid
func (c *Credentials) IsValid() bool {
	return c.AccessToken != "" && c.UserID != "" && !c.IsExpired()
}
