package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zfogg/circle/cli/pkg/config"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := config.Init(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("config.Init failed: %v", err)
	}
	return config.GetCredentialsPath()
}

// TestCredentialsIsExpired validates token expiration check
func TestCredentialsIsExpired(t *testing.T) {
	testCases := []struct {
		expiresAt time.Time
		expect    bool
		name      string
	}{
		{time.Now().Add(-1 * time.Hour), true, "past expiration"},
		{time.Now().Add(1 * time.Hour), false, "future expiration"},
		{time.Now().Add(-1 * time.Minute), true, "recently expired"},
		{time.Now().Add(1 * time.Minute), false, "expiring soon"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{AccessToken: "test_token", ExpiresAt: tc.expiresAt}
			if got := creds.IsExpired(); got != tc.expect {
				t.Errorf("Expected IsExpired=%v, got %v", tc.expect, got)
			}
		})
	}
}

// TestCredentialsIsValid validates credential validity check
func TestCredentialsIsValid(t *testing.T) {
	testCases := []struct {
		accessToken string
		userID      string
		expiresAt   time.Time
		expect      bool
		name        string
	}{
		{"valid_token", "u1", time.Now().Add(1 * time.Hour), true, "valid credentials"},
		{"", "u1", time.Now().Add(1 * time.Hour), false, "empty access token"},
		{"valid_token", "", time.Now().Add(1 * time.Hour), false, "missing user"},
		{"valid_token", "u1", time.Now().Add(-1 * time.Hour), false, "expired token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{AccessToken: tc.accessToken, UserID: tc.userID, ExpiresAt: tc.expiresAt}
			if got := creds.IsValid(); got != tc.expect {
				t.Errorf("Expected IsValid=%v, got %v", tc.expect, got)
			}
		})
	}
}

// TestCredentialsZeroValues handles zero-valued credentials
func TestCredentialsZeroValues(t *testing.T) {
	creds := &Credentials{}

	if !creds.IsExpired() {
		t.Error("Zero-value credentials should be expired (ExpiresAt is zero)")
	}
	if creds.IsValid() {
		t.Error("Zero-value credentials should be invalid")
	}
}

// TestExpiresWithin validates the refresh window check
func TestExpiresWithin(t *testing.T) {
	creds := &Credentials{ExpiresAt: time.Now().Add(30 * time.Second)}

	if !creds.ExpiresWithin(time.Minute) {
		t.Error("Token expiring in 30s should be inside a 1m window")
	}
	if creds.ExpiresWithin(10 * time.Second) {
		t.Error("Token expiring in 30s should be outside a 10s window")
	}
}

// TestLoadMissingFile returns nil without error
func TestLoadMissingFile(t *testing.T) {
	useTempConfig(t)

	creds, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if creds != nil {
		t.Errorf("Expected nil credentials, got %+v", creds)
	}
}

// TestSaveLoadDelete validates the file lifecycle and permissions
func TestSaveLoadDelete(t *testing.T) {
	path := useTempConfig(t)

	want := &Credentials{
		AccessToken:  "access_123",
		RefreshToken: "refresh_123",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		UserID:       "user_id_123",
		Username:     "testuser",
		Email:        "test@example.com",
	}
	if err := Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.UserID != want.UserID || got.Username != want.Username {
		t.Errorf("Loaded credentials differ: %+v", got)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("Expected expiry %v, got %v", want.ExpiresAt, got.ExpiresAt)
	}

	if err := Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := Delete(); err != nil {
		t.Errorf("Second Delete should be a no-op, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Credentials file should be gone")
	}
}

// TestLoadCorruptFile surfaces decode errors
func TestLoadCorruptFile(t *testing.T) {
	path := useTempConfig(t)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Expected error for corrupt credentials")
	}
}
