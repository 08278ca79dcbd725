package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestNewCLIError creates and validates a CLI error
func TestNewCLIError(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewCLIError(ErrorTypeValidation, "Test error", cause)

	if err.Type != ErrorTypeValidation {
		t.Errorf("Expected type %s, got %s", ErrorTypeValidation, err.Type)
	}
	if err.Message != "Test error" {
		t.Errorf("Expected message 'Test error', got '%s'", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("Cause should be reachable through Unwrap")
	}
}

// TestWithSuggestion adds suggestion to error
func TestWithSuggestion(t *testing.T) {
	err := NewCLIError(ErrorTypeValidation, "Test", nil).WithSuggestion("Try something else")

	if !err.HasSuggestion() {
		t.Error("HasSuggestion returned false")
	}
	if err.Suggestion != "Try something else" {
		t.Errorf("Unexpected suggestion '%s'", err.Suggestion)
	}
}

// TestConstructors validates the type of each constructor
func TestConstructors(t *testing.T) {
	testCases := []struct {
		name string
		err  *CLIError
		want ErrorType
	}{
		{"network", NetworkError("down"), ErrorTypeNetwork},
		{"timeout", TimeoutError(), ErrorTypeTimeout},
		{"business", BusinessError("Conversation is archived"), ErrorTypeBusiness},
		{"auth", AuthError("Invalid credentials"), ErrorTypeAuth},
		{"session", SessionExpiredError(), ErrorTypeSessionExpired},
		{"authorization", AuthorizationError("not a participant"), ErrorTypeAuthorization},
		{"validation", ValidationError("username", "cannot be empty"), ErrorTypeValidation},
		{"file", FileNotFoundError("/tmp/x.png"), ErrorTypeFileNotFound},
		{"format", InvalidFormatError("image data", nil), ErrorTypeInvalidFormat},
		{"server", ServerError(), ErrorTypeServer},
		{"not found", NotFoundError("Conversation", "c1"), ErrorTypeNotFound},
		{"conflict", ConflictError("already connected"), ErrorTypeConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Type != tc.want {
				t.Errorf("Expected type %s, got %s", tc.want, tc.err.Type)
			}
			if tc.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

// TestBusinessErrorDefaultMessage validates the empty message fallback
func TestBusinessErrorDefaultMessage(t *testing.T) {
	if BusinessError("").Message == "" {
		t.Error("Business error should fall back to a default message")
	}
}

// TestIsType validates wrapped type detection
func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("failed to load profile: %w", NotFoundError("User", "u1"))

	if !IsNotFound(wrapped) {
		t.Error("Wrapped not found error should be detected")
	}
	if IsType(wrapped, ErrorTypeServer) {
		t.Error("Not found error should not be a server error")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("Plain error should not be not found")
	}
}

// TestCategorizeError validates error categorization
func TestCategorizeError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{"refused", errors.New("dial tcp: connection refused"), ErrorTypeNetwork},
		{"401", errors.New("status 401"), ErrorTypeAuth},
		{"403", errors.New("403 forbidden"), ErrorTypeAuthorization},
		{"404", errors.New("resource not found"), ErrorTypeNotFound},
		{"500", errors.New("internal server error"), ErrorTypeServer},
		{"other", errors.New("something odd"), ErrorTypeUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategorizeError(tc.err).Type; got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}

	if CategorizeError(nil) != nil {
		t.Error("nil should categorize to nil")
	}
}

// TestCategorizeKeepsCLIError validates existing CLIErrors pass through
func TestCategorizeKeepsCLIError(t *testing.T) {
	original := ValidationError("content", "cannot be empty")
	if CategorizeError(fmt.Errorf("wrap: %w", original)) != original {
		t.Error("CategorizeError should return the wrapped CLIError")
	}
}

// TestFormatError validates user-facing formatting
func TestFormatError(t *testing.T) {
	msg := FormatError(AuthorizationError("You are not a participant in this conversation"))

	if !strings.Contains(msg, "(authorization)") {
		t.Errorf("Expected type in message, got %q", msg)
	}
	if !strings.Contains(msg, "not a participant") {
		t.Errorf("Expected message text, got %q", msg)
	}
	if !strings.Contains(msg, "Suggestion:") {
		t.Errorf("Expected suggestion, got %q", msg)
	}

	if FormatError(nil) != "" {
		t.Error("FormatError(nil) should be empty")
	}

	unknown := FormatError(errors.New("odd"))
	if strings.Contains(unknown, "(unknown)") {
		t.Errorf("Unknown type should not be labelled, got %q", unknown)
	}
}
