package api

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// envelope is the wrapper around every REST response
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// APIError represents an error reported by the REST backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// ParseError turns a failed response into a categorized CLI error
func ParseError(resp *resty.Response) error {
	statusCode := resp.StatusCode()

	msg := http.StatusText(statusCode)
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err == nil && env.Message != "" {
		msg = env.Message
	} else if len(resp.Body()) > 0 && len(resp.Body()) < 256 {
		msg = string(resp.Body())
	}

	cause := &APIError{StatusCode: statusCode, Message: msg}

	switch {
	case statusCode == http.StatusUnauthorized:
		return clierrors.SessionExpiredError().WithCause(cause).WithStatus(statusCode)
	case statusCode == http.StatusForbidden:
		return clierrors.AuthorizationError(msg).WithCause(cause).WithStatus(statusCode)
	case statusCode == http.StatusNotFound:
		return clierrors.NewCLIError(clierrors.ErrorTypeNotFound, msg, cause).WithStatus(statusCode)
	case statusCode == http.StatusConflict:
		return clierrors.ConflictError(msg).WithCause(cause).WithStatus(statusCode)
	case statusCode >= 500:
		return clierrors.ServerError().WithCause(cause).WithStatus(statusCode)
	default:
		return clierrors.BusinessError(msg).WithCause(cause).WithStatus(statusCode)
	}
}

// CheckResponse maps transport failures and non-2xx responses to errors
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return clierrors.CategorizeError(err)
	}

	if !resp.IsSuccess() {
		return ParseError(resp)
	}

	return nil
}

// decode unwraps the envelope of a successful response into target.
// A body with status "error" is a business failure even on HTTP 200.
func decode(resp *resty.Response, target interface{}) error {
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return clierrors.InvalidFormatError("response", err)
	}

	if env.Status == StatusError {
		return clierrors.BusinessError(env.Message).
			WithCause(&APIError{StatusCode: resp.StatusCode(), Message: env.Message}).
			WithStatus(resp.StatusCode())
	}
	if env.Status != StatusSuccess {
		return clierrors.InvalidFormatError("response", fmt.Errorf("unexpected status %q", env.Status))
	}

	if target == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return clierrors.InvalidFormatError("response data", err)
	}
	return nil
}
