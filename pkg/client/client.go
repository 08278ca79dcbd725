package client

import (
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/circle/cli/pkg/logger"
)

// UserAgent is sent with every request
const UserAgent = "Circle-CLI/0.1.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// New creates an HTTP client for one remote service
func New(baseURL string, timeout time.Duration) *resty.Client {
	httpClient := resty.New()

	httpClient.SetBaseURL(baseURL)
	httpClient.SetTimeout(timeout)
	httpClient.SetHeader("User-Agent", UserAgent)
	httpClient.SetHeader("Accept", "application/json")
	httpClient.SetJSONMarshaler(json.Marshal)
	httpClient.SetJSONUnmarshaler(json.Unmarshal)

	httpClient.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})

	httpClient.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"duration", resp.Time(),
		)
		return nil
	})

	return httpClient
}

// SetAuthToken sets the bearer token on c
func SetAuthToken(c *resty.Client, token string) {
	c.SetAuthToken(token)
}

// ClearAuthToken removes the bearer token from c
func ClearAuthToken(c *resty.Client) {
	c.SetAuthToken("")
	c.Header.Del("Authorization")
}

// IsAuthenticated reports whether c carries a bearer token
func IsAuthenticated(c *resty.Client) bool {
	return c.Token != ""
}
