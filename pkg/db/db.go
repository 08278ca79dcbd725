// Package db is a small query builder for the hosted database's REST
// interface (PostgREST dialect). Filters become query parameters such as
// user_id=eq.42; writes return the affected rows.
package db

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
	"github.com/zfogg/circle/cli/pkg/client"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
)

const (
	singleObjectMediaType = "application/vnd.pgrst.object+json"

	// CodeNoRows is returned when Single matches nothing
	CodeNoRows = "PGRST116"
	// CodeJWTExpired is returned when the bearer token has expired
	CodeJWTExpired = "PGRST301"
	// CodeUniqueViolation is the Postgres unique constraint code
	CodeUniqueViolation = "23505"
	// CodeForeignKeyViolation is the Postgres foreign key code
	CodeForeignKeyViolation = "23503"
)

// QueryError is the error body returned by the database API
type QueryError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
	StatusCode int    `json:"-"`
}

func (e *QueryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s (%s)", e.StatusCode, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client runs queries against one database project
type Client struct {
	http   *resty.Client
	apiKey string
}

// New wraps an HTTP client whose base URL points at the REST endpoint
func New(httpClient *resty.Client, apiKey string) *Client {
	httpClient.SetHeader("apikey", apiKey)
	return &Client{http: httpClient, apiKey: apiKey}
}

// From starts a query on table
func (c *Client) From(table string) *Query {
	return &Query{
		client: c,
		table:  table,
		method: http.MethodGet,
		params: url.Values{},
	}
}

// Query is built by chaining filters and finished with Execute
type Query struct {
	client *Client
	table  string
	method string
	params url.Values
	body   interface{}
	single bool
	count  bool
}

// Select chooses columns, including embedded relations like user(*)
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	return q
}

// Eq filters rows where column equals value
func (q *Query) Eq(column string, value interface{}) *Query {
	return q.filter(column, "eq", value)
}

// Neq filters rows where column differs from value
func (q *Query) Neq(column string, value interface{}) *Query {
	return q.filter(column, "neq", value)
}

// In filters rows where column is one of values
func (q *Query) In(column string, values []string) *Query {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteValue(v)
	}
	q.params.Add(column, "in.("+strings.Join(quoted, ",")+")")
	return q
}

// Or adds a disjunction such as "sender_id.eq.1,receiver_id.eq.1"
func (q *Query) Or(expr string) *Query {
	q.params.Add("or", "("+expr+")")
	return q
}

// Order sorts by column
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	if prev := q.params.Get("order"); prev != "" {
		q.params.Set("order", prev+","+column+"."+dir)
	} else {
		q.params.Set("order", column+"."+dir)
	}
	return q
}

// Limit caps the number of rows
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Range selects rows from..to inclusive
func (q *Query) Range(from, to int) *Query {
	q.params.Set("offset", strconv.Itoa(from))
	q.params.Set("limit", strconv.Itoa(to-from+1))
	return q
}

// Single expects exactly one row and decodes it as an object
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// Insert adds rows; body is a struct or a slice of structs
func (q *Query) Insert(body interface{}) *Query {
	q.method = http.MethodPost
	q.body = body
	return q
}

// Update modifies the rows matched by the filters
func (q *Query) Update(body interface{}) *Query {
	q.method = http.MethodPatch
	q.body = body
	return q
}

// Delete removes the rows matched by the filters
func (q *Query) Delete() *Query {
	q.method = http.MethodDelete
	return q
}

// Table returns the target table
func (q *Query) Table() string {
	return q.table
}

// Params returns the encoded query string
func (q *Query) Params() string {
	return q.params.Encode()
}

// Execute runs the query and decodes the result into target, which may be
// nil when the caller does not need the rows.
func (q *Query) Execute(ctx context.Context, target interface{}) error {
	if (q.method == http.MethodPatch || q.method == http.MethodDelete) && !q.hasFilter() {
		return clierrors.ValidationError("query", "update and delete need a filter")
	}

	req := q.client.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q.params)

	if !client.IsAuthenticated(q.client.http) && q.client.apiKey != "" {
		req.SetAuthToken(q.client.apiKey)
	}
	if q.single {
		req.SetHeader("Accept", singleObjectMediaType)
	}
	if q.method != http.MethodGet {
		req.SetHeader("Prefer", "return=representation")
	}
	if q.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(q.body)
	}

	logger.Debug("Database query", "method", q.method, "table", q.table, "params", q.params.Encode())

	resp, err := req.Execute(q.method, "/"+q.table)
	if err != nil {
		return clierrors.CategorizeError(err)
	}
	if !resp.IsSuccess() {
		return parseError(resp)
	}

	if target == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return clierrors.InvalidFormatError(q.table+" rows", err)
	}
	return nil
}

func (q *Query) filter(column, op string, value interface{}) *Query {
	q.params.Add(column, op+"."+fmt.Sprint(value))
	return q
}

func (q *Query) hasFilter() bool {
	for k := range q.params {
		switch k {
		case "select", "order", "limit", "offset":
		default:
			return true
		}
	}
	return false
}

// QuoteValue wraps values containing reserved characters in double quotes
// so they can be embedded in in(...) lists and or=(...) filters
func QuoteValue(v string) string {
	if strings.ContainsAny(v, ",.:()\" ") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}

func parseError(resp *resty.Response) error {
	status := resp.StatusCode()

	qe := &QueryError{StatusCode: status}
	if err := json.Unmarshal(resp.Body(), qe); err != nil || qe.Message == "" {
		qe.Message = http.StatusText(status)
	}

	switch {
	case qe.Code == CodeNoRows:
		return clierrors.NewCLIError(clierrors.ErrorTypeNotFound, "No matching record", qe).WithStatus(status)
	case qe.Code == CodeJWTExpired || status == http.StatusUnauthorized:
		return clierrors.SessionExpiredError().WithCause(qe).WithStatus(status)
	case qe.Code == CodeUniqueViolation || status == http.StatusConflict:
		return clierrors.ConflictError(qe.Message).WithCause(qe).WithStatus(status)
	case status == http.StatusForbidden:
		return clierrors.AuthorizationError(qe.Message).WithCause(qe).WithStatus(status)
	case status == http.StatusNotFound:
		return clierrors.NewCLIError(clierrors.ErrorTypeNotFound, qe.Message, qe).WithStatus(status)
	case status >= 500:
		return clierrors.ServerError().WithCause(qe).WithStatus(status)
	default:
		return clierrors.BusinessError(qe.Message).WithCause(qe).WithStatus(status)
	}
}
