package db

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/circle/cli/pkg/client"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
)

type row struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func newTestDB(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(client.New(srv.URL, 2*time.Second), "anon-key"), srv
}

func TestQueryParams(t *testing.T) {
	c := New(client.New("http://unused.test", time.Second), "k")

	q := c.From("post").
		Select("*,user(*)").
		Eq("user_id", "u1").
		Neq("status", "hidden").
		In("id", []string{"a", "b"}).
		Or("sender_id.eq.u1,receiver_id.eq.u1").
		Order("created_at", false).
		Order("id", true).
		Limit(20)

	assert.Equal(t, "post", q.Table())
	got := q.params
	assert.Equal(t, "*,user(*)", got.Get("select"))
	assert.Equal(t, "eq.u1", got.Get("user_id"))
	assert.Equal(t, "neq.hidden", got.Get("status"))
	assert.Equal(t, "in.(a,b)", got.Get("id"))
	assert.Equal(t, "(sender_id.eq.u1,receiver_id.eq.u1)", got.Get("or"))
	assert.Equal(t, "created_at.desc,id.asc", got.Get("order"))
	assert.Equal(t, "20", got.Get("limit"))
}

func TestRange(t *testing.T) {
	c := New(client.New("http://unused.test", time.Second), "k")
	q := c.From("post").Range(20, 39)
	assert.Equal(t, "20", q.params.Get("offset"))
	assert.Equal(t, "20", q.params.Get("limit"))
}

func TestInQuotesReservedCharacters(t *testing.T) {
	c := New(client.New("http://unused.test", time.Second), "k")
	q := c.From("user").In("username", []string{"a.b", "plain"})
	assert.Equal(t, `in.("a.b",plain)`, q.params.Get("username"))
}

func TestSelectSendsKeysAndDecodes(t *testing.T) {
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/post", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "eq.u1", r.URL.Query().Get("user_id"))
		io.WriteString(w, `[{"id":"p1","user_id":"u1"},{"id":"p2","user_id":"u1"}]`)
	})

	var rows []row
	require.NoError(t, c.From("post").Select("*").Eq("user_id", "u1").Execute(context.Background(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "p2", rows[1].ID)
}

func TestUserTokenWinsOverAPIKey(t *testing.T) {
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-jwt", r.Header.Get("Authorization"))
		io.WriteString(w, `[]`)
	})
	client.SetAuthToken(c.http, "user-jwt")

	var rows []row
	require.NoError(t, c.From("post").Execute(context.Background(), &rows))
}

func TestSingleUsesObjectMediaType(t *testing.T) {
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, singleObjectMediaType, r.Header.Get("Accept"))
		io.WriteString(w, `{"id":"u1","user_id":"u1"}`)
	})

	var got row
	require.NoError(t, c.From("user").Eq("id", "u1").Single().Execute(context.Background(), &got))
	assert.Equal(t, "u1", got.ID)
}

func TestSingleWithNoRowsIsNotFound(t *testing.T) {
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		io.WriteString(w, `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"The result contains 0 rows","hint":null}`)
	})

	var got row
	err := c.From("user").Eq("id", "nope").Single().Execute(context.Background(), &got)
	require.Error(t, err)
	assert.True(t, clierrors.IsNotFound(err))

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, CodeNoRows, qe.Code)
}

func TestInsertReturnsRepresentation(t *testing.T) {
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"id":"","user_id":"u1"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `[{"id":"new","user_id":"u1"}]`)
	})

	var rows []row
	require.NoError(t, c.From("like").Insert(row{UserID: "u1"}).Execute(context.Background(), &rows))
	assert.Equal(t, "new", rows[0].ID)
}

func TestUniqueViolationIsConflict(t *testing.T) {
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"code":"23505","message":"duplicate key value violates unique constraint","details":"Key (post_id, user_id) already exists.","hint":null}`)
	})

	err := c.From("like").Insert(row{UserID: "u1"}).Execute(context.Background(), nil)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeConflict))
}

func TestExpiredJWTIsSessionExpired(t *testing.T) {
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"code":"PGRST301","message":"JWT expired","details":null,"hint":null}`)
	})

	err := c.From("post").Execute(context.Background(), nil)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeSessionExpired))
}

func TestUpdateAndDeleteRequireFilter(t *testing.T) {
	var hits int
	c, _ := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.From("post").Delete().Execute(context.Background(), nil)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))

	err = c.From("post").Update(map[string]string{"content": "x"}).Execute(context.Background(), nil)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
	assert.Equal(t, 0, hits)

	require.NoError(t, c.From("post").Delete().Eq("id", "p1").Execute(context.Background(), nil))
	assert.Equal(t, 1, hits)
}
