package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster/internal/users"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, names ...string) *Server {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../migrations/sqlite/100_create_users_table.migrate.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	store := users.NewStore(db, users.WithHashCost(bcrypt.MinCost))
	for _, name := range names {
		email := strings.ToLower(strings.Fields(name)[0]) + "@doe.tld"
		password := "password"
		n := name
		_, err := store.Create(context.Background(), users.Input{Name: &n, Email: &email, Password: &password})
		require.NoError(t, err)
	}

	return New(store, nil, Config{})
}

type response struct {
	Status struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	} `json:"status"`
	Data   json.RawMessage    `json:"data"`
	Errors map[string]string  `json:"errors"`
	Links  map[string]*string `json:"links"`
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}

	return rec, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestServer_Index(t *testing.T) {
	s := newTestServer(t, "John Doe", "Mary Doe", "Nathan Doe")

	t.Run("first page", func(t *testing.T) {
		rec, body := do(t, s.Public(), httptest.NewRequest(http.MethodGet, "http://localhost:8080/users", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, http.StatusOK, body.Status.Code)
		assert.Equal(t, "OK", body.Status.Reason)

		var data []map[string]interface{}
		require.NoError(t, json.Unmarshal(body.Data, &data))
		require.Len(t, data, 2)
		assert.Equal(t, "John Doe", data[0]["name"])
		assert.Equal(t, "http://localhost:8081/users/1", data[0]["url"])
		assert.NotContains(t, data[0], "configs")
		assert.NotContains(t, data[0], "createdAt")

		assert.Equal(t, "http://localhost:8080/users?page=1", *body.Links["first"])
		assert.Nil(t, body.Links["previous"])
		assert.Equal(t, "http://localhost:8080/users?page=2", *body.Links["next"])
		assert.Equal(t, "http://localhost:8080/users?page=2", *body.Links["last"])
	})

	t.Run("last page", func(t *testing.T) {
		_, body := do(t, s.Public(), httptest.NewRequest(http.MethodGet, "http://localhost:8080/users?page=2", nil))

		var data []map[string]interface{}
		require.NoError(t, json.Unmarshal(body.Data, &data))
		require.Len(t, data, 1)
		assert.Equal(t, "Nathan Doe", data[0]["name"])

		assert.Equal(t, "http://localhost:8080/users?page=1", *body.Links["previous"])
		assert.Nil(t, body.Links["next"])
	})

	t.Run("invalid page falls back to the first", func(t *testing.T) {
		_, body := do(t, s.Public(), httptest.NewRequest(http.MethodGet, "http://localhost:8080/users?page=abc", nil))
		assert.Equal(t, "http://localhost:8080/users?page=1", *body.Links["self"])
	})
}

func TestServer_Show(t *testing.T) {
	s := newTestServer(t, "John Doe")

	rec, body := do(t, s.Public(), httptest.NewRequest(http.MethodGet, "/users/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "john@doe.tld", data["email"])
	assert.Contains(t, data, "configs")
	assert.Contains(t, data, "createdAt")
	assert.NotContains(t, data, "password")

	rec, body = do(t, s.Public(), httptest.NewRequest(http.MethodGet, "/users/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body.Status.Reason)

	rec, _ = do(t, s.Public(), httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Create(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		s := newTestServer(t)

		req := jsonRequest(http.MethodPost, "/users", `{"name":"John Doe","email":"john@doe.tld","password":"password","configs":{"theme":"dark"}}`)
		rec, body := do(t, s.Public(), req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(body.Data, &data))
		assert.Equal(t, map[string]interface{}{"theme": "dark"}, data["configs"])
	})

	t.Run("form body", func(t *testing.T) {
		s := newTestServer(t)

		form := url.Values{"name": {"Mary Doe"}, "email": {"mary@doe.tld"}, "password": {"password"}}
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec, _ := do(t, s.Public(), req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("validation errors", func(t *testing.T) {
		s := newTestServer(t, "John Doe")

		req := jsonRequest(http.MethodPost, "/users", `{"name":"Jo","email":"john@doe.tld","password":"password"}`)
		rec, body := do(t, s.Public(), req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		assert.Equal(t, "The name field requires 5 or more characters.", body.Errors["name"])
	})

	t.Run("password longer than 72 bytes", func(t *testing.T) {
		s := newTestServer(t)

		body := fmt.Sprintf(`{"name":"John Doe","email":"john@doe.tld","password":%q}`, strings.Repeat("é", 40))
		rec, resp := do(t, s.Public(), jsonRequest(http.MethodPost, "/users", body))
		require.Equal(t, http.StatusBadRequest, rec.Code)

		assert.Equal(t, "The password field requires 72 or less bytes.", resp.Errors["password"])
	})

	t.Run("null configs in a form body", func(t *testing.T) {
		s := newTestServer(t)

		form := url.Values{"name": {"Mary Doe"}, "email": {"mary@doe.tld"}, "password": {"password"}, "configs": {"null"}}
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec, body := do(t, s.Public(), req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		assert.Equal(t, "The configs field requires a valid JSON object.", body.Errors["configs"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newTestServer(t, "John Doe")

		req := jsonRequest(http.MethodPost, "/users", `{"name":"Johnny Doe","email":"john@doe.tld","password":"password"}`)
		rec, body := do(t, s.Public(), req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		assert.Equal(t, "The email field is not registered as unique.", body.Errors["email"])
	})

	t.Run("unparsable body", func(t *testing.T) {
		s := newTestServer(t)

		rec, body := do(t, s.Public(), jsonRequest(http.MethodPost, "/users", `{"name":`))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, http.StatusUnprocessableEntity, body.Status.Code)
	})
}

func TestServer_Update(t *testing.T) {
	s := newTestServer(t, "John Doe", "Mary Doe")

	t.Run("unchanged email is ignored", func(t *testing.T) {
		req := jsonRequest(http.MethodPatch, "/users/1", `{"name":"John Smith","email":"john@doe.tld"}`)
		rec, body := do(t, s.Public(), req)
		require.Equal(t, http.StatusOK, rec.Code)

		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(body.Data, &data))
		assert.Equal(t, "John Smith", data["name"])
	})

	t.Run("email of another user", func(t *testing.T) {
		rec, body := do(t, s.Public(), jsonRequest(http.MethodPatch, "/users/1", `{"email":"mary@doe.tld"}`))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body.Errors, "email")
	})

	t.Run("missing user", func(t *testing.T) {
		rec, _ := do(t, s.Public(), jsonRequest(http.MethodPatch, "/users/99", `{"name":"Nobody Doe"}`))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_Replace(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s.Public(), jsonRequest(http.MethodPut, "/users/1", `{}`))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "DELETE, GET, HEAD, PATCH", rec.Header().Get("Allow"))
	assert.Equal(t, "Method Not Allowed", body.Status.Reason)
}

func TestServer_Delete(t *testing.T) {
	s := newTestServer(t, "John Doe")

	rec, _ := do(t, s.Public(), httptest.NewRequest(http.MethodDelete, "/users/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s.Public(), httptest.NewRequest(http.MethodDelete, "/users/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_API(t *testing.T) {
	s := newTestServer(t, "John Doe")

	t.Run("missing credentials", func(t *testing.T) {
		rec, body := do(t, s.API(), httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, `Basic realm="REST API Access"`, rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "Unauthorized", body.Status.Reason)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.SetBasicAuth("radio", "wrong")

		rec, _ := do(t, s.API(), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("authorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
		req.SetBasicAuth("radio", "lupalupa")

		rec, _ := do(t, s.API(), req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_Home(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s.Public(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var routes []routeView
	require.NoError(t, json.Unmarshal(body.Data, &routes))
	assert.Contains(t, routes, routeView{Method: http.MethodPut, Path: "/users/:id"})

	rec, body = do(t, s.Public(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, body.Status.Code)
}
