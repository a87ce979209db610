package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/franzego/registry-backoffice/internal/config"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.APIConfig{BaseURL: srv.URL + "/"}, zap.NewNop()), srv
}

func TestDo_JSONBodyAndBearerToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/users", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.org", body["email"])

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"id": 7}`))
	})

	res, err := client.Post(context.Background(), "admin/users",
		WithToken("abc"), WithBody(map[string]string{"email": "ana@example.org"}))
	require.NoError(t, err)

	obj, ok := AsObject(res)
	require.True(t, ok)
	assert.Equal(t, json.Number("7"), obj["id"])
}

func TestDo_TokenAlreadyPrefixed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer xyz", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := client.Get(context.Background(), "/ping", WithToken("Bearer xyz"))
	require.NoError(t, err)
	assert.Equal(t, NoContent, res)
}

func TestDo_RawBodyIsNotEncoded(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "raw-bytes", string(data))
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	res, err := client.Post(context.Background(), "/upload", WithBody([]byte("raw-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Cookies())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[1,2]`))
	})

	res, err := client.Get(context.Background(), "/list")
	require.NoError(t, err)
	assert.Len(t, ExtractArray(res), 2)
}

func TestDo_EmptyBodyIsNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
	})

	res, err := client.Post(context.Background(), "/notifications/1/read")
	require.NoError(t, err)
	assert.Equal(t, NoContent, res)
}

func TestDo_QueryValues(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("take"))
		_, hasSearch := r.URL.Query()["search"]
		assert.False(t, hasSearch)
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := client.Get(context.Background(), "/audit", WithQuery(map[string][]string{
		"take":   {"10"},
		"search": {""},
	}))
	require.NoError(t, err)
}

func TestDo_ErrorWithJSONMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"No tiene permisos","code":"FORBIDDEN"}`))
	})

	_, err := client.Get(context.Background(), "/admin/roles")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "No tiene permisos", apiErr.Message)
	details, ok := AsObject(apiErr.Details)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", details["code"])
}

func TestDo_ErrorWithTextBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.Get(context.Background(), "/reports/users/active")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Details)
	assert.Equal(t, "Request failed with status 502", apiErr.Message)
}

func TestDo_ErrorWithBrokenJSONBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": `))
	})

	_, err := client.Get(context.Background(), "/requests")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Nil(t, apiErr.Details)
}

func TestDo_BreakerIgnoresClientErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 5; i++ {
		_, err := client.Get(context.Background(), "/missing")
		assert.Equal(t, http.StatusNotFound, StatusCode(err))
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())
}

func TestDo_BreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 3; i++ {
		_, _ = client.Get(context.Background(), "/notifications")
	}
	_, err := client.Get(context.Background(), "/notifications")

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "backend unavailable", apiErr.Message)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, calls)
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(&Error{Status: http.StatusUnauthorized}))
	assert.False(t, IsUnauthorized(errors.New("plain")))
}
