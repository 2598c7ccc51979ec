package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

type fixedID string

func (f fixedID) NewID() string { return string(f) }

func newTestClient() *Client {
	return NewClient(nil, fixedID("gen-id"), observability.Nop())
}

func TestFetchReturnsPayload(t *testing.T) {
	var gotPath, gotQuery, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotRequestID = r.Header.Get("X-Request-ID")
		_, _ = io.WriteString(w, `[{"id":1,"title":"ML 86"}]`)
	}))
	defer srv.Close()

	loc := fetch.Compose(srv.URL+"/api/products", fetch.Filter{Name: "category", Value: "mlbb"})
	raw, err := newTestClient().Fetch(context.Background(), fetch.Request{Endpoint: "products", Locator: loc})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"title":"ML 86"}]`, string(raw))
	assert.Equal(t, "/api/products", gotPath)
	assert.Equal(t, "category=mlbb", gotQuery)
	assert.Equal(t, "gen-id", gotRequestID)
}

func TestFetchEchoesInboundRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	ctx := logctx.WithRequestID(context.Background(), "inbound-1")
	_, err := newTestClient().Fetch(ctx, fetch.Request{Endpoint: "top", Locator: fetch.Locator(srv.URL)})
	require.NoError(t, err)
	assert.Equal(t, "inbound-1", got)
}

func TestFetchNon2xxIsHTTPErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"not found"}`)
	}))
	defer srv.Close()

	_, err := newTestClient().Fetch(context.Background(), fetch.Request{Endpoint: "ratings", Locator: fetch.Locator(srv.URL)})
	var he *fetch.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
	assert.Nil(t, he.Body)
	assert.Equal(t, "404", fetch.Describe(err))
}

func TestFetchInvalidJSONIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	_, err := newTestClient().Fetch(context.Background(), fetch.Request{Endpoint: "top", Locator: fetch.Locator(srv.URL)})
	var pe *fetch.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "parse", fetch.Kind(err))
}

func TestFetchEmptyBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestClient().Fetch(context.Background(), fetch.Request{Endpoint: "top", Locator: fetch.Locator(srv.URL)})
	assert.Equal(t, "parse", fetch.Kind(err))
}

func TestFetchUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient().Fetch(context.Background(), fetch.Request{Endpoint: "top", Locator: fetch.Locator(url)})
	var te *fetch.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "send", te.Op)
}

func TestSendPostsBodyAndKeepsErrorPayload(t *testing.T) {
	var gotMethod, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":"target_id required"}`)
	}))
	defer srv.Close()

	cfg, err := fetch.JSON(http.MethodPost, map[string]any{"product_id": "7", "target_id": nil})
	require.NoError(t, err)

	_, err = newTestClient().Send(context.Background(), fetch.Request{Endpoint: "orders", Locator: fetch.Locator(srv.URL), Config: cfg})
	var he *fetch.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnprocessableEntity, he.StatusCode)
	assert.JSONEq(t, `{"detail":"target_id required"}`, string(he.Body))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "7", gotBody["product_id"])
	v, present := gotBody["target_id"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestSendAcceptsEmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	raw, err := newTestClient().Send(context.Background(), fetch.Request{
		Endpoint: "categories",
		Locator:  fetch.Locator(srv.URL),
		Config:   fetch.RequestConfig{Method: http.MethodDelete},
	})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFetchHonoursContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient().Fetch(ctx, fetch.Request{Endpoint: "top", Locator: fetch.Locator(srv.URL)})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
