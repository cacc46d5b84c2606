package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-pos-settlement.git/internal/pos"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		KeyID:            "key",
		Secret:           "secret",
		Currency:         "INR",
		CurrencyExponent: 2,
		MinAmountMinor:   100,
	}
}

func TestCreateIntent(t *testing.T) {
	var got intentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(intentResponse{ID: "order_ext_1"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	id, err := c.CreateIntent(context.Background(), 2500, "INV-20250101-abc")

	require.NoError(t, err)
	assert.Equal(t, "order_ext_1", id)
	assert.Equal(t, int64(2500), got.Amount)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, "INV-20250101-abc", got.Receipt)
}

func TestCreateIntent_ClampsToMinimum(t *testing.T) {
	var got intentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(intentResponse{ID: "order_ext_2"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.CreateIntent(context.Background(), 40, "r1")

	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Amount)
}

func TestCreateIntent_NonPositiveAmount(t *testing.T) {
	c := NewClient(testConfig("http://unused"))

	_, err := c.CreateIntent(context.Background(), 0, "r1")
	assert.Equal(t, pos.KindValidation, pos.KindOf(err))

	_, err = c.CreateIntent(context.Background(), -5, "r1")
	assert.Equal(t, pos.KindValidation, pos.KindOf(err))
}

func TestCreateIntent_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.CreateIntent(context.Background(), 500, "r1")
	assert.Equal(t, pos.KindExternal, pos.KindOf(err))
}

func TestCreateIntent_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(testConfig(srv.URL))
	_, err := c.CreateIntent(context.Background(), 500, "r1")
	assert.Equal(t, pos.KindExternal, pos.KindOf(err))
}

func TestCreateIntent_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(intentResponse{})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.CreateIntent(context.Background(), 500, "r1")
	assert.Equal(t, pos.KindExternal, pos.KindOf(err))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2500), MinorUnits(2500, 2))
	assert.Equal(t, int64(25), MinorUnits(2500, 0))  // zero-decimal currency
	assert.Equal(t, int64(13), MinorUnits(1250, 0))  // rounds half away
	assert.Equal(t, int64(12), MinorUnits(1249, 0))
	assert.Equal(t, int64(12500), MinorUnits(1250, 3)) // three-decimal currency
}
