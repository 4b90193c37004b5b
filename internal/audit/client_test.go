package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "ether", cfg.Chain)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.Empty(t, cfg.APIURL)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	c, err := New(Config{APIURL: "https://audit.example.com/pairs"})
	require.NoError(t, err)
	require.Equal(t, "ether", c.cfg.Chain)
	require.Equal(t, 15*time.Second, c.cfg.Timeout)
}

func TestFlagUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *bool
	}{
		{name: "bool true", in: "true", want: boolPtr(true)},
		{name: "bool false", in: "false", want: boolPtr(false)},
		{name: "string yes", in: `"yes"`, want: boolPtr(true)},
		{name: "string no", in: `"no"`, want: boolPtr(false)},
		{name: "string true", in: `"true"`, want: boolPtr(true)},
		{name: "string false", in: `"false"`, want: boolPtr(false)},
		{name: "null", in: "null", want: nil},
		{name: "unknown string", in: `"unknown"`, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var f flag
			require.NoError(t, json.Unmarshal([]byte(tc.in), &f))
			if tc.want == nil {
				require.Nil(t, f.Value)
			} else {
				require.NotNil(t, f.Value)
				require.Equal(t, *tc.want, *f.Value)
			}
		})
	}

	var f flag
	require.Error(t, json.Unmarshal([]byte("42"), &f))
}

func TestPairInfo(t *testing.T) {
	payload := `{
		"data": [{
			"creationTime": "2026-01-10T12:00:00Z",
			"firstSwapTimestamp": "2026-01-10T12:30:00Z",
			"token": {
				"locks": [{"amount": "1000", "until": "2027-01-01"}],
				"links": {
					"twitter": "https://x.com/pairtoken",
					"website": "https://pairtoken.example",
					"telegram": ""
				},
				"audit": {
					"dextools": {
						"is_open_source": "yes",
						"is_honeypot": false,
						"is_mintable": "no",
						"is_contract_renounced": true,
						"is_potentially_scam": "yes",
						"sell_tax": {"min": 1.5, "max": 12.0},
						"buy_tax": {"min": 0, "max": 5.0},
						"summary": {"providers": {"warning": ["honeypot", "high_tax"]}}
					},
					"external": {
						"quickintel": {"creator_address": "0xcccccccccccccccccccccccccccccccccccccccc"}
					}
				}
			}
		}]
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "0xpair", r.URL.Query().Get("address"))
		require.Equal(t, "ether", r.URL.Query().Get("chain"))
		require.Equal(t, "true", r.URL.Query().Get("audit"))
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	c, err := New(Config{
		APIURL:  srv.URL,
		Headers: map[string]string{"User-Agent": "test-agent"},
	})
	require.NoError(t, err)

	info, err := c.PairInfo(context.Background(), "0xpair")
	require.NoError(t, err)

	require.Equal(t, "0xcccccccccccccccccccccccccccccccccccccccc", info.Creator)
	require.NotNil(t, info.CreationTime)
	require.Equal(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC), info.CreationTime.UTC())
	require.NotNil(t, info.FirstSwapAt)

	require.Equal(t, "https://x.com/pairtoken", info.TwitterURL)
	require.Equal(t, "https://pairtoken.example", info.WebsiteURL)
	require.Empty(t, info.TelegramURL)

	require.True(t, *info.IsOpenSource)
	require.False(t, *info.IsHoneypot)
	require.False(t, *info.IsMintable)
	require.True(t, *info.IsRenounced)
	require.True(t, *info.IsPotentialScam)
	require.Nil(t, info.IsProxy)

	require.Equal(t, 1.5, *info.MinSellTax)
	require.Equal(t, 12.0, *info.MaxSellTax)
	require.Equal(t, 0.0, *info.MinBuyTax)
	require.Equal(t, 5.0, *info.MaxBuyTax)

	require.Equal(t, []string{"honeypot", "high_tax"}, info.Warnings)
	require.NotEmpty(t, info.Locks)
}

func TestPairInfoNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIURL: srv.URL})
	require.NoError(t, err)

	_, err = c.PairInfo(context.Background(), "0xpair")
	require.ErrorIs(t, err, ErrNoPairData)
}

func TestPairInfoMissingAudit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": [{
				"creationTime": "2026-01-10T12:00:00Z",
				"token": {"links": {"twitter": "https://x.com/pairtoken"}}
			}]
		}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIURL: srv.URL})
	require.NoError(t, err)

	// A record without the audit object is a degraded response, not a
	// result; it must not reach the store.
	_, err = c.PairInfo(context.Background(), "0xpair")
	require.ErrorIs(t, err, ErrNoAuditData)
}

func TestPairInfoEmptyLocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"token": {"locks": [], "audit": {"dextools": {}}}}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIURL: srv.URL})
	require.NoError(t, err)

	info, err := c.PairInfo(context.Background(), "0xpair")
	require.NoError(t, err)
	require.Nil(t, info.Locks)
}

func TestPairInfoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(Config{APIURL: srv.URL})
	require.NoError(t, err)

	_, err = c.PairInfo(context.Background(), "0xpair")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}
