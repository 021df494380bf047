package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/models"
)

// stubCredentialStore serves a fixed credential list
type stubCredentialStore struct {
	creds []*models.SearchCredential
}

func (s *stubCredentialStore) SaveCredential(ctx context.Context, cred *models.SearchCredential) error {
	s.creds = append(s.creds, cred)
	return nil
}

func (s *stubCredentialStore) ListUsableCredentials(ctx context.Context, service string) ([]*models.SearchCredential, error) {
	now := time.Now()
	var usable []*models.SearchCredential
	for _, c := range s.creds {
		if c.Service == service && c.Usable(now) {
			usable = append(usable, c)
		}
	}
	return usable, nil
}

func (s *stubCredentialStore) SaveRole(ctx context.Context, role *models.JobRole) error { return nil }
func (s *stubCredentialStore) ListRoles(ctx context.Context) ([]*models.JobRole, error) {
	return nil, nil
}
func (s *stubCredentialStore) FindRoleByName(ctx context.Context, name string) (*models.JobRole, error) {
	return nil, nil
}

func newTestClient(t *testing.T, serverURL string, creds ...*models.SearchCredential) *Client {
	t.Helper()
	config := &common.SearchConfig{
		Service:           "google_custom",
		BaseURL:           serverURL,
		RequestTimeout:    5 * time.Second,
		RequestsPerSecond: 1000, // Don't slow tests down
	}
	client := NewClient(config, &stubCredentialStore{creds: creds}, arbor.NewLogger())
	return client.(*Client)
}

func TestSearchReturnsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		assert.Equal(t, "cx-1", r.URL.Query().Get("cx"))
		w.Write([]byte(`{"items":[{"title":"Engineer","link":"https://acme.com/careers/1","snippet":"Join us"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &models.SearchCredential{
		ID: "c1", Name: "primary", Service: "google_custom",
		APIKey: "key-1", EngineID: "cx-1", IsActive: true,
	})

	results, err := client.Search(context.Background(), "site:acme.com careers", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://acme.com/careers/1", results[0].Link)
}

func TestSearchRotatesOnAuthFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("key") == "bad-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"items":[{"title":"Engineer","link":"https://acme.com/careers/1","snippet":""}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		&models.SearchCredential{ID: "c1", Name: "bad", Service: "google_custom", APIKey: "bad-key", EngineID: "cx", IsActive: true},
		&models.SearchCredential{ID: "c2", Name: "good", Service: "google_custom", APIKey: "good-key", EngineID: "cx", IsActive: true},
	)

	results, err := client.Search(context.Background(), "site:acme.com careers", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Bad credential tried once (401 rotates immediately, no retry)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSearchRetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"items":[{"title":"Engineer","link":"https://acme.com/careers/1","snippet":""}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &models.SearchCredential{
		ID: "c1", Name: "primary", Service: "google_custom",
		APIKey: "key-1", EngineID: "cx-1", IsActive: true,
	})

	results, err := client.Search(context.Background(), "site:acme.com careers", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// 2 rate-limited attempts plus the success
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearchExhaustionReturnsDescriptiveError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		&models.SearchCredential{ID: "c1", Name: "one", Service: "google_custom", APIKey: "k1", EngineID: "cx", IsActive: true},
		&models.SearchCredential{ID: "c2", Name: "two", Service: "google_custom", APIKey: "k2", EngineID: "cx", IsActive: true},
	)

	_, err := client.Search(context.Background(), "site:acme.com careers", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestSearchNoCredentials(t *testing.T) {
	client := newTestClient(t, "http://unused")

	_, err := client.Search(context.Background(), "site:acme.com careers", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable search credentials")
}

func TestExpiredCredentialSkipped(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	client := newTestClient(t, "http://unused", &models.SearchCredential{
		ID: "c1", Name: "expired", Service: "google_custom",
		APIKey: "k1", EngineID: "cx", IsActive: true, ExpiresAt: &expired,
	})

	_, err := client.Search(context.Background(), "site:acme.com careers", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable search credentials")
}
