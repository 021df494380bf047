package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
	"golang.org/x/time/rate"
)

const (
	// maxRateLimitRetries is how many times a 429 is retried on the same
	// credential before rotating to the next one
	maxRateLimitRetries = 3
	// maxResultsPerRequest is the API's page size ceiling
	maxResultsPerRequest = 10
)

// searchResponse mirrors the Custom Search JSON API response shape
type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Client issues site-restricted queries against the Google Custom Search
// JSON API. Credentials are tried in stored order: a 429 is retried with
// backoff on the same credential, a 401 rotates immediately, and the first
// credential to return results wins.
type Client struct {
	config      *common.SearchConfig
	credentials interfaces.CredentialStorage
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      arbor.ILogger
}

// NewClient creates a new search API client
func NewClient(config *common.SearchConfig, credentials interfaces.CredentialStorage, logger arbor.ILogger) interfaces.SearchClient {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		config:      config,
		credentials: credentials,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// Search executes a query, rotating through usable credentials until one
// returns results or all are exhausted.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]interfaces.SearchResult, error) {
	creds, err := c.usableCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("no usable search credentials configured for service %q", c.config.Service)
	}

	if numResults <= 0 || numResults > maxResultsPerRequest {
		numResults = maxResultsPerRequest
	}

	var lastErr error
	for _, cred := range creds {
		results, err := c.searchWithCredential(ctx, cred, query, numResults)
		if err != nil {
			lastErr = err
			c.logger.Warn().
				Str("credential", cred.Name).
				Err(err).
				Msg("Search credential failed, rotating")
			continue
		}

		// Short-circuit on the first credential that yields results
		if len(results) > 0 {
			return results, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all %d search credentials exhausted: %w", len(creds), lastErr)
	}
	return nil, nil
}

// usableCredentials returns stored credentials, falling back to the config
// credential when the store is empty.
func (c *Client) usableCredentials(ctx context.Context) ([]*models.SearchCredential, error) {
	creds, err := c.credentials.ListUsableCredentials(ctx, c.config.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to load search credentials: %w", err)
	}

	if len(creds) == 0 && c.config.APIKey != "" {
		creds = []*models.SearchCredential{{
			ID:       "config",
			Name:     "config",
			Service:  c.config.Service,
			APIKey:   c.config.APIKey,
			EngineID: c.config.EngineID,
			IsActive: true,
		}}
	}
	return creds, nil
}

// searchWithCredential issues the request, retrying rate limits with
// 1s/2s/4s backoff before giving up on this credential.
func (c *Client) searchWithCredential(ctx context.Context, cred *models.SearchCredential, query string, numResults int) ([]interfaces.SearchResult, error) {
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		results, statusCode, err := c.doRequest(ctx, cred, query, numResults)
		if err != nil {
			return nil, err
		}

		switch {
		case statusCode == http.StatusOK:
			return results, nil
		case statusCode == http.StatusTooManyRequests && attempt < maxRateLimitRetries:
			backoff := time.Duration(1<<attempt) * time.Second
			c.logger.Warn().
				Str("credential", cred.Name).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Search API rate limited, backing off")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		case statusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("search API rate limit persisted after %d retries", maxRateLimitRetries)
		case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
			return nil, fmt.Errorf("search API rejected credential %q (status %d)", cred.Name, statusCode)
		default:
			return nil, fmt.Errorf("search API returned status %d", statusCode)
		}
	}

	return nil, fmt.Errorf("search API rate limit persisted after %d retries", maxRateLimitRetries)
}

func (c *Client) doRequest(ctx context.Context, cred *models.SearchCredential, query string, numResults int) ([]interfaces.SearchResult, int, error) {
	params := url.Values{}
	params.Set("key", cred.APIKey)
	params.Set("cx", cred.EngineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", numResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]interfaces.SearchResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, interfaces.SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, resp.StatusCode, nil
}
