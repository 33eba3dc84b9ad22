package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"academy_billing_app/internal/billing"
)

// DirectoryService is the HTTP client for the academy directory, the
// external system of record for student display names and contact addresses.
type DirectoryService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewDirectoryService() *DirectoryService {
	base := os.Getenv("DIRECTORY_BASE_URL")
	if base == "" {
		base = "http://directory:4000"
	}
	return &DirectoryService{
		baseURL: base,
		apiKey:  os.Getenv("DIRECTORY_API_KEY"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *DirectoryService) get(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

// AccountNames resolves display names for a batch of accounts in one call.
func (s *DirectoryService) AccountNames(ctx context.Context, tenantID string, accountIDs []string) (map[string]string, error) {
	if len(accountIDs) == 0 {
		return map[string]string{}, nil
	}

	endpoint := fmt.Sprintf("/api/accounts/names?tenant=%s&ids=%s",
		url.QueryEscape(tenantID), url.QueryEscape(strings.Join(accountIDs, ",")))

	var payload struct {
		Names map[string]string `json:"names"`
	}
	if err := s.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Names, nil
}

// AccountContact resolves the contact addresses of a single account.
func (s *DirectoryService) AccountContact(ctx context.Context, tenantID, accountID string) (billing.Contact, error) {
	endpoint := fmt.Sprintf("/api/accounts/%s/contact?tenant=%s",
		url.PathEscape(accountID), url.QueryEscape(tenantID))

	var payload struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := s.get(ctx, endpoint, &payload); err != nil {
		return billing.Contact{}, err
	}
	return billing.Contact{Email: payload.Email, Phone: payload.Phone}, nil
}

const directoryCacheTTL = time.Hour

// CachedDirectory decorates a Directory with a Redis cache so reminder runs
// do not hammer the directory for names that rarely change.
type CachedDirectory struct {
	Inner billing.Directory
	Cache *RedisCache
}

func (d *CachedDirectory) nameKey(tenantID, accountID string) string {
	return fmt.Sprintf("directory:name:%s:%s", tenantID, accountID)
}

// AccountNames serves names from cache where possible and resolves the
// misses in one bulk call to the underlying directory.
func (d *CachedDirectory) AccountNames(ctx context.Context, tenantID string, accountIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(accountIDs))
	var misses []string

	for _, id := range accountIDs {
		var name string
		if err := d.Cache.Get(ctx, d.nameKey(tenantID, id), &name); err == nil && name != "" {
			names[id] = name
		} else {
			misses = append(misses, id)
		}
	}

	if len(misses) == 0 {
		return names, nil
	}

	fetched, err := d.Inner.AccountNames(ctx, tenantID, misses)
	if err != nil {
		// Partial results are still useful to the dispatcher.
		if len(names) > 0 {
			return names, nil
		}
		return nil, err
	}

	for id, name := range fetched {
		names[id] = name
		_ = d.Cache.Set(ctx, d.nameKey(tenantID, id), name, directoryCacheTTL)
	}
	return names, nil
}

// AccountContact always goes to the directory; contact addresses are the one
// thing that must not be stale when a reminder goes out.
func (d *CachedDirectory) AccountContact(ctx context.Context, tenantID, accountID string) (billing.Contact, error) {
	return d.Inner.AccountContact(ctx, tenantID, accountID)
}

// DirectoryFromEnv builds the directory client, wrapped in the Redis cache
// when one is available.
func DirectoryFromEnv(cache *RedisCache) billing.Directory {
	dir := NewDirectoryService()
	if cache != nil {
		return &CachedDirectory{Inner: dir, Cache: cache}
	}
	return dir
}
