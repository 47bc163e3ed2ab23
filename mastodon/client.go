package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mastowatch/mastowatch/automod/cachestore"
	"github.com/mastowatch/mastowatch/automod/engine"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"
	"github.com/mastowatch/mastowatch/util"

	"golang.org/x/time/rate"
)

const (
	defaultStatusLimit = 20
	reportCategory     = "spam"
	statusCacheName    = "account-statuses"
)

// Client talks to one Mastodon instance with an admin-scoped token. The
// underlying HTTP client retries transient failures with backoff and
// jitter; the rate limiter keeps us inside the instance's API budget.
type Client struct {
	Host  string
	Token string

	// StatusLimit is how many recent statuses to hydrate per account.
	StatusLimit int
	// Cache, when set, holds recently fetched status listings so
	// back-to-back scan cycles do not re-fetch every account.
	Cache cachestore.CacheStore

	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ engine.PlatformClient = (*Client)(nil)

func NewClient(host, token string) *Client {
	return &Client{
		Host:        host,
		Token:       token,
		StatusLimit: defaultStatusLimit,
		httpClient:  util.RobustHTTPClient(),
		// Mastodon defaults to 300 requests per 5 minutes
		limiter: rate.NewLimiter(rate.Limit(1.0), 5),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := strings.TrimSuffix(c.Host, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, engine.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: %w: HTTP %d", method, path, engine.ErrPermanentFetch, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s: %w: HTTP %d", method, path, engine.ErrTransientFetch, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return resp.Header, nil
}

// FetchSubjects pages through the admin account listing for one session
// type and returns fully hydrated subjects plus the next max_id cursor.
func (c *Client) FetchSubjects(ctx context.Context, sessionType, cursor string, limit int) ([]*event.Subject, string, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))
	query.Set("origin", sessionType)
	if cursor != "" {
		query.Set("max_id", cursor)
	}

	var accounts []AdminAccount
	header, err := c.do(ctx, http.MethodGet, "/api/v1/admin/accounts", query, nil, &accounts)
	if err != nil {
		return nil, "", err
	}

	subjects := make([]*event.Subject, 0, len(accounts))
	for i := range accounts {
		statuses, err := c.AccountStatuses(ctx, accounts[i].ID)
		if err != nil {
			// an account whose statuses will not load is still evaluable
			// on its profile fields
			statuses = nil
		}
		subjects = append(subjects, accounts[i].Subject(statuses))
	}
	return subjects, ParseNextMaxID(header.Get("Link")), nil
}

// AccountStatuses fetches an account's most recent statuses, serving
// from the cache when a fresh listing is available.
func (c *Client) AccountStatuses(ctx context.Context, accountID string) ([]Status, error) {
	if c.Cache != nil {
		if blob, err := c.Cache.Get(ctx, statusCacheName, accountID); err == nil && blob != "" {
			var cached []Status
			if err := json.Unmarshal([]byte(blob), &cached); err == nil {
				return cached, nil
			}
		}
	}

	limit := c.StatusLimit
	if limit <= 0 {
		limit = defaultStatusLimit
	}
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))

	var statuses []Status
	path := fmt.Sprintf("/api/v1/accounts/%s/statuses", accountID)
	if _, err := c.do(ctx, http.MethodGet, path, query, nil, &statuses); err != nil {
		return nil, err
	}

	if c.Cache != nil {
		if blob, err := json.Marshal(statuses); err == nil {
			// best effort; a failed cache write just means a re-fetch
			_ = c.Cache.Set(ctx, statusCacheName, accountID, string(blob))
		}
	}
	return statuses, nil
}

// PurgeStatusCache drops the cached status listing for an account, so
// the next hydration sees current content.
func (c *Client) PurgeStatusCache(ctx context.Context, accountID string) error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Purge(ctx, statusCacheName, accountID)
}

// ApplyAction dispatches one enforcement action. Reports go through the
// public reports endpoint and return the report ID as the external
// reference; silence and suspend go through the admin action endpoint.
func (c *Client) ApplyAction(ctx context.Context, req *engine.ActionRequest) (string, error) {
	switch req.ActionType {
	case rules.ActionReport:
		return c.createReport(ctx, req)
	case rules.ActionSilence, rules.ActionSuspend:
		return "", c.adminAction(ctx, req.SubjectID, req.ActionType, req.Comment)
	default:
		return "", fmt.Errorf("unknown action type %q", req.ActionType)
	}
}

func (c *Client) createReport(ctx context.Context, req *engine.ActionRequest) (string, error) {
	body := map[string]any{
		"account_id": req.SubjectID,
		"comment":    req.Comment,
		"category":   reportCategory,
		"forward":    req.Forward,
	}
	if len(req.StatusIDs) > 0 {
		body["status_ids"] = util.DedupeStrings(req.StatusIDs)
	}
	var report Report
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/reports", nil, body, &report); err != nil {
		return "", err
	}
	return report.ID, nil
}

func (c *Client) adminAction(ctx context.Context, accountID, actionType, comment string) error {
	body := map[string]any{
		"type": actionType,
		"text": comment,
	}
	path := fmt.Sprintf("/api/v1/admin/accounts/%s/action", accountID)
	_, err := c.do(ctx, http.MethodPost, path, nil, body, nil)
	return err
}

// UndoAction reverses a previously applied timed action.
func (c *Client) UndoAction(ctx context.Context, accountID, actionType string) error {
	var path string
	switch actionType {
	case rules.ActionSilence:
		path = fmt.Sprintf("/api/v1/admin/accounts/%s/unsilence", accountID)
	case rules.ActionSuspend:
		path = fmt.Sprintf("/api/v1/admin/accounts/%s/unsuspend", accountID)
	default:
		return fmt.Errorf("action type %q is not reversible", actionType)
	}
	_, err := c.do(ctx, http.MethodPost, path, nil, nil, nil)
	return err
}
