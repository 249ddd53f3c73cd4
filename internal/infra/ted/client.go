package ted

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tender_watch/internal/domain/tender"
	"tender_watch/internal/infra/cache"
)

const (
	cacheKeyPrefix = "ted:search:"
	// maxPageLimit is the hard cap the TED API puts on page size.
	maxPageLimit = 100

	defaultMaxResults = 1000
)

// defaultNoticeTypes selects standard and social procurement notices.
var defaultNoticeTypes = []string{"cn-standard", "cn-social"}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig carries the TED-related settings the client needs.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	DefaultCountry string
	PageSize       int
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// Client issues search requests against the TED API with retry, caching
// and pagination.
type Client struct {
	cfg   ClientConfig
	http  HTTPClient
	cache cache.Store
	retry RetryPolicy
	log   *logrus.Entry
}

// NewClient creates a TED API client. store may be nil to disable caching
// and httpClient may be nil to use a default client with the configured
// timeout.
func NewClient(cfg ClientConfig, store cache.Store, httpClient HTTPClient, log *logrus.Entry) *Client {
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageLimit {
		cfg.PageSize = maxPageLimit
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		cfg:   cfg,
		http:  httpClient,
		cache: store,
		retry: DefaultRetryPolicy(),
		log:   log,
	}
}

// SetRetryPolicy replaces the retry policy. Tests substitute a zero-delay
// policy here.
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// searchRequest is the JSON body of a TED search call.
type searchRequest struct {
	Query       string   `json:"query"`
	Fields      []string `json:"fields"`
	Scope       string   `json:"scope"`
	Page        int      `json:"page"`
	Limit       int      `json:"limit"`
	CheckSyntax bool     `json:"check_query_syntax,omitempty"`
}

// SearchResult is the normalized response of one search page. Notices are
// kept raw so a malformed record can be skipped without losing the page.
type SearchResult struct {
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	Notices []json.RawMessage `json:"notices"`
}

// SearchTenders fetches one page of search results. Identical request
// bodies within the cache TTL are served from the cache when useCache is
// set and a cache store is configured; cache failures of any kind are
// treated as a miss.
func (c *Client) SearchTenders(ctx context.Context, query string, fields []string, page, limit int, scope string, useCache bool) (*SearchResult, error) {
	if fields == nil {
		fields = DefaultFields
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	payload := searchRequest{
		Query:  query,
		Fields: fields,
		Scope:  scope,
		Page:   page,
		Limit:  limit,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	key := cacheKey(body)
	if useCache && c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil && data != nil {
			var cached SearchResult
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.WithField("cache_key", key).Debug("cache hit")
				return &cached, nil
			}
		}
	}

	data, err := c.request(ctx, body)
	if err != nil {
		return nil, err
	}

	// The total-count field name varies across TED API versions.
	var resp struct {
		TotalNoticeCount *int              `json:"totalNoticeCount"`
		Total            *int              `json:"total"`
		Notices          []json.RawMessage `json:"notices"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("decode response: %v", err)}
	}
	total := 0
	switch {
	case resp.TotalNoticeCount != nil:
		total = *resp.TotalNoticeCount
	case resp.Total != nil:
		total = *resp.Total
	}

	result := &SearchResult{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Notices: resp.Notices,
	}

	if useCache && c.cache != nil {
		if encoded, err := json.Marshal(result); err == nil {
			if err := c.cache.Set(ctx, key, encoded, c.cfg.CacheTTL); err != nil {
				c.log.WithError(err).Debug("cache set failed")
			}
		}
	}

	return result, nil
}

// request performs one POST with retries according to the retry policy.
func (c *Client) request(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		data, err := c.doOnce(ctx, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		status := 0
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
			err = nil
		}
		if !c.retry.Retryable(status, err) {
			return nil, lastErr
		}
		if attempt >= c.retry.MaxAttempts {
			return nil, &APIError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    fmt.Sprintf("failed after retries: %v", lastErr),
			}
		}

		delay := c.retry.Backoff(attempt)
		c.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warnf("TED request failed, retrying: %v", lastErr)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// doOnce performs a single HTTP call and classifies the outcome.
func (c *Client) doOnce(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tender-watch/1.0")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ted request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Retry-After only informs the log; the backoff schedule is fixed.
		c.log.WithField("retry_after", resp.Header.Get("Retry-After")).Warn("TED rate limit hit")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "rate limit exceeded"}
	case resp.StatusCode == http.StatusServiceUnavailable:
		c.log.Warn("TED API unavailable")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "service unavailable"}
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// cacheKey fingerprints a request body. Marshalling the request struct is
// deterministic, so identical requests always map to the same key.
func cacheKey(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%s%x", cacheKeyPrefix, sum[:16])
}

// Paginate walks every result page for the query, starting at page 1, and
// invokes fn for each normalized tender in upstream order. Records that
// fail normalization are logged and skipped without stopping the batch.
// maxResults > 0 caps the number of yielded tenders; pagination state is
// not persisted, calling again starts over from page 1.
func (c *Client) Paginate(ctx context.Context, query string, fields []string, maxResults int, scope string, fn func(*tender.Tender) error) error {
	page := 1
	yielded := 0
	for {
		result, err := c.SearchTenders(ctx, query, fields, page, c.cfg.PageSize, scope, true)
		if err != nil {
			return err
		}
		if len(result.Notices) == 0 {
			return nil
		}

		for _, raw := range result.Notices {
			t, err := NoticeToTender(raw)
			if err != nil {
				c.log.WithFields(logrus.Fields{
					"notice_id": noticeIdentifier(raw),
				}).Warnf("skipping unparseable notice: %v", err)
				continue
			}
			if err := fn(t); err != nil {
				return err
			}
			yielded++
			if maxResults > 0 && yielded >= maxResults {
				return nil
			}
		}

		if yielded >= result.Total {
			return nil
		}
		page++
		c.log.WithFields(logrus.Fields{
			"page":    page,
			"fetched": yielded,
			"total":   result.Total,
		}).Debug("pagination progress")
	}
}

// ActiveQuery selects active tenders for GetActiveTenders.
type ActiveQuery struct {
	// Country defaults to the configured country when empty.
	Country string
	// NoticeTypes defaults to cn-standard and cn-social.
	NoticeTypes []string
	CPVCodes    []string
	MinValue    *float64
	MaxValue    *float64
	// MaxResults caps the fetch; 0 applies the default cap of 1000 and a
	// negative value removes the cap.
	MaxResults int
}

// GetActiveTenders fetches all active tenders matching the query into a
// list.
func (c *Client) GetActiveTenders(ctx context.Context, q ActiveQuery) ([]*tender.Tender, error) {
	if q.Country == "" {
		q.Country = c.cfg.DefaultCountry
	}
	if len(q.NoticeTypes) == 0 {
		q.NoticeTypes = defaultNoticeTypes
	}
	maxResults := q.MaxResults
	switch {
	case maxResults == 0:
		maxResults = defaultMaxResults
	case maxResults < 0:
		maxResults = 0
	}

	query := buildQuery(q)
	c.log.WithFields(logrus.Fields{
		"query":   query,
		"country": q.Country,
	}).Info("fetching active tenders")

	var tenders []*tender.Tender
	err := c.Paginate(ctx, query, nil, maxResults, "ACTIVE", func(t *tender.Tender) error {
		tenders = append(tenders, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"count":   len(tenders),
		"country": q.Country,
	}).Info("active tenders fetched")
	return tenders, nil
}

// ActiveTenders fetches all active tenders for a country with default
// notice types and no value bounds. It is the narrow entry point the sync
// workflow uses.
func (c *Client) ActiveTenders(ctx context.Context, country string) ([]*tender.Tender, error) {
	return c.GetActiveTenders(ctx, ActiveQuery{Country: country})
}

// buildQuery renders the conjunctive TED query expression. Clause order is
// fixed (type, country, cpv, value) so queries are deterministic.
func buildQuery(q ActiveQuery) string {
	var parts []string

	if len(q.NoticeTypes) == 1 {
		parts = append(parts, "notice-type = "+q.NoticeTypes[0])
	} else {
		parts = append(parts, fmt.Sprintf("notice-type IN (%s)", strings.Join(q.NoticeTypes, " ")))
	}

	if q.Country != "" {
		parts = append(parts, "buyer-country = "+q.Country)
	}

	if len(q.CPVCodes) == 1 {
		parts = append(parts, "classification-cpv = "+q.CPVCodes[0])
	} else if len(q.CPVCodes) > 1 {
		parts = append(parts, fmt.Sprintf("classification-cpv IN (%s)", strings.Join(q.CPVCodes, " ")))
	}

	if q.MinValue != nil {
		parts = append(parts, fmt.Sprintf("estimated-value >= %g", *q.MinValue))
	}
	if q.MaxValue != nil {
		parts = append(parts, fmt.Sprintf("estimated-value <= %g", *q.MaxValue))
	}

	return strings.Join(parts, " AND ")
}

// CheckQuerySyntax asks the API to validate a query expression without
// executing it.
func (c *Client) CheckQuerySyntax(ctx context.Context, query string) bool {
	payload := searchRequest{
		Query:       query,
		Fields:      []string{"notice-id"},
		Limit:       1,
		CheckSyntax: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	_, err = c.request(ctx, body)
	return err == nil
}
