package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Veraticus/katalog/internal/common"
)

const (
	// ProviderBrave is the Brave web search API.
	ProviderBrave = "brave"

	braveWebSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"
	braveMaxBodyBytes      = 2 << 20
)

// resultItem is one organic web result.
type resultItem struct {
	Title   string
	URL     string
	Snippet string
}

type braveWebSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (c *Client) braveWebSearch(ctx context.Context, query string) ([]resultItem, error) {
	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid brave search endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(c.cfg.ResultCount))
	q.Set("search_lang", "cs")
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &common.RetryableError{Err: err, Retryable: ctx.Err() == nil}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, braveMaxBodyBytes))
	if err != nil {
		return nil, &common.RetryableError{Err: err, Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &common.RetryableError{Err: common.ErrRateLimit, Retryable: true}
	case resp.StatusCode >= 500:
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("brave web search failed (status %d)", resp.StatusCode),
			Retryable: true,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("brave web search failed (status %d): %s", resp.StatusCode, msg),
			Retryable: false,
		}
	}

	var decoded braveWebSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("invalid brave web search response: %w", err)}
	}

	results := make([]resultItem, 0, len(decoded.Web.Results))
	for _, item := range decoded.Web.Results {
		u := strings.TrimSpace(item.URL)
		if u == "" {
			continue
		}
		results = append(results, resultItem{
			Title:   strings.TrimSpace(item.Title),
			URL:     u,
			Snippet: strings.TrimSpace(item.Description),
		})
	}
	return results, nil
}
