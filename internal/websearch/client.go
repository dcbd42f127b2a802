// Package websearch looks up catalog codes on the web when the local catalog
// has no good answer.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/engine"
	"github.com/Veraticus/katalog/internal/normalize"
	"github.com/Veraticus/katalog/internal/service"
	"github.com/Veraticus/katalog/internal/similarity"
)

// codePattern matches nine-digit catalog codes.
var codePattern = regexp.MustCompile(`\b\d{9}\b`)

// Config configures the external search client.
type Config struct {
	Provider          string               `mapstructure:"provider"`
	APIKey            string               `mapstructure:"api_key"`
	Endpoint          string               `mapstructure:"endpoint"`
	QuerySuffix       string               `mapstructure:"query_suffix"`
	Retry             service.RetryOptions `mapstructure:"-"`
	Timeout           time.Duration        `mapstructure:"timeout"`
	RequestsPerMinute int                  `mapstructure:"requests_per_minute"`
	ResultCount       int                  `mapstructure:"result_count"`
	MaxConfidence     float64              `mapstructure:"max_confidence"`
}

// DefaultConfig returns the default client settings without an API key.
func DefaultConfig() Config {
	return Config{
		Provider:          ProviderBrave,
		Endpoint:          braveWebSearchEndpoint,
		QuerySuffix:       "ÚRS kód",
		Timeout:           10 * time.Second,
		RequestsPerMinute: 30,
		ResultCount:       5,
		MaxConfidence:     0.8,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
	if c.ResultCount <= 0 {
		c.ResultCount = d.ResultCount
	}
	c.ResultCount = min(c.ResultCount, 20)
	if c.MaxConfidence <= 0 || c.MaxConfidence > 1 {
		c.MaxConfidence = d.MaxConfidence
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = d.Retry
	}
	return c
}

// Client searches the web for catalog codes. It implements
// engine.ExternalSearcher and is safe for concurrent use.
type Client struct {
	http    *http.Client
	limiter *rateLimiter
	scorer  *similarity.Scorer
	cfg     Config
}

var _ engine.ExternalSearcher = (*Client)(nil)

// NewClient creates a search client. It fails with
// common.ErrExternalNotEnabled when no API key is configured.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing web search api key", common.ErrExternalNotEnabled)
	}
	if cfg.Provider != ProviderBrave {
		return nil, fmt.Errorf("%w: unsupported web search provider %q", common.ErrInvalidConfig, cfg.Provider)
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: newRateLimiter(cfg.RequestsPerMinute),
		scorer:  similarity.NewScorer(similarity.DefaultWeights()),
		cfg:     cfg,
	}, nil
}

// Search looks up text on the web and returns the catalog codes found in the
// results. Confidence reflects how well the surrounding result text matches
// and never exceeds the configured maximum.
func (c *Client) Search(ctx context.Context, text string) ([]engine.ExternalResult, error) {
	text = normalize.Query(text)
	if text == "" {
		return nil, nil
	}
	query := strings.TrimSpace(text + " " + c.cfg.QuerySuffix)

	var items []resultItem
	err := common.WithRetry(ctx, func() error {
		if err := c.limiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err}
		}
		var err error
		items, err = c.braveWebSearch(ctx, query)
		return err
	}, c.cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExternalSearch, err)
	}

	results := c.extract(text, items)
	slog.Debug("external search finished",
		"query", query,
		"pages", len(items),
		"codes", len(results))
	return results, nil
}

// extract collects distinct codes from result titles and snippets in result
// order.
func (c *Client) extract(text string, items []resultItem) []engine.ExternalResult {
	q := similarity.NewQuery(text)
	seen := make(map[string]struct{})

	var out []engine.ExternalResult
	for _, item := range items {
		codes := codePattern.FindAllString(item.Title+" "+item.Snippet, -1)
		for _, code := range codes {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}

			name := itemName(item.Title, code)
			score := c.scorer.Score(q, similarity.NewTarget(code, name, item.Snippet))
			confidence := score * c.cfg.MaxConfidence
			out = append(out, engine.ExternalResult{
				Code:       code,
				Name:       name,
				URL:        item.URL,
				Reason:     "web search",
				Confidence: &confidence,
			})
		}
	}
	return out
}

// itemName strips the code and site suffixes from a result title.
func itemName(title, code string) string {
	name := strings.Join(strings.Fields(strings.ReplaceAll(title, code, " ")), " ")
	name = strings.Trim(name, " -–:|")
	if i := strings.Index(name, " | "); i > 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
