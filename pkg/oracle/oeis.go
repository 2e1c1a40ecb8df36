package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
	"github.com/XiaoConstantine/ramanujan-go/pkg/logging"
)

const (
	defaultBaseURL     = "https://oeis.org"
	defaultTimeout     = 10 * time.Second
	defaultDigits      = 25
	defaultMaxHits     = 5
	defaultCacheSize   = 512
	defaultQueryPause  = 500 * time.Millisecond
	maxExpressionTerms = 3
)

// OEISClient queries the On-Line Encyclopedia of Integer Sequences. Value
// lookups search by the leading decimal digits of the constant; expression
// lookups search the OEIS name and comment fields. Responses are cached per
// query since a session asks about the same survivors generation after
// generation.
type OEISClient struct {
	baseURL    string
	client     *http.Client
	digits     int
	maxHits    int
	cacheSize  int
	queryPause time.Duration

	mu    sync.Mutex
	cache map[string][]Match
}

// OEISOption configures an OEISClient.
type OEISOption func(*OEISClient)

// WithBaseURL overrides the OEIS endpoint, used by tests.
func WithBaseURL(base string) OEISOption {
	return func(c *OEISClient) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) OEISOption {
	return func(c *OEISClient) { c.client = client }
}

// WithDigits sets how many leading digits a value lookup submits.
func WithDigits(n int) OEISOption {
	return func(c *OEISClient) { c.digits = n }
}

// WithMaxHits caps the number of matches returned per lookup.
func WithMaxHits(n int) OEISOption {
	return func(c *OEISClient) { c.maxHits = n }
}

// WithQueryPause sets the pause between consecutive term queries in an
// expression lookup. OEIS asks crawlers to keep request rates modest.
func WithQueryPause(d time.Duration) OEISOption {
	return func(c *OEISClient) { c.queryPause = d }
}

// NewOEISClient creates a client with sane defaults.
func NewOEISClient(opts ...OEISOption) *OEISClient {
	c := &OEISClient{
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: defaultTimeout},
		digits:     defaultDigits,
		maxHits:    defaultMaxHits,
		cacheSize:  defaultCacheSize,
		queryPause: defaultQueryPause,
		cache:      make(map[string][]Match),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// oeisResult is the subset of the OEIS JSON search response we consume.
type oeisResult struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type oeisResponse struct {
	Count   int          `json:"count"`
	Results []oeisResult `json:"results"`
}

// LookupByValue searches OEIS for the digit expansion of value. The decimal
// point and sign are stripped and the leading digits submitted as a
// comma-separated sequence, the form OEIS indexes constants under.
func (c *OEISClient) LookupByValue(ctx context.Context, value string) ([]Match, error) {
	digits := leadingDigits(value, c.digits)
	if len(digits) < 5 {
		return nil, errors.New(errors.InvalidInput, "value too short for a digit search")
	}
	query := strings.Join(digits, ",")
	return c.search(ctx, query)
}

// LookupByExpression searches OEIS metadata for the structural features of an
// expression. Each recognized feature (constants, function families, nested
// radicals, continued-fraction shapes) becomes one term query, with a pause
// between queries. Expressions without recognized features fall back to a
// literal text search.
func (c *OEISClient) LookupByExpression(ctx context.Context, expression string) ([]Match, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, errors.New(errors.InvalidInput, "empty expression")
	}

	cacheKey := "expr:" + expression
	if cached, ok := c.lookupCache(cacheKey); ok {
		return cached, nil
	}

	terms := searchTerms(expression)
	if len(terms) == 0 {
		return c.search(ctx, expression)
	}
	if len(terms) > maxExpressionTerms {
		terms = terms[:maxExpressionTerms]
	}

	var (
		matches []Match
		seen    = make(map[string]bool)
		lastErr error
	)
	for i, term := range terms {
		if i > 0 && c.queryPause > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.CheckContext(ctx, "OEIS expression lookup")
			case <-time.After(c.queryPause):
			}
		}
		termMatches, err := c.search(ctx, term)
		if err != nil {
			logging.GetLogger().Warn(ctx, "OEIS term query %q failed: %v", term, err)
			lastErr = err
			continue
		}
		for _, m := range termMatches {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if len(matches) > c.maxHits {
		matches = matches[:c.maxHits]
	}
	c.storeCache(cacheKey, matches)
	return matches, nil
}

// searchTerms maps expression features onto OEIS search vocabulary.
func searchTerms(expression string) []string {
	var terms []string
	if strings.Contains(expression, "π") || strings.Contains(expression, "pi") {
		terms = append(terms, "pi")
	}
	if strings.Contains(expression, "e^") || strings.Contains(expression, "exp") {
		terms = append(terms, "exponential")
	}
	if strings.Contains(expression, "φ") || strings.Contains(expression, "phi") {
		terms = append(terms, "golden ratio")
	}
	if strings.Contains(expression, "γ") || strings.Contains(expression, "gamma") {
		terms = append(terms, "Euler-Mascheroni constant")
	}
	if strings.Contains(expression, "ζ") || strings.Contains(expression, "zeta3") {
		terms = append(terms, "Apery's constant")
	}
	if strings.Contains(expression, "sqrt") {
		terms = append(terms, "square root")
	}
	if strings.Contains(expression, "log") {
		terms = append(terms, "logarithm")
	}
	if strings.Contains(expression, "163") {
		terms = append(terms, "163")
	}
	if strings.Count(expression, "/") > 1 && strings.Contains(expression, "+") {
		terms = append(terms, "continued fraction")
	}
	if strings.Count(expression, "sqrt") > 1 {
		terms = append(terms, "nested radical")
	}
	return terms
}

func (c *OEISClient) search(ctx context.Context, query string) ([]Match, error) {
	if cached, ok := c.lookupCache(query); ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&fmt=json", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.OracleUnavailable, "building OEIS request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.OracleUnavailable, "querying OEIS")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithFields(
			errors.New(errors.OracleUnavailable, "OEIS returned non-OK status"),
			errors.Fields{"status": resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.OracleUnavailable, "reading OEIS response")
	}

	matches, err := parseOEISBody(body, c.maxHits)
	if err != nil {
		return nil, err
	}

	logging.GetLogger().Debug(ctx, "OEIS lookup returned %d matches for %q", len(matches), query)
	c.storeCache(query, matches)
	return matches, nil
}

// parseOEISBody handles both response shapes the OEIS API has used: an
// object with a results array, and a bare array of results.
func parseOEISBody(body []byte, maxHits int) ([]Match, error) {
	var wrapped oeisResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		var bare []oeisResult
		if err2 := json.Unmarshal(body, &bare); err2 != nil {
			return nil, errors.Wrap(err, errors.OracleUnavailable, "decoding OEIS response")
		}
		wrapped.Results = bare
	}

	matches := make([]Match, 0, len(wrapped.Results))
	for i, r := range wrapped.Results {
		if i >= maxHits {
			break
		}
		id := fmt.Sprintf("A%06d", r.Number)
		matches = append(matches, Match{
			ID:         id,
			Name:       r.Name,
			URL:        fmt.Sprintf("https://oeis.org/%s", id),
			Confidence: confidenceForRank(i),
		})
	}
	return matches, nil
}

// confidenceForRank decays with result position; OEIS orders hits by
// relevance.
func confidenceForRank(rank int) float64 {
	conf := 0.95 - 0.1*float64(rank)
	if conf < 0.5 {
		conf = 0.5
	}
	return conf
}

// leadingDigits extracts up to n decimal digits from a number string,
// ignoring sign and decimal point.
func leadingDigits(value string, n int) []string {
	out := make([]string, 0, n)
	for _, r := range value {
		if r < '0' || r > '9' {
			continue
		}
		out = append(out, string(r))
		if len(out) == n {
			break
		}
	}
	// Strip leading zeros so 0.577... searches as 5,7,7.
	for len(out) > 0 && out[0] == "0" {
		out = out[1:]
	}
	return out
}

func (c *OEISClient) lookupCache(query string) ([]Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	matches, ok := c.cache[query]
	return matches, ok
}

func (c *OEISClient) storeCache(query string, matches []Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cache) >= c.cacheSize {
		// Coarse eviction; lookups are cheap to redo after a reset.
		c.cache = make(map[string][]Match)
	}
	c.cache[query] = matches
}
