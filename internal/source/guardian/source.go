package guardian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"guardian_relay/internal/domain"
)

const (
	SourceID       = "guardian"
	DefaultBaseURL = "https://content.guardianapis.com/search"

	// MaxResults is the upstream's default page size; no further pages are
	// requested.
	MaxResults = 10

	maxErrorBody = 64 << 10
)

var ErrInvalidAPIKey = errors.New("invalid api key")

// Config holds Guardian source configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Source queries the Guardian content search API. One attempt per search.
type Source struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// New creates a new Guardian source. The API key is resolved by the caller
// once per process and passed in here.
func New(cfg Config, logger *slog.Logger) *Source {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Search runs one query and never returns an error value: failures are
// logged and reported through the result's Status.
func (s *Source) Search(ctx context.Context, q domain.SearchQuery) domain.SearchResult {
	endpoint := s.BuildURL(q)
	log := s.logger.With(
		"search_term", q.Term,
		"date_from", q.DateFromValue(),
		"exact_match", q.ExactMatch,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		log.Error("failed to build search request", "error", err)
		return failed(domain.StatusTransportError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "GuardianRelay/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error("search request failed", "error", err)
		return failed(domain.StatusTransportError, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		log.Error("Invalid api key")
		return failed(domain.StatusInvalidKey, ErrInvalidAPIKey)
	default:
		message, raw := readErrorBody(resp.Body)
		log.Error(message, "status", resp.StatusCode, "body", raw)
		return failed(domain.StatusUpstreamError, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, message))
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		log.Error("failed to decode search response", "error", err)
		return failed(domain.StatusDecodeError, fmt.Errorf("decode response: %w", err))
	}

	records := transform(apiResp.Response.Results)

	log.Info("retrieved search results", "results", len(records))

	return domain.SearchResult{Status: domain.StatusOK, Records: records}
}

// BuildURL renders the request URL for a query. Spaces in the term are
// percent-encoded; an exact match wraps the term in quotes so the API
// treats it as a phrase.
func (s *Source) BuildURL(q domain.SearchQuery) string {
	term := strings.ReplaceAll(q.Term, " ", "%20")
	if q.ExactMatch {
		term = `"` + term + `"`
	}
	term = escapeTerm(term)

	var sb strings.Builder
	sb.WriteString(s.baseURL)
	if strings.Contains(s.baseURL, "?") {
		sb.WriteString("&")
	} else {
		sb.WriteString("?")
	}
	sb.WriteString("order-by=newest&q=")
	sb.WriteString(term)
	if s.apiKey != "" {
		sb.WriteString("&api-key=")
		sb.WriteString(url.QueryEscape(s.apiKey))
	}
	if q.DateFrom != nil {
		sb.WriteString("&from-date=")
		sb.WriteString(url.QueryEscape(*q.DateFrom))
	}
	return sb.String()
}

// escapeTerm percent-encodes what is left of the term after spaces were
// handled, keeping the existing %20 sequences intact.
func escapeTerm(term string) string {
	parts := strings.Split(term, "%20")
	for i, p := range parts {
		parts[i] = url.QueryEscape(p)
	}
	return strings.Join(parts, "%20")
}

func transform(contents []Content) []domain.ResultRecord {
	if len(contents) > MaxResults {
		contents = contents[:MaxResults]
	}

	records := make([]domain.ResultRecord, 0, len(contents))
	for _, c := range contents {
		records = append(records, domain.ResultRecord{
			PublicationDate: c.WebPublicationDate,
			Title:           c.WebTitle,
			URL:             c.WebURL,
		})
	}
	return records
}

// readErrorBody returns a short message for the error and the body as
// sent. The message is the API's own when the body has its JSON error
// shape, otherwise the body text.
func readErrorBody(r io.Reader) (message, raw string) {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	raw = strings.TrimSpace(string(b))
	if err != nil {
		return fmt.Sprintf("read error body: %v", err), raw
	}

	var errResp ErrorResponse
	if json.Unmarshal(b, &errResp) == nil && errResp.Response.Message != "" {
		return errResp.Response.Message, raw
	}

	var text string
	if json.Unmarshal(b, &text) == nil {
		return text, raw
	}
	return raw, raw
}

func failed(status domain.SearchStatus, err error) domain.SearchResult {
	return domain.SearchResult{Status: status, Records: []domain.ResultRecord{}, Err: err}
}
