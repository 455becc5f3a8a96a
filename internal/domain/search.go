package domain

// SearchQuery is the caller-supplied input of one pipeline run.
type SearchQuery struct {
	Term       string
	DateFrom   *string // ISO-8601 lower bound, passed to the upstream untouched
	ExactMatch bool
}

// DateFromValue returns the date filter or "" when none is set.
func (q SearchQuery) DateFromValue() string {
	if q.DateFrom == nil {
		return ""
	}
	return *q.DateFrom
}

// ResultRecord is one normalized upstream search hit.
type ResultRecord struct {
	PublicationDate string `json:"webPublicationDate"`
	Title           string `json:"webTitle"`
	URL             string `json:"webUrl"`
}

// SearchStatus tells a successful empty search apart from a failed one.
type SearchStatus string

const (
	StatusOK             SearchStatus = "ok"
	StatusInvalidKey     SearchStatus = "invalid_key"
	StatusUpstreamError  SearchStatus = "upstream_error"
	StatusTransportError SearchStatus = "transport_error"
	StatusDecodeError    SearchStatus = "decode_error"
)

// SearchResult is what the search client hands to the pipeline. Records is
// never nil, so an envelope always serializes Results as a JSON list.
type SearchResult struct {
	Status  SearchStatus
	Records []ResultRecord
	Err     error
}

// OK reports whether the upstream call succeeded.
func (r SearchResult) OK() bool {
	return r.Status == StatusOK
}
