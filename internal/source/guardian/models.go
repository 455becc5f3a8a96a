package guardian

// APIResponse represents the Guardian content search response structure.
type APIResponse struct {
	Response SearchResponse `json:"response"`
}

type SearchResponse struct {
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	CurrentPage int       `json:"currentPage"`
	PageSize    int       `json:"pageSize"`
	OrderBy     string    `json:"orderBy"`
	Results     []Content `json:"results"`
}

// Content is one search hit. Only the fields that survive normalization
// are decoded.
type Content struct {
	WebPublicationDate string `json:"webPublicationDate"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
}

// ErrorResponse is the body the API sends with most non-200 statuses.
type ErrorResponse struct {
	Response struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"response"`
}
