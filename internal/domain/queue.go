package domain

// QueueHandle addresses a durable queue. URL is what callers see; Name is
// what brokers that route by name need.
type QueueHandle struct {
	Name string
	URL  string
}

// PublishEnvelope is the message body placed on the queue. Field order is
// the wire order.
type PublishEnvelope struct {
	ID         string         `json:"ID"`
	SearchTerm string         `json:"Search Term"`
	DateFrom   *string        `json:"Date From"`
	ExactMatch bool           `json:"Exact Match?"`
	Results    []ResultRecord `json:"Results"`
}

// NewEnvelope builds the envelope for a run. The query is copied, never
// aliased, so later changes to the caller's values cannot leak into it.
func NewEnvelope(correlationID string, q SearchQuery, records []ResultRecord) PublishEnvelope {
	var dateFrom *string
	if q.DateFrom != nil {
		d := *q.DateFrom
		dateFrom = &d
	}

	results := make([]ResultRecord, len(records))
	copy(results, records)

	return PublishEnvelope{
		ID:         correlationID,
		SearchTerm: q.Term,
		DateFrom:   dateFrom,
		ExactMatch: q.ExactMatch,
		Results:    results,
	}
}
