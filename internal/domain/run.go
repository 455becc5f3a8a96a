package domain

import "time"

// RunReport is the orchestrator's answer to "did it work". QueueURL is set
// whenever queue creation succeeded, even if publishing failed.
type RunReport struct {
	RunID        string
	QueueURL     string
	SearchStatus SearchStatus
	ResultCount  int
	Published    bool
	PublishErr   error
}

// Run is the persisted form of one pipeline invocation.
type Run struct {
	ID            string    `db:"id"`
	CorrelationID string    `db:"correlation_id"`
	SearchTerm    string    `db:"search_term"`
	DateFrom      *string   `db:"date_from"`
	ExactMatch    bool      `db:"exact_match"`
	SearchStatus  string    `db:"search_status"`
	QueueURL      string    `db:"queue_url"`
	Published     bool      `db:"published"`
	ResultCount   int       `db:"result_count"`
	CreatedAt     time.Time `db:"created_at"`

	Results []ResultRecord `db:"-"`
}
