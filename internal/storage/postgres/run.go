package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"guardian_relay/internal/domain"
)

// RunStore keeps a ledger of pipeline runs so partial failures can be found
// without reading logs.
type RunStore struct {
	db *sqlx.DB
	tx *TransactionManager
}

func NewRunStore(db *sqlx.DB, tx *TransactionManager) *RunStore {
	return &RunStore{db: db, tx: tx}
}

type resultRow struct {
	RunID           string `db:"run_id"`
	Position        int    `db:"position"`
	PublicationDate string `db:"publication_date"`
	Title           string `db:"title"`
	URL             string `db:"url"`
}

// Record stores the run and its result records atomically.
func (s *RunStore) Record(ctx context.Context, run *domain.Run) error {
	return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		query := `
			INSERT INTO search_runs (
				id, correlation_id, search_term, date_from, exact_match,
				search_status, queue_url, published, result_count
			) VALUES (
				:id, :correlation_id, :search_term, :date_from, :exact_match,
				:search_status, :queue_url, :published, :result_count
			)`
		if _, err := sqlx.NamedExecContext(txCtx, exec, query, run); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if err := s.insertResults(txCtx, exec, run.ID, run.Results); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
		return nil
	})
}

func (s *RunStore) insertResults(ctx context.Context, exec sqlx.ExtContext, runID string, results []domain.ResultRecord) error {
	if len(results) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO search_run_results (run_id, position, publication_date, title, url) VALUES ")
	args := make([]any, 0, len(results)*4+1)
	args = append(args, runID)

	for i, r := range results {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := len(args)
		sb.WriteString("($1, $")
		sb.WriteString(strconv.Itoa(base + 1))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(base + 2))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(base + 3))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(base + 4))
		sb.WriteString(")")
		args = append(args, i, r.PublicationDate, r.Title, r.URL)
	}

	_, err := exec.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetByCorrelationID returns every run published under the id, oldest
// first, with their result records.
func (s *RunStore) GetByCorrelationID(ctx context.Context, correlationID string) ([]domain.Run, error) {
	var runs []domain.Run
	query := `
		SELECT id, correlation_id, search_term, date_from, exact_match,
			search_status, queue_url, published, result_count, created_at
		FROM search_runs
		WHERE correlation_id = $1
		ORDER BY created_at, id`

	if err := s.db.SelectContext(ctx, &runs, query, correlationID); err != nil {
		return nil, err
	}

	for i := range runs {
		results, err := s.results(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Results = results
	}
	return runs, nil
}

// ListByStatuses returns runs whose search ended in one of the statuses,
// without result records.
func (s *RunStore) ListByStatuses(ctx context.Context, statuses []domain.SearchStatus) ([]domain.Run, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}

	var runs []domain.Run
	query := `
		SELECT id, correlation_id, search_term, date_from, exact_match,
			search_status, queue_url, published, result_count, created_at
		FROM search_runs
		WHERE search_status = ANY($1)
		ORDER BY created_at, id`

	err := s.db.SelectContext(ctx, &runs, query, pq.Array(values))
	return runs, err
}

func (s *RunStore) results(ctx context.Context, runID string) ([]domain.ResultRecord, error) {
	var rows []resultRow
	query := `
		SELECT run_id, position, publication_date, title, url
		FROM search_run_results
		WHERE run_id = $1
		ORDER BY position`

	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, err
	}

	records := make([]domain.ResultRecord, len(rows))
	for i, r := range rows {
		records[i] = domain.ResultRecord{
			PublicationDate: r.PublicationDate,
			Title:           r.Title,
			URL:             r.URL,
		}
	}
	return records, nil
}
