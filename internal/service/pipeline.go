package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"guardian_relay/internal/domain"
)

// DefaultQueueName is the queue every run publishes into. Runs are told
// apart by the envelope's ID, not by queue.
const DefaultQueueName = "guardian_content_queue"

// Pipeline relays the results of one search into the queue per Run call.
type Pipeline struct {
	searcher  Searcher
	publisher QueuePublisher
	recorder  RunRecorder
	queueName string
	logger    *slog.Logger
}

// NewPipeline wires the stages. recorder may be nil.
func NewPipeline(
	searcher Searcher,
	publisher QueuePublisher,
	recorder RunRecorder,
	queueName string,
	logger *slog.Logger,
) *Pipeline {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Pipeline{
		searcher:  searcher,
		publisher: publisher,
		recorder:  recorder,
		queueName: queueName,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run publishes the results of one search. The returned error is set only
// when the queue could not be created; a failed search still publishes an
// envelope with empty Results, and a failed publish is reported in the
// RunReport.
func (p *Pipeline) Run(ctx context.Context, q domain.SearchQuery, correlationID string) (*domain.RunReport, error) {
	report := &domain.RunReport{RunID: uuid.NewString()}
	log := p.logger.With("run_id", report.RunID, "id", correlationID)

	log.Debug("starting run",
		"search_term", q.Term,
		"date_from", q.DateFromValue(),
		"exact_match", q.ExactMatch,
	)

	result := p.searcher.Search(ctx, q)
	report.SearchStatus = result.Status
	report.ResultCount = len(result.Records)
	if !result.OK() {
		log.Warn("search failed, publishing empty results", "status", result.Status, "error", result.Err)
	}

	env := domain.NewEnvelope(correlationID, q, result.Records)

	queue, err := p.publisher.EnsureQueue(ctx, p.queueName)
	if err != nil {
		p.record(ctx, log, report, env)
		return report, err
	}
	report.QueueURL = queue.URL

	if err := p.publisher.Publish(ctx, queue, env); err != nil {
		report.PublishErr = err
	} else {
		report.Published = true
	}

	p.record(ctx, log, report, env)

	log.Info("run completed",
		"search_status", report.SearchStatus,
		"results", report.ResultCount,
		"published", report.Published,
		"queue", report.QueueURL,
	)

	return report, nil
}

func (p *Pipeline) record(
	ctx context.Context,
	log *slog.Logger,
	report *domain.RunReport,
	env domain.PublishEnvelope,
) {
	if p.recorder == nil {
		return
	}

	run := &domain.Run{
		ID:            report.RunID,
		CorrelationID: env.ID,
		SearchTerm:    env.SearchTerm,
		DateFrom:      env.DateFrom,
		ExactMatch:    env.ExactMatch,
		SearchStatus:  string(report.SearchStatus),
		QueueURL:      report.QueueURL,
		Published:     report.Published,
		ResultCount:   report.ResultCount,
		Results:       env.Results,
	}
	if err := p.recorder.Record(ctx, run); err != nil {
		log.Error("failed to record run", "error", err)
	}
}
