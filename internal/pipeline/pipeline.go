// Package pipeline runs one helpdesk query end to end: capture host context,
// obtain an answer, classify, build the incident record and persist it.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/helpdesk/internal/backend"
	"github.com/miradorstack/helpdesk/internal/classifier"
	"github.com/miradorstack/helpdesk/internal/incident"
	"github.com/miradorstack/helpdesk/internal/metrics"
	"github.com/miradorstack/helpdesk/internal/models"
	"github.com/miradorstack/helpdesk/internal/store"
	"github.com/miradorstack/helpdesk/internal/sysinfo"
	"github.com/miradorstack/helpdesk/internal/utils"
)

// ContextCollector captures the ambient host metadata for a query.
type ContextCollector interface {
	Collect() models.SystemContext
}

// recordLocator is implemented by stores that keep one file per record.
type recordLocator interface {
	TicketPath(recordID string) string
}

// Options tunes the pipeline. Zero values fall back to defaults.
type Options struct {
	SystemPrompt   string
	BackendTimeout time.Duration
	LatencyWindow  int
}

// Result describes a handled query. BackendErr is set when the answer is a
// placeholder because the completion backend failed.
type Result struct {
	Record     models.IncidentRecord
	Location   string
	BackendErr error
}

// Pipeline holds the process-wide collaborators. It is safe for concurrent use.
type Pipeline struct {
	logger     *slog.Logger
	collector  ContextCollector
	completer  backend.Completer
	classifier *classifier.Classifier
	builder    *incident.Builder
	store      store.Appender
	prompt     string
	timeout    time.Duration
	latency    *utils.LatencyTracker
}

// NewPipeline constructs a query pipeline. A nil classifier classifies every
// question as (low, other); a nil completer answers with the not-installed
// guidance.
func NewPipeline(
	logger *slog.Logger,
	collector ContextCollector,
	completer backend.Completer,
	cls *classifier.Classifier,
	builder *incident.Builder,
	appender store.Appender,
	opts Options,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = sysinfo.NewCollector()
	}
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = 60 * time.Second
	}

	return &Pipeline{
		logger:     logger,
		collector:  collector,
		completer:  completer,
		classifier: cls,
		builder:    builder,
		store:      appender,
		prompt:     opts.SystemPrompt,
		timeout:    opts.BackendTimeout,
		latency:    utils.NewLatencyTracker(opts.LatencyWindow),
	}
}

// Location reports where incident records are written.
func (p *Pipeline) Location() string {
	if p.store == nil {
		return ""
	}
	return p.store.Location()
}

// History returns every persisted record.
func (p *Pipeline) History(ctx context.Context) ([]models.IncidentRecord, error) {
	if p.store == nil {
		return nil, errors.New("incident store not configured")
	}
	return p.store.ReadAll(ctx)
}

// Handle answers question and logs it as an incident. A blank question is
// rejected with *utils.ValidationError before any work happens. Backend
// failures never prevent the record from being written; persistence failures
// are returned as *utils.IOFailure together with the record that was lost.
func (p *Pipeline) Handle(ctx context.Context, question string) (Result, error) {
	if p.builder == nil || p.store == nil {
		return Result{}, errors.New("pipeline not fully configured")
	}

	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		metrics.ObserveQuery(time.Since(start), metrics.OutcomeError)
		return Result{}, utils.NewValidationError("question", "must not be empty")
	}

	var (
		sysCtx     models.SystemContext
		answer     string
		backendErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sysCtx = p.collector.Collect()
		return nil
	})
	g.Go(func() error {
		callStart := time.Now()
		answer, backendErr = backend.Resolve(gctx, p.completer, backend.BuildPrompt(p.prompt, question), p.timeout)
		p.latency.Observe(time.Since(callStart))
		return nil
	})
	_ = g.Wait()

	if backendErr != nil {
		reason := backend.ReasonError
		var bf *utils.BackendFailure
		if errors.As(backendErr, &bf) {
			reason = bf.Reason
		}
		metrics.ObserveBackendFailure(reason)
		p.logger.Warn("completion backend degraded, using placeholder answer",
			slog.String("reason", reason),
			slog.Any("error", backendErr),
		)
	}

	explained := p.classifier.Explain(question)
	if explained.SeverityKeyword != "" || explained.DepartmentKeyword != "" {
		p.logger.Debug("classification keywords",
			slog.String("severity_keyword", explained.SeverityKeyword),
			slog.String("department_keyword", explained.DepartmentKeyword),
		)
	}

	rec, err := p.builder.Build(sysCtx, question, answer, explained.Classification)
	if err != nil {
		metrics.ObserveQuery(time.Since(start), metrics.OutcomeError)
		return Result{BackendErr: backendErr}, err
	}

	result := Result{Record: rec, Location: p.store.Location(), BackendErr: backendErr}
	if locator, ok := p.store.(recordLocator); ok {
		result.Location = locator.TicketPath(rec.RecordID)
	}

	// An answered question is logged even when the caller is shutting down.
	if err := p.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		metrics.ObserveQuery(time.Since(start), metrics.OutcomeError)
		p.logger.Error("failed to persist incident record",
			slog.String("record_id", rec.RecordID),
			slog.String("location", result.Location),
			slog.Any("error", err),
		)
		return result, err
	}

	elapsed := time.Since(start)
	metrics.ObserveIncident(rec)
	metrics.ObserveQuery(elapsed, metrics.OutcomeLogged)
	p.logger.Info("incident logged",
		slog.String("record_id", rec.RecordID),
		slog.String("severity", string(rec.Severity)),
		slog.String("department", string(rec.Department)),
		slog.Bool("degraded", backendErr != nil),
		slog.Duration("elapsed", elapsed),
		slog.Duration("backend_p95", p.latency.Percentile(95)),
	)
	return result, nil
}
