package indexer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"indexer/internal/constants"
	"indexer/internal/logger"
	"indexer/internal/runlog"
	"indexer/pkg/cel"
	apperrors "indexer/pkg/errors"
	"indexer/pkg/logging"
	"indexer/pkg/metrics"
	"indexer/pkg/models"
	"indexer/pkg/tracing"
)

type RecordSource interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type DocumentStore interface {
	Archive(token, doc string) (string, error)
}

type DocumentIndex interface {
	Publish(ctx context.Context, doc, token string) (string, error)
}

// Policy decides whether the two late stages can fail a run. The zero value
// keeps ACCEPTED when archiving or publishing goes wrong.
type Policy struct {
	FailOnArchiveError bool
	FailOnPublishError bool
}

type Dependencies struct {
	HandlerID   string
	Guard       *cel.Guard
	Source      RecordSource
	Transformer *Transformer
	Store       DocumentStore
	Index       DocumentIndex
	Recorder    runlog.Recorder
	Policy      Policy
	Logger      logger.Logger
}

// Coordinator runs the pipeline for one notification at a time per call and
// holds no mutable state, so concurrent calls are safe.
type Coordinator struct {
	filter      *AddressFilter
	guard       *cel.Guard
	source      RecordSource
	transformer *Transformer
	store       DocumentStore
	index       DocumentIndex
	recorder    runlog.Recorder
	policy      Policy
	logger      logger.Logger
}

func NewCoordinator(d Dependencies) (*Coordinator, error) {
	switch {
	case d.HandlerID == "":
		return nil, errors.New("handler id is required")
	case d.Source == nil:
		return nil, errors.New("record source is required")
	case d.Transformer == nil:
		return nil, errors.New("transformer is required")
	case d.Store == nil:
		return nil, errors.New("document store is required")
	case d.Index == nil:
		return nil, errors.New("document index is required")
	}

	recorder := d.Recorder
	if recorder == nil {
		recorder = runlog.NopRecorder{}
	}
	log := d.Logger
	if log == nil {
		log = logger.NopLogger()
	}

	return &Coordinator{
		filter:      NewAddressFilter(d.HandlerID),
		guard:       d.Guard,
		source:      d.Source,
		transformer: d.Transformer,
		store:       d.Store,
		index:       d.Index,
		recorder:    recorder,
		policy:      d.Policy,
		logger:      log,
	}, nil
}

// Handle never returns an error and never panics; every problem ends up in
// the Outcome.
func (c *Coordinator) Handle(ctx context.Context, n models.Notification) (outcome models.Outcome) {
	start := time.Now()
	ctx = logging.WithMessageID(ctx, n.ID)
	ctx = logging.WithEntityID(ctx, n.EntityID)
	if n.TraceID != "" {
		ctx = logging.WithTraceID(ctx, n.TraceID)
	}

	ctx, span := tracing.GetTracer("indexer").Start(ctx, "indexer.handle")
	defer span.End()

	var run *runlog.Run
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.RecoverPanic(r)
			c.logger.ErrorwCtx(ctx, "Panic recovered in pipeline", "error", err)
			if run != nil {
				run.Note(err)
			}
			outcome = models.OutcomeFailed
		}

		span.SetAttributes(attribute.String("indexer.outcome", outcome.String()))
		metrics.ObserveRun(outcome.String(), time.Since(start))

		if run != nil {
			run.Finish(outcome)
			if err := c.recorder.Record(ctx, *run); err != nil {
				c.logger.WarnwCtx(ctx, "Failed to record run", "run_id", run.ID, "error", err)
			}
		}
		c.logger.InfowCtx(ctx, "Notification handled",
			"outcome", outcome.String(),
			"duration", time.Since(start),
		)
	}()

	if !c.accepts(ctx, n) {
		return models.OutcomeRejected
	}

	run = runlog.NewRun(n)
	return c.process(ctx, n, run)
}

func (c *Coordinator) accepts(ctx context.Context, n models.Notification) bool {
	if !c.filter.Addressed(n) {
		c.logger.DebugwCtx(ctx, "Notification not addressed to this handler", "addressees", n.Addressees)
		return false
	}
	if c.guard == nil {
		return true
	}

	ok, err := c.guard.Evaluate(ctx, n)
	if err != nil {
		c.logger.WarnwCtx(ctx, "Acceptance guard failed", "expression", c.guard.Expression(), "error", err)
		return false
	}
	if !ok {
		c.logger.DebugwCtx(ctx, "Notification refused by acceptance guard", "expression", c.guard.Expression())
	}
	return ok
}

func (c *Coordinator) process(ctx context.Context, n models.Notification, run *runlog.Run) models.Outcome {
	rawURL, _ := n.ResolvingURL()

	var record string
	err := c.stage(ctx, run, constants.StageFetch, func(ctx context.Context) (err error) {
		record, err = c.source.Fetch(ctx, rawURL)
		return err
	})
	if err != nil {
		c.logger.WarnwCtx(ctx, "Record could not be fetched", "url", rawURL, "error", err)
		return models.OutcomeFailed
	}

	var doc string
	err = c.stage(ctx, run, constants.StageTransform, func(context.Context) (err error) {
		doc, err = c.transformer.Transform(record)
		return err
	})
	if err != nil {
		c.logger.WarnwCtx(ctx, "Record could not be transformed", "template", c.transformer.Name(), "error", err)
		return models.OutcomeFailed
	}

	run.Reach(constants.StageIdentify)
	token, ok := Tokenize(n.EntityID)
	if !ok {
		run.Note(apperrors.ErrFilename)
		c.logger.WarnwCtx(ctx, "Entity identifier yields no file name")
		return models.OutcomeFailed
	}
	run.Token = token

	err = c.stage(ctx, run, constants.StageArchive, func(context.Context) error {
		_, err := c.store.Archive(token, doc)
		return err
	})
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Document could not be archived", "token", token, "error", err)
		if c.policy.FailOnArchiveError {
			return models.OutcomeFailed
		}
	} else {
		run.Archived = true
	}

	var response string
	err = c.stage(ctx, run, constants.StagePublish, func(ctx context.Context) (err error) {
		response, err = c.index.Publish(ctx, doc, token)
		return err
	})
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Document could not be published", "token", token, "error", err)
		if c.policy.FailOnPublishError {
			return models.OutcomeFailed
		}
	} else {
		run.Published = true
		c.logger.DebugwCtx(ctx, "Index response", "token", token, "response", response)
	}

	return models.OutcomeAccepted
}

// stage times fn, traces it and keeps the run's stage and first error current.
func (c *Coordinator) stage(ctx context.Context, run *runlog.Run, name string, fn func(context.Context) error) error {
	ctx, span := tracing.GetTracer("indexer").Start(ctx, "indexer."+name)
	defer span.End()

	run.Reach(name)
	start := time.Now()
	err := fn(ctx)

	status := "ok"
	if err != nil {
		status = "error"
		run.Note(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ObserveStage(name, status, time.Since(start))
	return err
}
