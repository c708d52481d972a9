package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"surveyflow/internal/constants"
	"surveyflow/internal/reference"
	apperrors "surveyflow/pkg/errors"
	"surveyflow/pkg/logging"
	"surveyflow/pkg/models"
	"surveyflow/pkg/tracing"
)

const (
	skipReasonReferenceMissing = "reference_missing"
	skipReasonDuplicate        = "duplicate"
)

// ProcessMessage loads the reference table, enriches the message and appends
// the result in a single store call. Every failure is counted once in
// processing_errors_total and never stops the loop. A redelivery whose rows
// were already appended counts as processed.
func (l *Loop) ProcessMessage(ctx context.Context, raw models.RawMessage) (outcome Outcome) {
	start := time.Now()

	ctx, span := tracing.StartSpanFromHeaders(ctx, "ingestion.process", raw.Headers)
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", raw.Topic),
		attribute.Int("messaging.kafka.partition", raw.Partition),
		attribute.Int64("messaging.kafka.offset", raw.Offset),
	)

	ctx = l.messageContext(ctx, raw)

	defer func() {
		l.metrics.ObserveProcessingDuration(time.Since(start))
		span.SetAttributes(attribute.String("ingestion.outcome", outcome.String()))
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome = l.fail(ctx, span, "panic", apperrors.FromPanic(r))
		}
	}()

	if err := models.ValidateRawMessage(&raw); err != nil {
		return l.fail(ctx, span, "validate", err)
	}

	table, err := l.deps.Loader.Load(ctx, l.cfg.ReferencePath)
	if err != nil {
		if errors.Is(err, reference.ErrNotFound) && l.cfg.MissingReferencePolicy == constants.MissingReferenceSkip {
			l.metrics.IncSkipped(skipReasonReferenceMissing)
			l.logger.WarnwCtx(ctx, "Reference file missing, message skipped", "path", l.cfg.ReferencePath)
			return OutcomeSkipped
		}
		return l.fail(ctx, span, "load_reference", err)
	}

	records, err := l.deps.Enricher.Enrich(raw, table)
	if err != nil {
		return l.fail(ctx, span, "enrich", err)
	}
	if len(records) == 0 {
		l.metrics.IncProcessed()
		l.logger.DebugwCtx(ctx, "No reference row matched", "reference_rows", table.Len())
		return OutcomeEmpty
	}

	claimed, err := l.deps.Guard.Claim(ctx, raw)
	if err != nil {
		return l.fail(ctx, span, "claim", err)
	}
	if !claimed {
		// the rows already exist, so the delivery is handled
		l.metrics.IncProcessed()
		l.metrics.IncSkipped(skipReasonDuplicate)
		l.logger.InfowCtx(ctx, "Redelivered message already appended", "idempotency_key", raw.IdempotencyKey())
		return OutcomeDuplicate
	}

	count, err := l.deps.Writer.Append(ctx, l.cfg.Table, records)
	if err != nil {
		if rerr := l.deps.Guard.Release(ctx, raw); rerr != nil {
			l.logger.WarnwCtx(ctx, "Failed to release idempotency claim", "error", rerr)
		}
		return l.fail(ctx, span, "append", err)
	}

	l.metrics.IncProcessed()
	l.metrics.SetStoreRows(count)
	l.logger.InfowCtx(ctx, "Message enriched and stored",
		"rows_appended", len(records),
		"row_count", count,
	)
	return OutcomePersisted
}

func (l *Loop) fail(ctx context.Context, span trace.Span, stage string, err error) Outcome {
	l.setState(StateMessageFailed)
	defer l.setState(StateConsuming)

	code := apperrors.Classify(err).Code
	retryable := apperrors.Retryable(err)

	l.metrics.IncErrors()
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.code", code),
		attribute.Bool("error.retryable", retryable),
	)
	span.SetStatus(codes.Error, stage)

	if apperrors.IsPanic(err) {
		l.logger.ErrorwCtx(ctx, "Recovered panic while processing message",
			"stage", stage,
			"error_code", code,
			"error", err,
			"stack_trace", apperrors.StackTrace(err),
		)
		return OutcomeFailed
	}
	l.logError(ctx, "Failed to process message",
		"stage", stage,
		"error_code", code,
		"retryable", retryable,
		"error", err,
	)
	return OutcomeFailed
}

func (l *Loop) messageContext(ctx context.Context, raw models.RawMessage) context.Context {
	messageID := raw.Key
	if messageID == "" {
		messageID = uuid.NewString()
	}
	ctx = logging.WithMessageID(ctx, messageID)
	ctx = logging.WithPosition(ctx, logging.Position{
		Topic:     raw.Topic,
		Partition: raw.Partition,
		Offset:    raw.Offset,
	})
	if traceID := tracing.TraceID(ctx); traceID != "" {
		ctx = logging.WithTraceID(ctx, traceID)
	}
	return ctx
}
