package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/dispatch"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

const defaultSendTimeout = 30 * time.Second

// Processor executes delivery attempts. Its Process method is registered
// as the dispatch worker's handler; the queue drives retries and backoff,
// the processor owns the notification lifecycle and the delivery log.
//
// Every attempt that reaches the processing state produces exactly one
// delivery log row, whether it fails before or during the provider call.
type Processor struct {
	store       Store
	logs        LogStore
	channels    *channel.Registry
	templates   templates.Source
	sendTimeout time.Duration
	logger      *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithSendTimeout bounds a single provider call. The queue's lock timeout
// still applies on top.
func WithSendTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

// WithProcessorLogger sets the logger.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor wires the delivery pipeline.
func NewProcessor(store Store, logs LogStore, channels *channel.Registry, source templates.Source, opts ...ProcessorOption) (*Processor, error) {
	if store == nil || logs == nil {
		return nil, ErrStorageNil
	}
	if channels == nil {
		return nil, ErrRegistryNil
	}
	if source == nil {
		return nil, ErrSourceNil
	}

	p := &Processor{
		store:       store,
		logs:        logs,
		channels:    channels,
		templates:   source,
		sendTimeout: defaultSendTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process runs one delivery attempt for the job's notification. Returning
// an error tells the queue to schedule a retry or finalize the job; a nil
// return completes it.
func (p *Processor) Process(ctx context.Context, job dispatch.Job) error {
	n, err := p.store.GetByID(ctx, job.NotificationID)
	if err != nil {
		// Without a record there is nothing to mark or log.
		return fmt.Errorf("failed to load notification %s: %w", job.NotificationID, err)
	}

	// An already-sent notification re-delivered by the queue (expired lock,
	// duplicate job) is a no-op, not a new attempt.
	if n.Status == StatusSent {
		p.logger.InfoContext(ctx, "skipping already sent notification",
			logger.NotificationID(n.ID.String()),
		)
		return nil
	}

	if err := p.store.UpdateStatus(ctx, n.ID, StatusProcessing); err != nil {
		// The attempt is spent either way, so it still gets a log row.
		if _, logErr := p.logs.Append(ctx, AppendLogParams{
			NotificationID: n.ID,
			Status:         LogStatusFailed,
			ErrorMessage:   err.Error(),
		}); logErr != nil {
			p.logger.ErrorContext(ctx, "failed to append delivery log",
				logger.NotificationID(n.ID.String()),
				logger.Error(logErr),
			)
		}
		return fmt.Errorf("failed to mark notification processing: %w", err)
	}

	tmpl, err := p.templates.Get(ctx, n.TemplateID)
	if err != nil {
		p.recordFailure(ctx, job, n, err.Error(), "")
		return fmt.Errorf("failed to load template: %w", err)
	}
	if tmpl.Channel != n.Channel {
		err := fmt.Errorf("template %q targets channel %q, notification wants %q", tmpl.ID, tmpl.Channel, n.Channel)
		p.recordFailure(ctx, job, n, err.Error(), "")
		return err
	}
	if err := tmpl.CheckVariables(n.Data); err != nil {
		p.recordFailure(ctx, job, n, err.Error(), "")
		return err
	}

	ch, err := p.channels.Get(n.Channel)
	if err != nil {
		p.recordFailure(ctx, job, n, err.Error(), "")
		return err
	}
	if err := ch.ValidateRecipient(n.Recipient); err != nil {
		p.recordFailure(ctx, job, n, err.Error(), "")
		return err
	}

	subject, body := tmpl.Render(n.Data)

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()
	result := ch.Send(sendCtx, n.Recipient, channel.Message{
		Subject: subject,
		Body:    body,
		Data:    n.Data,
	})

	if result.Success {
		// Delivery happened; bookkeeping failures are logged but the job
		// must not be retried, that would send the message again.
		if err := p.store.MarkSent(ctx, n.ID); err != nil {
			p.logger.ErrorContext(ctx, "failed to mark notification sent",
				logger.NotificationID(n.ID.String()),
				logger.Error(err),
			)
		}
		if _, err := p.logs.Append(ctx, AppendLogParams{
			NotificationID:   n.ID,
			Status:           LogStatusSent,
			ProviderResponse: result.RawResponse,
		}); err != nil {
			p.logger.ErrorContext(ctx, "failed to append delivery log",
				logger.NotificationID(n.ID.String()),
				logger.Error(err),
			)
		}

		p.logger.InfoContext(ctx, "notification delivered",
			logger.NotificationID(n.ID.String()),
			slog.String("channel", n.Channel),
			slog.Int("attempt", job.Attempt()),
			slog.String("message_id", result.MessageID),
		)
		return nil
	}

	p.recordFailure(ctx, job, n, result.Err, result.RawResponse)
	return fmt.Errorf("delivery failed on attempt %d: %s", job.Attempt(), result.Err)
}

// recordFailure updates the notification after a failed attempt and
// appends the log row. Bookkeeping errors are logged, never returned, so
// they cannot mask the delivery error the queue needs to see.
func (p *Processor) recordFailure(ctx context.Context, job dispatch.Job, n Notification, errMsg, rawResponse string) {
	if _, err := p.store.IncrementRetryCount(ctx, n.ID); err != nil {
		p.logger.ErrorContext(ctx, "failed to increment retry count",
			logger.NotificationID(n.ID.String()),
			logger.Error(err),
		)
	}

	var markErr error
	if job.FinalAttempt() {
		markErr = p.store.MarkFailed(ctx, n.ID, errMsg)
	} else {
		markErr = p.store.MarkRetrying(ctx, n.ID, errMsg)
	}
	if markErr != nil {
		p.logger.ErrorContext(ctx, "failed to update notification status",
			logger.NotificationID(n.ID.String()),
			logger.Error(markErr),
		)
	}

	if _, err := p.logs.Append(ctx, AppendLogParams{
		NotificationID:   n.ID,
		Status:           LogStatusFailed,
		ErrorMessage:     errMsg,
		ProviderResponse: rawResponse,
	}); err != nil {
		p.logger.ErrorContext(ctx, "failed to append delivery log",
			logger.NotificationID(n.ID.String()),
			logger.Error(err),
		)
	}

	p.logger.WarnContext(ctx, "delivery attempt failed",
		logger.NotificationID(n.ID.String()),
		slog.String("channel", n.Channel),
		slog.Int("attempt", job.Attempt()),
		slog.Bool("final", job.FinalAttempt()),
		slog.String("error", errMsg),
	)
}
