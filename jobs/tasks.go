// Package jobs runs the tracker's background work: notification emails for
// bug assignments and resolutions, processed through Asynq queues.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bugtrap/bugtrap/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBugAssigned notifies a developer that a bug landed on their desk.
	TaskTypeBugAssigned = "bug:assigned"
	// TaskTypeBugResolved notifies the reporter that their bug was fixed.
	TaskTypeBugResolved = "bug:resolved"
)

// BugAssignedPayload carries the identifiers the worker needs to compose an
// assignment notification. Recipient details are resolved at processing time
// so a stale email never sticks in the queue.
type BugAssignedPayload struct {
	BugID      int64  `json:"bug_id"`
	BugTitle   string `json:"bug_title"`
	AssigneeID int64  `json:"assignee_id"`
}

// BugResolvedPayload carries the identifiers for a resolution notification.
type BugResolvedPayload struct {
	BugID      int64  `json:"bug_id"`
	BugTitle   string `json:"bug_title"`
	ReporterID int64  `json:"reporter_id"`
}

// NewBugAssignedTask constructs an Asynq task.
func NewBugAssignedTask(payload BugAssignedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBugAssigned, data), nil
}

// NewBugResolvedTask constructs an Asynq task.
func NewBugResolvedTask(payload BugResolvedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBugResolved, data), nil
}

// Directory resolves recipient addresses at processing time.
type Directory interface {
	Email(ctx context.Context, userID int64) (string, error)
}

// Processor handles notification tasks on the worker side.
type Processor struct {
	mailer    Mailer
	directory Directory
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewProcessor constructs a Processor.
func NewProcessor(mailer Mailer, directory Directory, logger *slog.Logger, metrics *jobmetrics.Metrics) *Processor {
	return &Processor{mailer: mailer, directory: directory, logger: logger, metrics: metrics}
}

// HandleBugAssigned processes TaskTypeBugAssigned tasks.
func (p *Processor) HandleBugAssigned(ctx context.Context, t *asynq.Task) error {
	track := p.metrics.Track(TaskTypeBugAssigned)
	var payload BugAssignedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return track.End(fmt.Errorf("bug assigned payload: %v: %w", err, asynq.SkipRetry))
	}

	to, err := p.directory.Email(ctx, payload.AssigneeID)
	if err != nil {
		// Account removed between enqueue and processing; nothing to send.
		p.logger.WarnContext(ctx, "assignee lookup failed",
			slog.Int64("assignee_id", payload.AssigneeID), slog.String("error", err.Error()))
		return track.End(nil)
	}

	subject := "Bug #" + strconv.FormatInt(payload.BugID, 10) + " assigned to you"
	body := "You have been assigned bug #" + strconv.FormatInt(payload.BugID, 10) +
		": " + payload.BugTitle + "\n\nOpen the tracker to get started."
	return track.End(p.mailer.Send(ctx, to, subject, body))
}

// HandleBugResolved processes TaskTypeBugResolved tasks.
func (p *Processor) HandleBugResolved(ctx context.Context, t *asynq.Task) error {
	track := p.metrics.Track(TaskTypeBugResolved)
	var payload BugResolvedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return track.End(fmt.Errorf("bug resolved payload: %v: %w", err, asynq.SkipRetry))
	}

	to, err := p.directory.Email(ctx, payload.ReporterID)
	if err != nil {
		p.logger.WarnContext(ctx, "reporter lookup failed",
			slog.Int64("reporter_id", payload.ReporterID), slog.String("error", err.Error()))
		return track.End(nil)
	}

	subject := "Bug #" + strconv.FormatInt(payload.BugID, 10) + " resolved"
	body := "Your bug report #" + strconv.FormatInt(payload.BugID, 10) +
		": " + payload.BugTitle + " has been marked as resolved."
	return track.End(p.mailer.Send(ctx, to, subject, body))
}
