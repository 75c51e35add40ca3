package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/pkg/jobs"
)

// Event types published after a write commits.
const (
	EventEnrolled        = "enrollment.created"
	EventEnrollmentEnded = "enrollment.ended"
	EventRosterCreated   = "roster.created"
)

// Hooks receive post-commit notifications. Implementations must not block the caller.
type Hooks interface {
	OnEnrolled(ctx context.Context, enrollment models.Enrollment)
	OnEnrollmentEnded(ctx context.Context, enrollment models.Enrollment)
	OnRosterCreated(ctx context.Context, roster models.AttendanceRoster, items int)
}

type noopHooks struct{}

func (noopHooks) OnEnrolled(context.Context, models.Enrollment)                 {}
func (noopHooks) OnEnrollmentEnded(context.Context, models.Enrollment)          {}
func (noopHooks) OnRosterCreated(context.Context, models.AttendanceRoster, int) {}

// Event is the payload delivered to notifiers.
type Event struct {
	Type         string `json:"type"`
	OfferingID   string `json:"offering_id"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	RosterID     string `json:"roster_id,omitempty"`
	Date         string `json:"date,omitempty"`
	Items        int    `json:"items,omitempty"`
}

// Notifier delivers events, e.g. as emails or webhooks.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info("domain event",
		zap.String("type", event.Type),
		zap.String("offering_id", event.OfferingID),
		zap.String("enrollment_id", event.EnrollmentID),
		zap.String("client_id", event.ClientID),
		zap.String("roster_id", event.RosterID),
		zap.String("date", event.Date),
		zap.Int("items", event.Items),
	)
	return nil
}

type jobEnqueuer interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

// NotificationDispatcher implements Hooks by queueing events for asynchronous delivery.
type NotificationDispatcher struct {
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewNotificationDispatcher registers the delivery handler for every event type on queue.
func NewNotificationDispatcher(queue jobEnqueuer, notifier Notifier, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	deliver := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
		}
		return notifier.Notify(ctx, event)
	}
	for _, eventType := range []string{EventEnrolled, EventEnrollmentEnded, EventRosterCreated} {
		queue.Register(eventType, deliver)
	}
	return &NotificationDispatcher{queue: queue, logger: logger}
}

// OnEnrolled queues an enrollment notification.
func (d *NotificationDispatcher) OnEnrolled(_ context.Context, enrollment models.Enrollment) {
	d.publish(Event{Type: EventEnrolled, OfferingID: enrollment.OfferingID, EnrollmentID: enrollment.ID, ClientID: enrollment.ClientID, Date: enrollment.StartDate.String()})
}

// OnEnrollmentEnded queues an end-of-enrollment notification.
func (d *NotificationDispatcher) OnEnrollmentEnded(_ context.Context, enrollment models.Enrollment) {
	event := Event{Type: EventEnrollmentEnded, OfferingID: enrollment.OfferingID, EnrollmentID: enrollment.ID, ClientID: enrollment.ClientID}
	if enrollment.EndDate != nil {
		event.Date = enrollment.EndDate.String()
	}
	d.publish(event)
}

// OnRosterCreated queues a roster notification.
func (d *NotificationDispatcher) OnRosterCreated(_ context.Context, roster models.AttendanceRoster, items int) {
	d.publish(Event{Type: EventRosterCreated, OfferingID: roster.OfferingID, RosterID: roster.ID, Date: roster.Date.String(), Items: items})
}

func (d *NotificationDispatcher) publish(event Event) {
	if err := d.queue.Enqueue(jobs.Job{Type: event.Type, Payload: event}); err != nil {
		d.logger.Warn("drop domain event", zap.String("type", event.Type), zap.Error(err))
	}
}
