// Package audit publishes compliance-relevant events (logins, review
// decisions, chain writes) to a Kafka topic. Publishing is best-effort and
// asynchronous; an audit outage never fails the originating request.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions recorded on the audit trail.
const (
	ActionLoginSucceeded      = "auth.login.succeeded"
	ActionLoginFailed         = "auth.login.failed"
	ActionUserRegistered      = "auth.user.registered"
	ActionVerificationReview  = "verification.reviewed"
	ActionVerificationRecord  = "chain.verification.recorded"
	ActionVerificationRevoked = "chain.verification.revoked"
)

// Event is a single audit trail entry.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	Subject   string    `json:"subject"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with an ID and timestamp.
func NewEvent(action, actorID, subject string) Event {
	return Event{
		ID:        uuid.NewString(),
		Action:    action,
		ActorID:   actorID,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher emits audit events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// Noop discards all events. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
func (Noop) Close()                         {}

// Recorder collects events in memory for test assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Close() {}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
