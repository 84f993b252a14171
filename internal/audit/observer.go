package audit

import (
	"context"

	"github.com/nerrad567/gray-logic-rulewalk/internal/walker"
)

// Audit row constants for walk steps.
const (
	EntityTypeRule = "rule"
	SourceRulewalk = "rulewalk"
)

// Logger defines the logging interface used by the Observer.
type Logger interface {
	Warn(msg string, args ...any)
}

// Observer persists walk step events. It implements walker.Observer.
type Observer struct {
	repo   Repository
	logger Logger
	userID string
}

// NewObserver creates an observer writing to repo. userID is recorded on
// every row and may be empty.
func NewObserver(repo Repository, userID string, logger Logger) *Observer {
	return &Observer{repo: repo, userID: userID, logger: logger}
}

// OnStep writes one audit row. A write failure is logged; it never affects
// the walk.
func (o *Observer) OnStep(ctx context.Context, ev walker.Event) {
	details := map[string]any{
		"walk_id":     ev.WalkID,
		"tag":         ev.Tag,
		"outcome":     ev.Outcome(),
		"duration_ms": ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		details["error"] = ev.Err.Error()
	}
	if ev.Status != nil {
		details["status"] = ev.Status.String()
	}

	entry := &Entry{
		Action:     string(ev.Step),
		EntityType: EntityTypeRule,
		EntityID:   ev.RuleUID,
		UserID:     o.userID,
		Source:     SourceRulewalk,
		Details:    details,
		CreatedAt:  ev.At,
	}
	// Detached so an aborted walk still records its failing step.
	if err := o.repo.Create(context.WithoutCancel(ctx), entry); err != nil && o.logger != nil {
		o.logger.Warn("writing audit entry failed", "walk_id", ev.WalkID, "rule_uid", ev.RuleUID, "error", err)
	}
}
