package walker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-rulewalk/internal/host"
	"github.com/nerrad567/gray-logic-rulewalk/internal/rules"
)

// DefaultDelay is the pause between disabling and re-enabling a rule.
const DefaultDelay = time.Second

// restoreTimeout bounds the best-effort re-enable after an abort.
const restoreTimeout = 10 * time.Second

// Locator resolves a named host service.
type Locator interface {
	Lookup(ctx context.Context, name string) (any, error)
}

// Logger defines the logging interface used by the Walker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options tune a walk.
type Options struct {
	// Delay between disable and enable. Zero means no pause.
	Delay time.Duration

	// ConsiderConditions is passed to every RunNow.
	ConsiderConditions bool

	// RestoreOnAbort re-enables a rule left disabled by a failed step.
	RestoreOnAbort bool
}

// DefaultOptions returns a one second delay with conditions ignored and no
// restore.
func DefaultOptions() Options {
	return Options{Delay: DefaultDelay}
}

// Walker runs registry walks. A Walker holds no per-walk state and may be
// reused; concurrent walks over the same rules are not coordinated.
type Walker struct {
	locator  Locator
	service  string
	opts     Options
	observer Observer
	logger   Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a walker that obtains the registry named service from locator.
func New(locator Locator, service string, opts Options) *Walker {
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Walker{
		locator:  locator,
		service:  service,
		opts:     opts,
		observer: Observers(nil),
		logger:   noopLogger{},
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// SetLogger sets the logger for the walker.
func (w *Walker) SetLogger(logger Logger) {
	w.logger = logger
}

// SetObserver sets the observer notified of every step. Use Observers to
// combine several.
func (w *Walker) SetObserver(observer Observer) {
	if observer == nil {
		observer = Observers(nil)
	}
	w.observer = observer
}

// Options returns the walk options in effect.
func (w *Walker) Options() Options {
	return w.opts
}

// Registry resolves the rule registry from the locator.
//
// Returns an error wrapping host.ErrServiceUnavailable when the service is
// missing or is not a rules.Registry.
func (w *Walker) Registry(ctx context.Context) (rules.Registry, error) {
	if w.locator == nil {
		return nil, fmt.Errorf("%w: no locator", host.ErrServiceUnavailable)
	}
	svc, err := w.locator.Lookup(ctx, w.service)
	if err != nil {
		if errors.Is(err, host.ErrServiceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", host.ErrServiceUnavailable, err)
	}
	reg, ok := svc.(rules.Registry)
	if !ok || reg == nil {
		return nil, fmt.Errorf("%w: %q is not a rule registry (%T)", host.ErrServiceUnavailable, w.service, svc)
	}
	return reg, nil
}

// Walk runs the sequence over every rule tagged tag.
//
// inputs is handed to each RunNow untouched. A report is returned even on
// error, covering the rules reached so far. ConsiderConditions against a
// registry that cannot evaluate conditions fails before any rule is touched. A tag with no rules yields an
// empty report and no registry mutations.
func (w *Walker) Walk(ctx context.Context, tag string, inputs map[string]any) (*Report, error) {
	report := &Report{
		WalkID:    uuid.New().String(),
		Tag:       tag,
		StartedAt: w.now(),
	}
	finish := func(err error) (*Report, error) {
		report.CompletedAt = w.now()
		return report, err
	}

	reg, err := w.Registry(ctx)
	if err != nil {
		w.logger.Error("rule registry unavailable", "service", w.service, "error", err)
		return finish(err)
	}
	if w.opts.ConsiderConditions && !rules.EvaluatesConditions(reg) {
		err := fmt.Errorf("walk with conditions: %w", rules.ErrConditionsUnsupported)
		w.logger.Error("registry cannot evaluate conditions", "service", w.service, "error", err)
		return finish(err)
	}

	list, err := reg.GetByTag(ctx, tag)
	if err != nil {
		return finish(fmt.Errorf("listing rules tagged %q: %w", tag, err))
	}
	report.Matched = len(list)

	w.logger.Info("walk started",
		"walk_id", report.WalkID,
		"tag", tag,
		"rules", len(list),
		"delay", w.opts.Delay,
		"consider_conditions", w.opts.ConsiderConditions,
	)

	for _, rule := range list {
		if err := ctx.Err(); err != nil {
			w.logger.Warn("walk cancelled", "walk_id", report.WalkID, "next_rule", rule.UID)
			return finish(fmt.Errorf("walk cancelled before rule %s: %w", rule.UID, err))
		}

		outcome := RuleOutcome{UID: rule.UID, Name: rule.Name}
		err := w.walkRule(ctx, reg, report, &outcome, inputs)
		if err != nil {
			if w.opts.RestoreOnAbort && outcome.completed(StepDisable) && !outcome.completed(StepEnable) {
				outcome.Restored = w.restore(ctx, reg, report, rule.UID)
			}
			outcome.Err = err
			report.Rules = append(report.Rules, outcome)
			w.logger.Error("walk aborted",
				"walk_id", report.WalkID,
				"rule_uid", rule.UID,
				"error", err,
				"completed_rules", len(report.Rules)-1,
			)
			return finish(err)
		}
		report.Rules = append(report.Rules, outcome)
	}

	w.logger.Info("walk completed",
		"walk_id", report.WalkID,
		"tag", tag,
		"rules", len(report.Rules),
	)
	return finish(nil)
}

// walkRule runs the five steps for one rule, stopping at the first failure.
func (w *Walker) walkRule(ctx context.Context, reg rules.Registry, report *Report, outcome *RuleOutcome, inputs map[string]any) error {
	uid := outcome.UID

	steps := []struct {
		step Step
		run  func() error
	}{
		{StepStatus, func() error {
			status, err := reg.GetStatusInfo(ctx, uid)
			if err == nil {
				outcome.Status = status
			}
			return err
		}},
		{StepDisable, func() error { return reg.SetEnabled(ctx, uid, false) }},
		{StepDelay, func() error { return w.sleep(ctx, w.opts.Delay) }},
		{StepEnable, func() error { return reg.SetEnabled(ctx, uid, true) }},
		{StepRunNow, func() error { return reg.RunNow(ctx, uid, w.opts.ConsiderConditions, inputs) }},
	}

	for _, s := range steps {
		start := w.now()
		err := s.run()
		ev := Event{
			WalkID:   report.WalkID,
			Tag:      report.Tag,
			RuleUID:  uid,
			Step:     s.step,
			Err:      err,
			Duration: w.now().Sub(start),
			At:       start,
		}
		if s.step == StepStatus && err == nil {
			status := outcome.Status
			ev.Status = &status
		}
		w.observer.OnStep(ctx, ev)

		if err != nil {
			return &StepError{RuleUID: uid, Step: s.step, Err: err}
		}
		outcome.Completed = append(outcome.Completed, s.step)
	}
	return nil
}

// restore makes one attempt to re-enable uid on a context that survives the
// walk's cancellation. Its failure is logged and never replaces the walk error.
func (w *Walker) restore(ctx context.Context, reg rules.Registry, report *Report, uid string) bool {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	start := w.now()
	err := reg.SetEnabled(rctx, uid, true)
	w.observer.OnStep(rctx, Event{
		WalkID:   report.WalkID,
		Tag:      report.Tag,
		RuleUID:  uid,
		Step:     StepRestore,
		Err:      err,
		Duration: w.now().Sub(start),
		At:       start,
	})
	if err != nil {
		w.logger.Error("restoring rule failed, rule left disabled", "walk_id", report.WalkID, "rule_uid", uid, "error", err)
		return false
	}
	w.logger.Warn("rule re-enabled after aborted walk", "walk_id", report.WalkID, "rule_uid", uid)
	return true
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
