package rules

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// runSource is recorded on every run triggered through the local registry.
const runSource = "rulewalk"

// LocalRegistry is a Registry backed by SQLite with an in-memory cache.
//
// The cache is populated via RefreshCache() and kept in sync by every
// mutating call. Status is not persisted: it is derived from the enabled
// flag, except while a manual trigger is in flight (RUNNING).
//
// All public methods are thread-safe.
type LocalRegistry struct {
	repo       Repository
	dispatcher Dispatcher
	cache      map[string]*Rule
	cacheMu    sync.RWMutex
	logger     Logger
}

// NewLocalRegistry creates a local registry. dispatcher may be nil, in which
// case manual triggers are recorded but not published.
func NewLocalRegistry(repo Repository, dispatcher Dispatcher) *LocalRegistry {
	return &LocalRegistry{
		repo:       repo,
		dispatcher: dispatcher,
		cache:      make(map[string]*Rule),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *LocalRegistry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all rules from the repository.
func (r *LocalRegistry) RefreshCache(ctx context.Context) error {
	list, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Rule, len(list))
	for i := range list {
		rule := list[i].DeepCopy()
		rule.Status = statusFor(rule.Enabled)
		r.cache[rule.UID] = rule
	}

	r.logger.Info("rule cache refreshed", "count", len(list))
	return nil
}

// GetByTag returns deep copies of the cached rules carrying tag, sorted by uid.
// Tags are stored lowercased, so the match ignores case: "A" finds a rule
// tagged "a".
func (r *LocalRegistry) GetByTag(_ context.Context, tag string) ([]Rule, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	out := []Rule{}
	for _, rule := range r.cache {
		if rule.HasTag(tag) {
			out = append(out, *rule.DeepCopy())
		}
	}
	sortRules(out)
	return out, nil
}

// GetStatusInfo returns the rule's current status.
func (r *LocalRegistry) GetStatusInfo(_ context.Context, uid string) (StatusInfo, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	rule, ok := r.cache[uid]
	if !ok {
		return StatusInfo{}, fmt.Errorf("%w: %s", ErrRuleNotFound, uid)
	}
	return rule.Status, nil
}

// SetEnabled persists the enabled flag and updates the cached status.
// Setting a flag to its current value is a no-op that still succeeds.
func (r *LocalRegistry) SetEnabled(ctx context.Context, uid string, enabled bool) error {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	rule, ok := r.cache[uid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, uid)
	}
	if rule.Enabled == enabled {
		return nil
	}

	if err := r.repo.SetEnabled(ctx, uid, enabled); err != nil {
		return err
	}

	rule.Enabled = enabled
	rule.UpdatedAt = time.Now().UTC()
	if rule.Status.Status != StatusRunning || !enabled {
		rule.Status = statusFor(enabled)
	}

	r.logger.Info("rule enabled flag set", "uid", uid, "enabled", enabled)
	return nil
}

// RunNow triggers a rule manually.
//
// The rule must be IDLE. With considerConditions set, a rule whose
// conditions do not match inputs is recorded as a skipped run and not
// dispatched. Otherwise the rule is RUNNING while the dispatcher publishes
// the trigger, then returns to its resting status.
func (r *LocalRegistry) RunNow(ctx context.Context, uid string, considerConditions bool, inputs map[string]any) error {
	r.cacheMu.Lock()
	rule, ok := r.cache[uid]
	if !ok {
		r.cacheMu.Unlock()
		return fmt.Errorf("%w: %s", ErrRuleNotFound, uid)
	}
	if rule.Status.Status != StatusIdle {
		status := rule.Status
		r.cacheMu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrRuleNotIdle, uid, status)
	}

	run := &Run{
		ID:                 GenerateID(),
		RuleUID:            uid,
		Inputs:             deepCopyMap(inputs),
		ConsiderConditions: considerConditions,
		Source:             runSource,
		TriggeredAt:        time.Now().UTC(),
	}

	if considerConditions && !conditionsMet(rule.Conditions, inputs) {
		r.cacheMu.Unlock()
		run.Skipped = true
		r.logger.Info("rule conditions not met, run skipped", "uid", uid, "run_id", run.ID)
		return r.recordRun(ctx, run)
	}

	rule.Status = StatusInfo{Status: StatusRunning, Detail: DetailNone}
	r.cacheMu.Unlock()

	var dispatchErr error
	if r.dispatcher != nil {
		dispatchErr = r.dispatcher.Dispatch(ctx, run)
	} else {
		r.logger.Warn("no dispatcher configured, run recorded only", "uid", uid, "run_id", run.ID)
	}

	r.cacheMu.Lock()
	if current, ok := r.cache[uid]; ok && current == rule {
		rule.Status = statusFor(rule.Enabled)
	}
	r.cacheMu.Unlock()

	if dispatchErr != nil {
		return fmt.Errorf("dispatching %s: %w", uid, dispatchErr)
	}

	r.logger.Info("rule triggered", "uid", uid, "run_id", run.ID, "consider_conditions", considerConditions)
	return r.recordRun(ctx, run)
}

func (r *LocalRegistry) recordRun(ctx context.Context, run *Run) error {
	if err := r.repo.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("recording run for %s: %w", run.RuleUID, err)
	}
	return nil
}

// Get returns a deep copy of a cached rule.
func (r *LocalRegistry) Get(_ context.Context, uid string) (*Rule, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	rule, ok := r.cache[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, uid)
	}
	return rule.DeepCopy(), nil
}

// List returns deep copies of every cached rule, sorted by uid.
func (r *LocalRegistry) List(_ context.Context) ([]Rule, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	out := make([]Rule, 0, len(r.cache))
	for _, rule := range r.cache {
		out = append(out, *rule.DeepCopy())
	}
	sortRules(out)
	return out, nil
}

// Add validates, persists and caches a new rule.
func (r *LocalRegistry) Add(ctx context.Context, rule *Rule) error {
	rule.Tags = normaliseTags(rule.Tags)
	if err := ValidateRule(rule); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, rule); err != nil {
		return err
	}
	rule.Status = statusFor(rule.Enabled)

	r.cacheMu.Lock()
	r.cache[rule.UID] = rule.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("rule added", "uid", rule.UID, "name", rule.Name)
	return nil
}

// Update validates, persists and re-caches an existing rule.
func (r *LocalRegistry) Update(ctx context.Context, rule *Rule) error {
	rule.Tags = normaliseTags(rule.Tags)
	if err := ValidateRule(rule); err != nil {
		return err
	}
	if rule.CreatedAt.IsZero() {
		r.cacheMu.RLock()
		if cached, ok := r.cache[rule.UID]; ok {
			rule.CreatedAt = cached.CreatedAt
		}
		r.cacheMu.RUnlock()
	}
	if err := r.repo.Update(ctx, rule); err != nil {
		return err
	}
	rule.Status = statusFor(rule.Enabled)

	r.cacheMu.Lock()
	r.cache[rule.UID] = rule.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("rule updated", "uid", rule.UID, "name", rule.Name)
	return nil
}

// Remove deletes a rule from persistence and cache.
func (r *LocalRegistry) Remove(ctx context.Context, uid string) error {
	if err := r.repo.Delete(ctx, uid); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, uid)
	r.cacheMu.Unlock()

	r.logger.Info("rule removed", "uid", uid)
	return nil
}

// Runs returns recent manual triggers of a rule, newest first.
func (r *LocalRegistry) Runs(ctx context.Context, uid string, limit int) ([]Run, error) {
	return r.repo.ListRuns(ctx, uid, limit)
}

// Count returns the number of cached rules.
func (r *LocalRegistry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func sortRules(list []Rule) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].UID < list[j].UID
	})
}

// conditionsMet reports whether every condition matches inputs. Values that
// differ only in numeric representation (YAML int vs JSON float) compare
// equal through their printed form.
func conditionsMet(conditions []Condition, inputs map[string]any) bool {
	for _, c := range conditions {
		v, ok := inputs[c.Input]
		if !ok {
			return false
		}
		if reflect.DeepEqual(v, c.Equals) {
			continue
		}
		if fmt.Sprint(v) != fmt.Sprint(c.Equals) {
			return false
		}
	}
	return true
}
