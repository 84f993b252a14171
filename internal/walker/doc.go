// Package walker implements the registry walk: for every rule carrying a
// tag it reads the rule's status, disables it, waits, re-enables it and
// triggers it manually.
//
// Walk sequence per rule (strictly in this order, one rule at a time):
//
//  1. GetStatusInfo(uid)
//  2. SetEnabled(uid, false)
//  3. wait Options.Delay
//  4. SetEnabled(uid, true)
//  5. RunNow(uid, Options.ConsiderConditions, inputs)
//
// The registry is obtained by name from a Locator at the start of every
// walk. If it cannot be resolved the walk fails with an error wrapping
// host.ErrServiceUnavailable and nothing is touched.
//
// # Failure semantics
//
// Nothing is retried. The first failing step ends the walk: the remaining
// steps of that rule and all later rules are skipped, and the error is
// returned as a *StepError naming the rule and step. The registry's own
// error stays reachable through errors.Is / errors.As.
//
// A rule can therefore be left disabled when a step after the disable
// fails. Options.RestoreOnAbort issues a single best-effort re-enable in
// that case; it is off by default.
//
// # Observation
//
// Every step produces an Event delivered to the configured Observer.
// Observers here cover logging (LogObserver), the message bus
// (BusObserver) and metrics (MetricsObserver); the audit package provides
// a persistent one.
package walker
