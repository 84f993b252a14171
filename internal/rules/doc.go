// Package rules defines the automation rule domain used by rulewalk.
//
// A rule is an opaque unit owned by an external rule engine. rulewalk only
// ever touches four registry operations:
//
//	GetByTag       enumerate rules carrying a tag
//	GetStatusInfo  read a rule's runtime status
//	SetEnabled     flip a rule's enabled flag
//	RunNow         trigger a rule manually with inputs
//
// These make up the Registry interface. Two implementations exist:
//
//   - openhab.Client talks to a live openHAB instance over REST.
//   - LocalRegistry (this package) keeps rule definitions in SQLite, caches
//     them in memory and hands manual triggers to a Dispatcher (normally
//     MQTT). It is used for bench testing and for sites without openHAB.
//
// # Status model
//
// A rule's StatusInfo follows the openHAB convention: an enabled rule at
// rest is IDLE, a rule being executed is RUNNING and a disabled rule is
// UNINITIALIZED with detail DISABLED.
//
// # Tags
//
// Tags are normalised on write and on query (trimmed, lowercased,
// deduplicated, sorted), so "Lighting " and "lighting" are the same tag.
//
// # Thread Safety
//
// LocalRegistry is safe for concurrent use. Values returned from it are
// deep copies; callers may modify them freely.
package rules
