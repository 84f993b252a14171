// Package openhab implements rules.Registry over the openHAB REST API.
//
// Endpoints used:
//
//	GET  /rest/                                 readiness probe
//	GET  /rest/rules?tags={tag}                 rules carrying a tag
//	GET  /rest/rules/{uid}                      one rule with its status
//	POST /rest/rules/{uid}/enable               body "true" or "false"
//	POST /rest/rules/{uid}/runnow               JSON body = trigger inputs
//
// A 404 maps to rules.ErrRuleNotFound; any other non-2xx response maps to
// ErrRequestFailed carrying the status code. Requests are never retried;
// only WaitReady backs off, and it is meant to be called once while the
// registry is being looked up.
package openhab
