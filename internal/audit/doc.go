// Package audit records walk activity in the audit_logs table and reads it
// back for the history command.
//
// Every walk step becomes one row: action is the step name, entity_type is
// "rule", entity_id is the rule UID and details carry the walk id, tag,
// outcome, duration and any error. Rows are append-only.
package audit
