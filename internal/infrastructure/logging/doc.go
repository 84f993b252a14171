// Package logging builds the slog logger shared by every rulewalk package.
//
// Entries carry service=rulewalk and the build version. Text format suits a
// terminal; use JSON when walks run from cron or a systemd timer and the
// journal is shipped elsewhere:
//
//	logging:
//	  level: info       # debug, info, warn, error
//	  format: json      # json, text
//	  output: stderr    # stdout, stderr
//
// Packages accept a small Logger interface rather than *Logger, so tests can
// pass nothing and get a no-op.
package logging
