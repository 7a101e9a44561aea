// Package logging provides structured, file-based logging with rotation for
// codelens. CLI commands write JSON logs to ~/.codelens/logs/server.log and
// to stderr at info level; the --debug flag lowers the level to debug. The
// serve command writes to the log file only.
package logging
