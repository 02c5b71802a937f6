// Package logger builds slog loggers with environment-aware defaults
// and context attribute injection. Production gets JSON at info level,
// development gets text at debug level; a handler decorator pulls
// request-scoped values like request ids out of the context on every
// record.
package logger
