// Package httpserver wraps net/http.Server with environment-driven
// configuration, graceful shutdown on SIGINT/SIGTERM, and stop hooks
// for draining dependencies like the job broker.
package httpserver
