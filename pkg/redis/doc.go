// Package redis connects go-redis clients from environment-driven
// configuration, with startup retries and a health probe.
package redis
