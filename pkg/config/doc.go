// Package config loads configuration structs from environment
// variables, with an optional .env file for local development.
package config
