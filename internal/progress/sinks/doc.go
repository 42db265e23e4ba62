// Package sinks contains progress.Sink implementations that export scrape
// task milestones to logs and Prometheus.
package sinks
