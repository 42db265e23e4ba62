// Package main hosts the scrape service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes submit, poll, stop, list, stats, health, and metrics endpoints.
//     Submissions are validated and normalized by the dispatcher before a task is created.
//   - Task store: internal/taskstore.Store is the single owner of task state. It enforces monotonic progress,
//     exactly-once terminal transitions, bounded listing history, and time-based eviction of finished tasks.
//     Counters survive eviction so stats reflect process lifetime.
//   - Runner: each submission gets one goroutine that walks the requested pages through an extractor, reporting
//     progress after every page and honoring stop requests between pages. Failed pages are retried once and then
//     skipped; the task still completes with whatever was collected.
//   - Extractors: the default Colly-based extractor parses server-rendered listing pages over plain HTTP. The
//     optional Chromedp extractor drives a headless browser for JavaScript-rendered listings, one browser per
//     task with a shared tab limiter.
//   - Persistence & fanout: finished tasks are mirrored to the configured session store (noop/memory/Postgres),
//     results are archived to the configured blob store (memory/GCS) keyed by content hash, and a compact
//     completion event is published (memory/PubSub). Progress events are batched through the hub into zap and
//     Prometheus sinks.
//   - Configuration & plumbing: Viper populates config from env/files with the SCRAPER_ prefix; zap provides
//     structured logging; Prometheus metrics are exported on /metrics.
//
// Operational notes:
//   - Concurrency model: one goroutine per task, tracked by the dispatcher. Shutdown drains in-flight tasks up
//     to a deadline, then cancels them; cancelled tasks record a failed terminal state rather than vanishing.
//   - Pacing: the runner sleeps a randomized interval between pages and caps each page fetch with its own
//     timeout, so a stuck site never wedges a task.
//   - Observability: zap logs carry task ids at every transition; the progress hub never blocks task execution
//     and drops events under backpressure with a rate-limited warning.
//
// Run locally: go run ./cmd/scrapeworker -config config.yaml (or rely solely on SCRAPER_* env overrides).
package main
