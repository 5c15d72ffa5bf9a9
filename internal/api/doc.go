// Package api hosts the HTTP server, middleware and JSON handlers consumed by
// the JobScout front-end. Notable routes:
//   - GET /api/scrape?career=&location= runs a search.
//   - GET /api/careers, /api/stats, /api/health and /api for metadata.
//   - GET /metrics for Prometheus scraping.
//   - GET / serves the static front-end when a directory is configured.
package api
