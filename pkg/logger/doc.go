// Package logger provides the structured logging interface used across instalytics.
//
// It wraps zerolog behind a small Logger interface so packages can accept a
// logger without importing zerolog directly, and so tests can swap in the
// capturing TestLogger or the no-op logger.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("handle", "natgeo").Info("profile served")
//	log.InfoWithFields("upstream call completed", map[string]interface{}{
//	    "operation": "details",
//	    "duration_ms": 840,
//	})
//
// Console output is colored and compact; set format to "json" for servers.
package logger
