package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics. It also receives report and
// delivery events from the application services.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	ReportsGenerated     atomic.Uint64
	ReportsJSON          atomic.Uint64
	ReportsPersisted     atomic.Uint64
	ReportsPersistFailed atomic.Uint64
	PDFsRendered         atomic.Uint64
	PDFsFailed           atomic.Uint64
	EmailsSent           atomic.Uint64
	EmailsFailed         atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// ReportGenerated counts assistant replies.
func (m *Metrics) ReportGenerated(isJSON bool) {
	m.ReportsGenerated.Add(1)
	if isJSON {
		m.ReportsJSON.Add(1)
	}
}

// ReportPersisted counts save attempts.
func (m *Metrics) ReportPersisted(ok bool) {
	if ok {
		m.ReportsPersisted.Add(1)
	} else {
		m.ReportsPersistFailed.Add(1)
	}
}

func (m *Metrics) PDFRendered(ok bool) {
	if ok {
		m.PDFsRendered.Add(1)
	} else {
		m.PDFsFailed.Add(1)
	}
}

func (m *Metrics) EmailSent(ok bool) {
	if ok {
		m.EmailsSent.Add(1)
	} else {
		m.EmailsFailed.Add(1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"requests_total":         m.RequestsTotal.Load(),
		"requests_in_progress":   m.RequestsInProgress.Load(),
		"requests_success":       m.RequestsSuccess.Load(),
		"requests_failed":        m.RequestsFailed.Load(),
		"reports_generated":      m.ReportsGenerated.Load(),
		"reports_json":           m.ReportsJSON.Load(),
		"reports_persisted":      m.ReportsPersisted.Load(),
		"reports_persist_failed": m.ReportsPersistFailed.Load(),
		"pdfs_rendered":          m.PDFsRendered.Load(),
		"pdfs_failed":            m.PDFsFailed.Load(),
		"emails_sent":            m.EmailsSent.Load(),
		"emails_failed":          m.EmailsFailed.Load(),
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		// Track success/failure based on status code
		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
