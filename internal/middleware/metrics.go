package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/feed"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	ScansTotal         uint64
	ScansRunning       uint64
	ScansSucceeded     uint64
	ScansFailed        uint64
	HistoryRecords     uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests() { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }

func IncrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }

func DecrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }

func IncrementSuccess() { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }

func IncrementFailed() { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }

// ObserveScanState folds one controller state change into the scan counters.
// ScansRunning is a 0/1 gauge: 1 while the controller is Loading.
func ObserveScanState(st domain.State) {
	switch st.(type) {
	case domain.Loading:
		atomic.AddUint64(&globalMetrics.ScansTotal, 1)
		atomic.StoreUint64(&globalMetrics.ScansRunning, 1)
	case domain.Success:
		atomic.StoreUint64(&globalMetrics.ScansRunning, 0)
		atomic.AddUint64(&globalMetrics.ScansSucceeded, 1)
	case domain.Error:
		atomic.StoreUint64(&globalMetrics.ScansRunning, 0)
		atomic.AddUint64(&globalMetrics.ScansFailed, 1)
	default:
		atomic.StoreUint64(&globalMetrics.ScansRunning, 0)
	}
}

// SetHistoryRecords records the size of the latest history snapshot.
func SetHistoryRecords(n int) {
	atomic.StoreUint64(&globalMetrics.HistoryRecords, uint64(n))
}

// TrackScans feeds every state from sub into ObserveScanState until the
// subscription ends. The first value is the state at subscribe time and
// is skipped so a restart does not count it twice.
func TrackScans(sub *feed.Subscription[domain.State]) {
	first := true
	for st := range sub.C() {
		if first {
			first = false
			continue
		}
		ObserveScanState(st)
	}
}

// TrackHistory keeps HistoryRecords in step with the history feed.
func TrackHistory(sub *feed.Subscription[[]domain.ScanResult]) {
	for snap := range sub.C() {
		SetHistoryRecords(len(snap))
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"scans_total":          atomic.LoadUint64(&globalMetrics.ScansTotal),
		"scans_running":        atomic.LoadUint64(&globalMetrics.ScansRunning),
		"scans_succeeded":      atomic.LoadUint64(&globalMetrics.ScansSucceeded),
		"scans_failed":         atomic.LoadUint64(&globalMetrics.ScansFailed),
		"history_records":      atomic.LoadUint64(&globalMetrics.HistoryRecords),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
