package handler

import (
	"fmt"
	"net/http"

	"github.com/notely/notely/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "notely_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "notely_logins_total{result=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "notely_logins_total{result=\"failure\"} %d\n", snap.LoginsFailed)

	writeMetric(w, "notely_notes_created_total %d\n", snap.NotesCreated)
	writeMetric(w, "notely_notes_updated_total %d\n", snap.NotesUpdated)
	writeMetric(w, "notely_notes_deleted_total %d\n", snap.NotesDeleted)
	writeMetric(w, "notely_images_uploaded_total %d\n", snap.ImagesUploaded)

	writeMetric(w, "notely_rate_limited_total %d\n", snap.RateLimited)
	writeMetric(w, "notely_http_request_duration_seconds_count %d\n", snap.RequestDurationCount)
	writeMetric(w, "notely_http_request_duration_seconds_sum %.6f\n", float64(snap.RequestDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
