// Package metrics holds the Prometheus instrumentation shared by the
// watchdog, downloader, and gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles all stagehand collectors on a private registry.
type Set struct {
	registry *prometheus.Registry

	PollCycles    *prometheus.CounterVec
	WatchOutcomes *prometheus.CounterVec
	Kills           prometheus.Counter
	Downloads       prometheus.Counter
	DownloadBytes   prometheus.Counter
	TakesRecorded   prometheus.Counter
	MaintenanceRuns *prometheus.CounterVec
}

// New creates a Set with all collectors registered.
func New() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagehand_poll_cycles_total",
			Help: "Process liveness poll cycles, per watched task.",
		}, []string{"task"}),
		WatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagehand_watch_outcomes_total",
			Help: "Terminal watchdog outcomes, per watched task.",
		}, []string{"task", "outcome"}),
		Kills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_process_kills_total",
			Help: "Forced process terminations requested by the watchdog.",
		}),
		Downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_downloads_total",
			Help: "Completed artifact downloads.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_download_bytes_total",
			Help: "Bytes written by completed artifact downloads.",
		}),
		TakesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_takes_recorded_total",
			Help: "Takes recorded in the take log.",
		}),
		MaintenanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagehand_maintenance_runs_total",
			Help: "Maintenance job executions, per job and result.",
		}, []string{"job", "result"}),
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		s.PollCycles,
		s.WatchOutcomes,
		s.Kills,
		s.Downloads,
		s.DownloadBytes,
		s.TakesRecorded,
		s.MaintenanceRuns,
	)
	return s
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
