package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	workerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warpinit",
		Name:      "worker_state",
		Help:      "Lifecycle state of the supervised worker (1=current state).",
	}, []string{"state"})

	signalsForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "warpinit",
		Name:      "signals_forwarded_total",
		Help:      "Total number of termination signals forwarded to the worker.",
	})

	workerExitCode = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "warpinit",
		Name:      "worker_exit_code",
		Help:      "Exit code reported by the worker once it has terminated.",
	})

	workerCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "warpinit",
		Name:      "worker_cpu_percent",
		Help:      "CPU usage of the worker process in percent.",
	})

	workerMemoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "warpinit",
		Name:      "worker_memory_bytes",
		Help:      "Resident set size of the worker process in bytes.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warpinit",
		Name:      "build_info",
		Help:      "Build metadata for the running warpinit binary.",
	}, []string{"go_version", "vcs_revision", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(workerState, signalsForwarded, workerExitCode,
		workerCPUPercent, workerMemoryBytes, buildInfo)
}

// Registry returns the Prometheus registry containing all warpinit metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetWorkerState records the worker's current lifecycle state.
func SetWorkerState(state string) {
	if state == "" {
		return
	}
	workerState.Reset()
	workerState.WithLabelValues(state).Set(1)
}

// IncSignalsForwarded counts a termination signal forwarded to the worker.
func IncSignalsForwarded() {
	signalsForwarded.Inc()
}

// SetWorkerExitCode records the worker's exit code after termination.
func SetWorkerExitCode(code int) {
	workerExitCode.Set(float64(code))
}

// SetWorkerResources records the most recent worker resource sample.
func SetWorkerResources(cpuPercent float64, rssBytes uint64) {
	workerCPUPercent.Set(cpuPercent)
	workerMemoryBytes.Set(float64(rssBytes))
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs_revision": "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
