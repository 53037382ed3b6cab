package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счётчики пайплайна. Держат собственный Registry, чтобы процессы и
// тесты не делили глобальное состояние
type Metrics struct {
	reg *prometheus.Registry

	NotificationsDropped  prometheus.Counter
	InvocationsDispatched prometheus.Counter
	FramesProcessed       prometheus.Counter
	InferenceDegraded     prometheus.Counter
	CommandsPublished     prometheus.Counter
}

func New() *Metrics {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adrve_notifications_dropped_total",
		Help: "Fragment notifications rejected for missing fields.",
	})
	dispatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adrve_invocations_dispatched_total",
		Help: "Extraction invocations produced by the dispatcher.",
	})
	frames := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adrve_frames_processed_total",
		Help: "Frames that went through extraction and inference.",
	})
	degraded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adrve_inference_degraded_total",
		Help: "Inference responses that required fallback defaulting.",
	})
	commands := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adrve_commands_published_total",
		Help: "Commands published to device topics.",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(dropped, dispatched, frames, degraded, commands)

	return &Metrics{
		reg:                   reg,
		NotificationsDropped:  dropped,
		InvocationsDispatched: dispatched,
		FramesProcessed:       frames,
		InferenceDegraded:     degraded,
		CommandsPublished:     commands,
	}
}

// Handler отдаёт /metrics для этого набора счётчиков
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
