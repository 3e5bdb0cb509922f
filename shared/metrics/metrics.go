// Package metrics exporta contadores Prometheus do servidor de foliage.
package metrics

import (
	"time"

	"FoliageForge/shared/foliage"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder acompanha as mudanças dos stores e as operações do servidor.
// Implementa foliage.ChangeListener.
type Recorder struct {
	changes    *prometheus.CounterVec
	instances  *prometheus.GaugeVec
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	clients    prometheus.Gauge
}

// NewRecorder cria os coletores e os registra em reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foliageforge",
			Name:      "instance_changes_total",
			Help:      "Mutações de instâncias por nível, tipo e espécie de mudança.",
		}, []string{"level", "type", "kind"}),
		instances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "foliageforge",
			Name:      "instances",
			Help:      "Instâncias vivas por nível e tipo.",
		}, []string{"level", "type"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foliageforge",
			Name:      "operations_total",
			Help:      "Operações do servidor por resultado.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foliageforge",
			Name:      "operation_duration_seconds",
			Help:      "Duração das operações do servidor.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "foliageforge",
			Name:      "connected_clients",
			Help:      "Clientes websocket conectados.",
		}),
	}
	reg.MustRegister(r.changes, r.instances, r.operations, r.durations, r.clients)
	return r
}

// StoreChanged implementa foliage.ChangeListener.
func (r *Recorder) StoreChanged(ev foliage.ChangeEvent) {
	r.changes.WithLabelValues(ev.Level, ev.Type, ev.Kind.String()).Inc()
	g := r.instances.WithLabelValues(ev.Level, ev.Type)
	switch ev.Kind {
	case foliage.ChangeAdded:
		g.Inc()
	case foliage.ChangeRemoved:
		g.Dec()
	case foliage.ChangeCleared:
		g.Set(0)
	}
}

// Sync acerta o gauge de instâncias a partir do estado do mundo (após carregar).
func (r *Recorder) Sync(w *foliage.World) {
	r.instances.Reset()
	for _, a := range w.Actors() {
		for _, st := range a.Stores() {
			r.instances.WithLabelValues(a.Level, st.FoliageType().Name).Set(float64(st.Len()))
		}
	}
}

// Observe registra o resultado e a duração de uma operação.
func (r *Recorder) Observe(operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetClients atualiza o número de clientes conectados.
func (r *Recorder) SetClients(n int) {
	r.clients.Set(float64(n))
}
