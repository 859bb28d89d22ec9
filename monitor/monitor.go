// monitor/monitor.go
package monitor

import (
	"expvar"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	OnlinePlayers   prometheus.Gauge
	ActiveGames     prometheus.Gauge
	GamesStarted    *prometheus.CounterVec
	GamesOver       prometheus.Counter
	Moves           *prometheus.CounterVec
	ScoresSubmitted prometheus.Counter
	CommandLatency  prometheus.Histogram
}

// NewMetrics registers the metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Number of memory games currently being played",
		}),
		GamesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Memory games started, by mode",
		}, []string{"mode"}),
		GamesOver: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_over_total",
			Help:      "Memory games that reached OVER",
		}),
		Moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Moves applied, by result",
		}, []string{"result"}),
		ScoresSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_submitted_total",
			Help:      "Competitive scores sent to the leaderboard",
		}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveGames,
		m.GamesStarted,
		m.GamesOver,
		m.Moves,
		m.ScoresSubmitted,
		m.CommandLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string, reg prometheus.Registerer) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		startTime: time.Now(),
	}
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

var publishOnce sync.Once

// PublishExpvar exposes uptime and command count on /debug/vars. Only the
// first monitor in a process is published.
func (m *Monitor) PublishExpvar() {
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("commands", expvar.Func(func() interface{} {
			return m.Commands()
		}))
	})
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) IncActiveGames() {
	m.metrics.ActiveGames.Inc()
}

func (m *Monitor) DecActiveGames() {
	m.metrics.ActiveGames.Dec()
}

func (m *Monitor) GameStarted(competitive bool) {
	mode := "casual"
	if competitive {
		mode = "competitive"
	}
	m.metrics.GamesStarted.WithLabelValues(mode).Inc()
}

func (m *Monitor) GameOver() {
	m.metrics.GamesOver.Inc()
}

// MoveApplied counts a move as "ok" or "rejected".
func (m *Monitor) MoveApplied(ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.metrics.Moves.WithLabelValues(result).Inc()
}

func (m *Monitor) ScoreSubmitted() {
	m.metrics.ScoresSubmitted.Inc()
}

func (m *Monitor) ObserveCommand(duration time.Duration) {
	m.metrics.CommandLatency.Observe(duration.Seconds())
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) Commands() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requestCount
}
