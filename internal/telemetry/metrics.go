// Package telemetry exposes Prometheus counters for the bot.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	MessagesReceived      prometheus.Counter
	RepliesSent           prometheus.Counter
	Disconnects           prometheus.Counter
	CalendarFetchFailures prometheus.Counter
	CommandsHandled       *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "handbot_messages_received_total", Help: "PRIVMSG lines received"})
		RepliesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "handbot_replies_sent_total", Help: "Replies sent by the bot"})
		Disconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "handbot_disconnects_total", Help: "Connection losses"})
		CalendarFetchFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "handbot_calendar_fetch_failures_total", Help: "Failed nextmeeting calendar lookups"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "handbot_commands_total", Help: "Commands handled, by command"}, []string{"command"})
	})
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// IncMessages counts an inbound message.
func IncMessages() {
	if MessagesReceived != nil {
		MessagesReceived.Inc()
	}
}

// IncReplies counts an outbound reply.
func IncReplies() {
	if RepliesSent != nil {
		RepliesSent.Inc()
	}
}

// IncDisconnects counts a lost connection.
func IncDisconnects() {
	if Disconnects != nil {
		Disconnects.Inc()
	}
}

// IncCalendarFailures counts a failed calendar lookup.
func IncCalendarFailures() {
	if CalendarFetchFailures != nil {
		CalendarFetchFailures.Inc()
	}
}

// IncCommand counts a handled command.
func IncCommand(name string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(name).Inc()
	}
}
