package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_sessions_active",
		Help: "Current number of sessions that completed the join handshake",
	})
	MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of chat messages relayed",
	})
	MessagesFiltered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_filtered_total",
		Help: "Total number of chat messages modified by the word filter",
	})
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_commands_total",
		Help: "Total number of slash commands processed",
	}, []string{"command"})
	SessionsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_sessions_dropped_total",
		Help: "Total number of sessions removed after a failed send",
	})
)

func init() {
	prometheus.MustRegister(SessionsActive, MessagesTotal, MessagesFiltered, CommandsTotal, SessionsDropped)
}
