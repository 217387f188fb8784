// Package observability collects Prometheus metrics and process health
// snapshots for the chat server.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics is the recording interface the routing core depends on.
type ChatMetrics interface {
	RecordMessage(private bool, kind string)
	RecordReaction(added bool)
	RecordEvent(eventType string)
	RecordRejection(code string)
	SetConnections(n int)
}

// Collector implements ChatMetrics on a Prometheus registry.
type Collector struct {
	messages    *prometheus.CounterVec
	reactions   *prometheus.CounterVec
	events      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	connections prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clchat_messages_total",
			Help: "Messages persisted and fanned out, by scope and content kind",
		}, []string{"private", "kind"}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clchat_reactions_total",
			Help: "Reaction toggles applied, by direction",
		}, []string{"added"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clchat_events_total",
			Help: "Inbound websocket events, by type",
		}, []string{"type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clchat_rejections_total",
			Help: "Events rejected back to their initiating session, by code",
		}, []string{"code"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clchat_online_sessions",
			Help: "Currently registered identified sessions",
		}),
	}

	reg.MustRegister(c.messages, c.reactions, c.events, c.rejections, c.connections)
	return c
}

func (c *Collector) RecordMessage(private bool, kind string) {
	c.messages.WithLabelValues(strconv.FormatBool(private), kind).Inc()
}

func (c *Collector) RecordReaction(added bool) {
	c.reactions.WithLabelValues(strconv.FormatBool(added)).Inc()
}

func (c *Collector) RecordEvent(eventType string) {
	c.events.WithLabelValues(eventType).Inc()
}

func (c *Collector) RecordRejection(code string) {
	c.rejections.WithLabelValues(code).Inc()
}

func (c *Collector) SetConnections(n int) {
	c.connections.Set(float64(n))
}
