/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry  *prometheus.Registry
	connected prometheus.Gauge
	revealed  prometheus.Counter
	players   prometheus.Counter
}

func newMetrics(activeRooms func() float64) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "groupthink",
			Name:      "connected_clients",
			Help:      "Open websocket connections across all rooms.",
		}),
		revealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupthink",
			Name:      "rounds_revealed_total",
			Help:      "Rounds revealed and scored.",
		}),
		players: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupthink",
			Name:      "players_joined_total",
			Help:      "Players who joined a room.",
		}),
	}

	m.registry.MustRegister(
		m.connected,
		m.revealed,
		m.players,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "groupthink",
			Name:      "active_rooms",
			Help:      "Rooms currently held in memory.",
		}, activeRooms),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
