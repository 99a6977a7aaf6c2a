// Package metrics provides Prometheus metrics for studydash: completions,
// XP grants, level-ups, achievements, challenge claims, and engine latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Completions ────────────────────────────────────────────────────────────

// Completions counts RecordCompletion outcomes (credited, duplicate, vacation).
var Completions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studydash",
	Name:      "completions_total",
	Help:      "Completion events by outcome.",
}, []string{"result"})

// ─── XP & Levels ────────────────────────────────────────────────────────────

// XPAwarded tracks XP granted by source.
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studydash",
	Name:      "xp_awarded_total",
	Help:      "XP granted by source.",
}, []string{"source"})

// LevelUps counts operations that moved a user to a higher level.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "studydash",
	Name:      "level_ups_total",
	Help:      "Total level-ups.",
})

// ─── Achievements ───────────────────────────────────────────────────────────

// AchievementsUnlocked counts grants per achievement id.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studydash",
	Name:      "achievements_unlocked_total",
	Help:      "Achievement grants by id.",
}, []string{"id"})

// ─── Daily Challenges ───────────────────────────────────────────────────────

// ChallengeClaims counts claim outcomes (claimed, sweep, noop).
var ChallengeClaims = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studydash",
	Name:      "challenge_claims_total",
	Help:      "Daily challenge claim outcomes.",
}, []string{"result"})

// ─── Engine ─────────────────────────────────────────────────────────────────

// EngineOpLatency tracks engine operation duration in seconds.
var EngineOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "studydash",
	Name:      "engine_op_seconds",
	Help:      "Engine operation duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
}, []string{"op"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "studydash",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
