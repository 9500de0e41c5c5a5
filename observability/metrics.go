package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "moneywave"

	LabelType   = "type"
	LabelStatus = "status"
	LabelReason = "reason"
)

// Game lifecycle metrics
var (
	GamesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Total number of games created",
		},
	)

	GameTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_transitions_total",
			Help:      "Game state transitions by target status",
		},
		[]string{LabelStatus},
	)

	StakesAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stakes_admitted_total",
			Help:      "Total number of stakes admitted",
		},
	)

	StakesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stakes_rejected_total",
			Help:      "Stakes rejected by error kind",
		},
		[]string{LabelReason},
	)

	StakeVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stake_volume_pmp_total",
			Help:      "Total PMP committed through admitted stakes",
		},
	)
)

// Settlement metrics
var (
	GamesSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_settled_total",
			Help:      "Total number of games settled",
		},
	)

	RewardsDistributed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_distributed_pmc_total",
			Help:      "Total PMC credited to winners",
		},
	)

	SettlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Time spent computing and recording a settlement",
			Buckets:   prometheus.DefBuckets,
		},
	)

	AllocationOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_allocation_overruns_total",
			Help:      "Settlements whose payout above the stake pool exceeded the allocated prize pool",
		},
	)
)

// Outbox metrics
var (
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Game events accepted by the ledger, by type",
		},
		[]string{LabelType},
	)

	EventDispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_dispatch_failures_total",
			Help:      "Outbox flushes that stopped on a ledger error",
		},
	)
)

// Prize pool metrics
var (
	DailyPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_prize_pool_pmc",
			Help:      "Most recently computed total daily prize pool",
		},
	)

	PrizePoolAllocated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prize_pool_allocated_pmc_total",
			Help:      "Total PMC committed to games from the daily pool",
		},
	)
)
