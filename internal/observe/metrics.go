package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ingestedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_messages_ingested_total",
			Help: "Total room messages folded into the visible list by type",
		},
		[]string{"type"}, // chat|ooc|me|emote|action|serverMessage|deleted
	)

	duplicateMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_duplicate_messages_total",
		Help: "Total messages dropped because their time was at or below the watermark",
	})

	coalescedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_coalesced_messages_total",
		Help: "Total action messages merged into an existing entry's repetition counter",
	})

	droppedEdits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_dropped_edits_total",
		Help: "Total edit messages matching neither a tombstone nor a prior insert position",
	})

	rejectedSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_rejected_sends_total",
			Help: "Total sends rejected before dispatch by reason",
		},
		[]string{"reason"}, // not_found|target_not_present|self_target|incompatible_mode|too_long|restricted
	)

	sendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_send_failures_total",
		Help: "Total dispatched requests that failed or returned a non-ok result",
	})

	snapshotWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_snapshot_writes_total",
		Help: "Total restore snapshot writes",
	})

	pendingMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_pending_messages",
		Help: "Messages sent by this client still inside their edit window",
	})

	statusUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_status_updates_total",
		Help: "Total own-status broadcasts sent to the server",
	})

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_commands_total",
			Help: "Total commands executed by name",
		},
		[]string{"name"},
	)

	commandErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_command_errors_total",
			Help: "Total command errors by reason",
		},
		[]string{"reason"}, // not_found|handler|parse
	)
)

func init() {
	prometheus.MustRegister(
		ingestedMessages,
		duplicateMessages,
		coalescedMessages,
		droppedEdits,
		rejectedSends,
		sendFailures,
		snapshotWrites,
		pendingMessages,
		statusUpdates,
		commandsTotal,
		commandErrorsTotal,
	)
}

func IncIngested(msgType string) { ingestedMessages.WithLabelValues(msgType).Inc() }

func AddDuplicates(n int) { duplicateMessages.Add(float64(n)) }

func IncCoalesced() { coalescedMessages.Inc() }

func IncDroppedEdit() { droppedEdits.Inc() }

func IncRejectedSend(reason string) { rejectedSends.WithLabelValues(reason).Inc() }

func IncSendFailure() { sendFailures.Inc() }

func IncSnapshotWrite() { snapshotWrites.Inc() }

func SetPending(n int) { pendingMessages.Set(float64(n)) }

func IncStatusUpdate() { statusUpdates.Inc() }

func IncCommand(name string) { commandsTotal.WithLabelValues(name).Inc() }

func IncCommandError(reason string) { commandErrorsTotal.WithLabelValues(reason).Inc() }
