package telemetry

// Event names. Plan events are emitted by the planning service.
const (
	EventServerStarted     = "server_started"
	EventCommandExecuted   = "command_executed"
	EventChatTurn          = "chat_turn"
	EventIntegrityViolated = "plan_integrity_violation"
)
