package recovery

// State is the recovery submission state machine.
type State int

const (
	// StateIdle means no submission is in progress.
	StateIdle State = iota
	// StateSubmitting means a submission has passed the local gates and is
	// in flight to the recovery service.
	StateSubmitting
	// StateSuccess means the recovery service accepted the submission.
	StateSuccess
	// StateBlocked means the submission was rejected by the attempt ceiling
	// or an active cooldown without contacting the recovery service.
	StateBlocked
	// StateFailed means the submission was dispatched but did not succeed,
	// or was rejected by the honeypot gate.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateBlocked:
		return "blocked"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// DeliveryState tracks the simulated delivery progression shown to the user
// after a successful submission. It is feedback only and never gates
// further attempts.
type DeliveryState int

const (
	// DeliveryUnknown means no delivery is being tracked, or tracking was
	// interrupted.
	DeliveryUnknown DeliveryState = iota
	// DeliveryQueued means the recovery email is waiting to be sent.
	DeliveryQueued
	// DeliverySent means the recovery email has left the queue.
	DeliverySent
	// DeliveryDelivered means the recovery email should have arrived.
	DeliveryDelivered
	// DeliveryDelayed means the estimated delivery time exceeds the
	// configured threshold.
	DeliveryDelayed
)

func (d DeliveryState) String() string {
	switch d {
	case DeliveryUnknown:
		return "unknown"
	case DeliveryQueued:
		return "queued"
	case DeliverySent:
		return "sent"
	case DeliveryDelivered:
		return "delivered"
	case DeliveryDelayed:
		return "delayed"
	default:
		return "invalid"
	}
}
