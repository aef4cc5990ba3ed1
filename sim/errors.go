package sim

import (
	"errors"
	"fmt"
)

// RejectReason names why a command was refused.
type RejectReason string

const (
	RejectWrongDirection       RejectReason = "wrong-direction"
	RejectAlreadyConnected     RejectReason = "already-connected"
	RejectSameSystem           RejectReason = "same-system"
	RejectTypeMismatch         RejectReason = "type-mismatch"
	RejectInsufficientWire     RejectReason = "insufficient-wire"
	RejectBendLimit            RejectReason = "bend-limit"
	RejectBendPending          RejectReason = "bend-pending"
	RejectInsufficientCurrency RejectReason = "insufficient-currency"
	RejectNoPendingBend        RejectReason = "no-pending-bend"
	RejectUnknownBend          RejectReason = "unknown-bend"
)

// Rejection is a recoverable validation failure reported to the caller.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("rejected: %s", r.Reason)
	}
	return fmt.Sprintf("rejected: %s: %s", r.Reason, r.Detail)
}

func reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a Rejection with the given reason.
func IsRejected(err error, reason RejectReason) bool {
	var r *Rejection
	return errors.As(err, &r) && r.Reason == reason
}

// ErrCapacityExceeded marks a storage overflow, which is fatal to the run.
var ErrCapacityExceeded = errors.New("storage capacity exceeded")

// CapacityExceededError identifies the overflowing system.
type CapacityExceededError struct {
	System   SystemID
	Label    string
	Capacity int
	Packet   PacketID
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("system %q: %v (capacity %d, packet %d)", e.Label, ErrCapacityExceeded, e.Capacity, e.Packet)
}

func (e *CapacityExceededError) Unwrap() error {
	return ErrCapacityExceeded
}
