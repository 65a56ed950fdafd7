package order

// Event is an action requested against an order.
type Event string

const (
	EventPay           Event = "pay"
	EventValidate      Event = "validate"
	EventShip          Event = "ship"
	EventMarkDelivered Event = "mark-delivered"
	EventCancel        Event = "cancel"
	EventRefund        Event = "refund"
)

var transitions = map[OrderStatus]map[Event]OrderStatus{
	StatusCreated: {
		EventPay:    StatusPaid,
		EventCancel: StatusCancelled,
	},
	StatusPaid: {
		EventValidate: StatusValidated,
		EventCancel:   StatusCancelled,
		EventRefund:   StatusRefunded,
	},
	StatusValidated: {
		EventShip:   StatusShipped,
		EventCancel: StatusCancelled,
	},
	StatusShipped: {
		EventMarkDelivered: StatusDelivered,
		EventRefund:        StatusRefunded,
	},
	StatusDelivered: {
		EventRefund: StatusRefunded,
	},
}

// Transition returns the status an order in from moves to on event, or a
// *TransitionError when the pair is not in the table. It has no side effects.
func Transition(from OrderStatus, event Event) (OrderStatus, error) {
	to, ok := transitions[from][event]
	if !ok {
		return from, &TransitionError{From: from, Event: event}
	}
	return to, nil
}

// Allows reports whether event is legal from status.
func Allows(status OrderStatus, event Event) bool {
	_, err := Transition(status, event)
	return err == nil
}

// IsTerminal reports whether no event is accepted from status.
func IsTerminal(status OrderStatus) bool {
	return len(transitions[status]) == 0
}

// IsKnownStatus reports whether status is one of the order statuses.
func IsKnownStatus(status OrderStatus) bool {
	switch status {
	case StatusCreated, StatusPaid, StatusValidated, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
