package domain

import "fmt"

// CommandKind selects which component handles an admin status update.
type CommandKind int

const (
	// CommandTransition is a plain order status move (fulfillment progress).
	CommandTransition CommandKind = iota + 1
	CommandCancel
	CommandReview
	CommandAdvance
	CommandComplete
)

// AdminCommand is the parsed form of an admin status target.
type AdminCommand struct {
	Kind    CommandKind
	Status  OrderStatus   // Transition, Cancel, Review, Complete
	Process ProcessKind   // Review, Complete; empty for shared pickup steps
	Step    RequestStatus // Advance
	Action  ReviewAction  // Review
}

// ParseAdminCommand accepts every order status except the customer-initiated
// *_REQUESTED ones, plus every return/exchange sub-state.
func ParseAdminCommand(target string) (AdminCommand, error) {
	if st, ok := ParseRequestSubState(target); ok {
		return AdminCommand{Kind: CommandAdvance, Process: StepKind(st), Step: st}, nil
	}
	status, ok := ParseOrderStatus(target)
	if !ok {
		return AdminCommand{}, fmt.Errorf("%w: invalid status %q", ErrValidation, target)
	}
	switch status {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered:
		return AdminCommand{Kind: CommandTransition, Status: status}, nil
	case StatusCancelled:
		return AdminCommand{Kind: CommandCancel, Status: status}, nil
	}
	kind, reqStatus, _ := ProcessForOrderStatus(status)
	switch reqStatus {
	case RequestApproved:
		return AdminCommand{Kind: CommandReview, Status: status, Process: kind, Action: ActionApprove}, nil
	case RequestRejected:
		return AdminCommand{Kind: CommandReview, Status: status, Process: kind, Action: ActionReject}, nil
	case RequestRequested:
		return AdminCommand{}, fmt.Errorf("%w: %s is requested by the customer", ErrValidation, status)
	}
	return AdminCommand{Kind: CommandComplete, Status: status, Process: kind}, nil
}
