package domain

import (
	"fmt"
	"strings"
)

type ProcessKind string

const (
	ProcessNone     ProcessKind = ""
	ProcessReturn   ProcessKind = "RETURN"
	ProcessExchange ProcessKind = "EXCHANGE"
)

type RequestStatus string

const (
	RequestNone               RequestStatus = ""
	RequestRequested          RequestStatus = "REQUESTED"
	RequestApproved           RequestStatus = "APPROVED"
	RequestRejected           RequestStatus = "REJECTED"
	RequestPickupScheduled    RequestStatus = "PICKUP_SCHEDULED"
	RequestPickupCompleted    RequestStatus = "PICKUP_COMPLETED"
	RequestRefundInitiated    RequestStatus = "REFUND_INITIATED"
	RequestRefundCompleted    RequestStatus = "REFUND_COMPLETED"
	RequestExchangeProcessing RequestStatus = "EXCHANGE_PROCESSING"
	RequestExchangeCompleted  RequestStatus = "EXCHANGE_COMPLETED"
)

// Post-approval progression, one admin step at a time.
var requestSteps = map[ProcessKind][]RequestStatus{
	ProcessReturn:   {RequestApproved, RequestPickupScheduled, RequestPickupCompleted, RequestRefundInitiated, RequestRefundCompleted},
	ProcessExchange: {RequestApproved, RequestPickupScheduled, RequestPickupCompleted, RequestExchangeProcessing, RequestExchangeCompleted},
}

// ActiveProcess is the return/exchange workflow currently attached to an order.
// The zero value means no workflow.
type ActiveProcess struct {
	Kind  ProcessKind   `gorm:"size:16" json:"kind,omitempty"`
	State RequestStatus `gorm:"size:32" json:"state,omitempty"`
}

func NoProcess() ActiveProcess { return ActiveProcess{} }

func ReturnProcess(state RequestStatus) ActiveProcess {
	return ActiveProcess{Kind: ProcessReturn, State: state}
}

func ExchangeProcess(state RequestStatus) ActiveProcess {
	return ActiveProcess{Kind: ProcessExchange, State: state}
}

func (p ActiveProcess) Active() bool { return p.Kind != ProcessNone }

func (p ActiveProcess) ReturnStatus() RequestStatus {
	if p.Kind == ProcessReturn {
		return p.State
	}
	return RequestNone
}

func (p ActiveProcess) ExchangeStatus() RequestStatus {
	if p.Kind == ProcessExchange {
		return p.State
	}
	return RequestNone
}

// RequestSubStates lists every sub-state the admin status endpoint accepts.
func RequestSubStates() []RequestStatus {
	return []RequestStatus{
		RequestPickupScheduled, RequestPickupCompleted,
		RequestRefundInitiated, RequestRefundCompleted,
		RequestExchangeProcessing, RequestExchangeCompleted,
	}
}

func ParseRequestSubState(s string) (RequestStatus, bool) {
	for _, st := range RequestSubStates() {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// NextStep returns the sub-state following current, false when current is final or not
// part of the post-approval progression.
func NextStep(kind ProcessKind, current RequestStatus) (RequestStatus, bool) {
	steps := requestSteps[kind]
	for i, st := range steps {
		if st == current && i+1 < len(steps) {
			return steps[i+1], true
		}
	}
	return "", false
}

func FinalStep(kind ProcessKind) RequestStatus {
	steps := requestSteps[kind]
	if len(steps) == 0 {
		return RequestNone
	}
	return steps[len(steps)-1]
}

// StepKind reports which workflow owns a sub-state; shared pickup steps return ProcessNone.
func StepKind(st RequestStatus) ProcessKind {
	switch st {
	case RequestRefundInitiated, RequestRefundCompleted:
		return ProcessReturn
	case RequestExchangeProcessing, RequestExchangeCompleted:
		return ProcessExchange
	}
	return ProcessNone
}

// CheckStep validates an admin advance of a request.
func CheckStep(kind ProcessKind, current, target RequestStatus) error {
	if current == target {
		return nil
	}
	next, ok := NextStep(kind, current)
	if !ok || next != target {
		return &TransitionError{From: string(current), To: string(target)}
	}
	return nil
}

// OrderStatusFor maps a workflow state to the order status that mirrors it.
func OrderStatusFor(kind ProcessKind, st RequestStatus) (OrderStatus, bool) {
	switch kind {
	case ProcessReturn:
		switch st {
		case RequestRequested:
			return StatusReturnRequested, true
		case RequestApproved:
			return StatusReturnApproved, true
		case RequestRejected:
			return StatusReturnRejected, true
		case RequestRefundCompleted:
			return StatusReturned, true
		}
	case ProcessExchange:
		switch st {
		case RequestRequested:
			return StatusExchangeRequested, true
		case RequestApproved:
			return StatusExchangeApproved, true
		case RequestRejected:
			return StatusExchangeRejected, true
		case RequestExchangeCompleted:
			return StatusExchanged, true
		}
	}
	return "", false
}

// ProcessForOrderStatus is the inverse of OrderStatusFor for the review/complete targets.
func ProcessForOrderStatus(s OrderStatus) (ProcessKind, RequestStatus, bool) {
	switch s {
	case StatusReturnRequested:
		return ProcessReturn, RequestRequested, true
	case StatusReturnApproved:
		return ProcessReturn, RequestApproved, true
	case StatusReturnRejected:
		return ProcessReturn, RequestRejected, true
	case StatusReturned:
		return ProcessReturn, RequestRefundCompleted, true
	case StatusExchangeRequested:
		return ProcessExchange, RequestRequested, true
	case StatusExchangeApproved:
		return ProcessExchange, RequestApproved, true
	case StatusExchangeRejected:
		return ProcessExchange, RequestRejected, true
	case StatusExchanged:
		return ProcessExchange, RequestExchangeCompleted, true
	}
	return ProcessNone, RequestNone, false
}

// ReviewAction is the admin decision on a REQUESTED return or exchange.
type ReviewAction int

const (
	ActionApprove ReviewAction = iota + 1
	ActionReject
)

func (a ReviewAction) Target() RequestStatus {
	switch a {
	case ActionApprove:
		return RequestApproved
	case ActionReject:
		return RequestRejected
	}
	panic(fmt.Sprintf("unknown review action %d", a))
}

func (a ReviewAction) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	}
	return "unknown"
}

// ParseReviewAction accepts both route variants: {"action":"approve"} and {"status":"APPROVED"}.
func ParseReviewAction(s string) (ReviewAction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVE", string(RequestApproved):
		return ActionApprove, nil
	case "REJECT", string(RequestRejected):
		return ActionReject, nil
	}
	return 0, fmt.Errorf("%w: unknown review action %q", ErrValidation, s)
}
