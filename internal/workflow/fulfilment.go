package workflow

import (
	"maps"

	"salesflow/internal/domain/fulfillment"
)

type FulfilmentState string

const (
	FulfilmentAllocatingStock  FulfilmentState = "ALLOCATING_STOCK"
	FulfilmentBackordered      FulfilmentState = "BACKORDERED"
	FulfilmentPickPack         FulfilmentState = "PICK_PACK"
	FulfilmentReadyForShipment FulfilmentState = "READY_FOR_SHIPMENT"
	FulfilmentShipped          FulfilmentState = "SHIPPED"
	FulfilmentDelivered        FulfilmentState = "DELIVERED"
	FulfilmentScheduling       FulfilmentState = "SCHEDULING"
	FulfilmentInProgress       FulfilmentState = "IN_PROGRESS"
	FulfilmentReturnRequested  FulfilmentState = "RETURN_REQUESTED"
	FulfilmentReturnReceived   FulfilmentState = "RETURN_RECEIVED"
	FulfilmentRefunded         FulfilmentState = "REFUNDED"
	FulfilmentCompleted        FulfilmentState = "COMPLETED"
	FulfilmentCancelled        FulfilmentState = "CANCELLED"
	FulfilmentFailed           FulfilmentState = "FAILED"
)

func (s FulfilmentState) Valid() bool {
	_, ok := fulfilmentTable[s]
	return ok
}

func (s FulfilmentState) Final() bool {
	return len(fulfilmentTable[s]) == 0
}

type FulfilmentEvent string

const (
	FulfilmentEventReserveOK        FulfilmentEvent = "RESERVE_OK"
	FulfilmentEventReserveMiss      FulfilmentEvent = "RESERVE_MISS"
	FulfilmentEventStarted          FulfilmentEvent = "FULFILMENT_STARTED"
	FulfilmentEventServiceScheduled FulfilmentEvent = "SERVICE_SCHEDULED"
	FulfilmentEventServiceStarted   FulfilmentEvent = "SERVICE_STARTED"
	FulfilmentEventServiceCompleted FulfilmentEvent = "SERVICE_COMPLETED"
	FulfilmentEventPackageShipped   FulfilmentEvent = "PACKAGE_SHIPPED"
	FulfilmentEventPackageDelivered FulfilmentEvent = "PACKAGE_DELIVERED"
	FulfilmentEventReturnRequested  FulfilmentEvent = "RETURN_REQUESTED"
	FulfilmentEventReturnReceived   FulfilmentEvent = "RETURN_RECEIVED"
	FulfilmentEventRefundIssued     FulfilmentEvent = "REFUND_ISSUED"
	FulfilmentEventCancel           FulfilmentEvent = "CANCEL"
	FulfilmentEventFail             FulfilmentEvent = "FAIL"
)

type FulfilmentContext struct {
	SaleOrderID string            `json:"saleOrderId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

var fulfilmentTable = map[FulfilmentState]map[FulfilmentEvent]FulfilmentState{
	FulfilmentAllocatingStock: {
		FulfilmentEventReserveOK:   FulfilmentPickPack,
		FulfilmentEventReserveMiss: FulfilmentBackordered,
		FulfilmentEventCancel:      FulfilmentCancelled,
		FulfilmentEventFail:        FulfilmentFailed,
	},
	FulfilmentBackordered: {
		FulfilmentEventReserveOK: FulfilmentPickPack,
		FulfilmentEventCancel:    FulfilmentCancelled,
		FulfilmentEventFail:      FulfilmentFailed,
	},
	FulfilmentPickPack: {
		FulfilmentEventStarted:          FulfilmentReadyForShipment,
		FulfilmentEventServiceScheduled: FulfilmentScheduling,
		FulfilmentEventCancel:           FulfilmentCancelled,
		FulfilmentEventFail:             FulfilmentFailed,
	},
	FulfilmentReadyForShipment: {
		FulfilmentEventPackageShipped: FulfilmentShipped,
		FulfilmentEventCancel:         FulfilmentCancelled,
		FulfilmentEventFail:           FulfilmentFailed,
	},
	FulfilmentShipped: {
		FulfilmentEventPackageDelivered: FulfilmentDelivered,
		FulfilmentEventReturnRequested:  FulfilmentReturnRequested,
		FulfilmentEventCancel:           FulfilmentCancelled,
		FulfilmentEventFail:             FulfilmentFailed,
	},
	FulfilmentDelivered: {
		FulfilmentEventReturnRequested:  FulfilmentReturnRequested,
		FulfilmentEventReturnReceived:   FulfilmentReturnReceived,
		FulfilmentEventServiceCompleted: FulfilmentCompleted,
	},
	FulfilmentScheduling: {
		FulfilmentEventServiceStarted:   FulfilmentInProgress,
		FulfilmentEventServiceCompleted: FulfilmentCompleted,
		FulfilmentEventCancel:           FulfilmentCancelled,
		FulfilmentEventFail:             FulfilmentFailed,
	},
	FulfilmentInProgress: {
		FulfilmentEventServiceCompleted: FulfilmentCompleted,
		FulfilmentEventReturnRequested:  FulfilmentReturnRequested,
		FulfilmentEventFail:             FulfilmentFailed,
	},
	FulfilmentReturnRequested: {
		FulfilmentEventReturnReceived: FulfilmentReturnReceived,
		FulfilmentEventRefundIssued:   FulfilmentRefunded,
	},
	FulfilmentReturnReceived: {
		FulfilmentEventRefundIssued: FulfilmentRefunded,
	},
	FulfilmentRefunded:  {},
	FulfilmentCompleted: {},
	FulfilmentCancelled: {},
	FulfilmentFailed:    {},
}

type FulfilmentRun struct {
	State   FulfilmentState
	Context FulfilmentContext
	Events  []FulfilmentEvent
}

type FulfilmentOutcome struct {
	State   FulfilmentState
	Context FulfilmentContext
	Changed bool
	// Applied lists the events that moved the machine, in order.
	Applied []FulfilmentEvent
}

// RunFulfilmentMachine feeds events in order. The first event that moves nothing stops the
// run and reports Changed=false with the state reached so far.
func RunFulfilmentMachine(run FulfilmentRun) FulfilmentOutcome {
	out := FulfilmentOutcome{State: run.State, Context: run.Context.Clone()}
	for _, ev := range run.Events {
		next, ok := fulfilmentTable[out.State][ev]
		if !ok || next == out.State {
			out.Changed = false
			return out
		}
		out.State = next
		out.Applied = append(out.Applied, ev)
		out.Changed = true
	}
	return out
}

// FulfilmentStateFromStatus maps the legacy fulfillment status onto a starting workflow state.
func FulfilmentStateFromStatus(status fulfillment.Status) FulfilmentState {
	switch status {
	case fulfillment.StatusAssigned:
		return FulfilmentReadyForShipment
	case fulfillment.StatusInTransit:
		return FulfilmentShipped
	case fulfillment.StatusDelivered:
		return FulfilmentDelivered
	case fulfillment.StatusCancelled:
		return FulfilmentCancelled
	default:
		return FulfilmentAllocatingStock
	}
}

func ResolveFulfilmentState(workflowState *string, status fulfillment.Status) FulfilmentState {
	if workflowState != nil {
		if s := FulfilmentState(*workflowState); s.Valid() {
			return s
		}
	}
	return FulfilmentStateFromStatus(status)
}

// EventsForFulfilmentTransition derives the machine events that realise a legacy status change.
// An empty result for distinct statuses means the move has no mapping.
func EventsForFulfilmentTransition(from, to fulfillment.Status) []FulfilmentEvent {
	if from == to {
		return nil
	}
	if to == fulfillment.StatusCancelled {
		return []FulfilmentEvent{FulfilmentEventCancel}
	}
	switch {
	case from == fulfillment.StatusPending && to == fulfillment.StatusAssigned:
		return []FulfilmentEvent{FulfilmentEventReserveOK, FulfilmentEventStarted}
	case from == fulfillment.StatusAssigned && to == fulfillment.StatusInTransit:
		return []FulfilmentEvent{FulfilmentEventPackageShipped}
	case from == fulfillment.StatusInTransit && to == fulfillment.StatusDelivered:
		return []FulfilmentEvent{FulfilmentEventPackageDelivered}
	}
	return nil
}

var legacyFulfilmentMoves = map[fulfillment.Status][]fulfillment.Status{
	fulfillment.StatusPending:   {fulfillment.StatusAssigned, fulfillment.StatusCancelled},
	fulfillment.StatusAssigned:  {fulfillment.StatusInTransit, fulfillment.StatusCancelled},
	fulfillment.StatusInTransit: {fulfillment.StatusDelivered, fulfillment.StatusCancelled},
}

// CanMoveFulfillmentStatus reports whether the legacy status graph allows from -> to.
func CanMoveFulfillmentStatus(from, to fulfillment.Status) bool {
	for _, allowed := range legacyFulfilmentMoves[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (c FulfilmentContext) Clone() FulfilmentContext {
	out := c
	if c.Metadata != nil {
		out.Metadata = maps.Clone(c.Metadata)
	}
	return out
}
