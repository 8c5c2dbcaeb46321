package events

// Event type constants. Sale-side types follow the format domain.action.

// Handler-routed events
const (
	EventTypeNotification     = "NOTIFICATION"
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
)

// Order read-model events
const (
	EventTypeSaleCleared              = "order.sale.cleared"
	EventTypeFulfillmentStatusChanged = "order.fulfillment.status_changed"
)

// OrderEventPrefix marks events fanned out to order subscribers.
const OrderEventPrefix = "order."

// Procurement event prefixes recorded by the audit trail
var ProcurementPrefixes = []string{
	"PURCHASE_",
	"RFQ_",
	"SUPPLIER_QUOTE_",
}

// Aggregate types
const (
	AggregateSaleOrder    = "SaleOrder"
	AggregatePayment      = "Payment"
	AggregateFulfillment  = "Fulfillment"
	AggregateNotification = "Notification"
)

// Notification kinds sent when an order moves to fulfillment
const (
	NotificationFulfillmentRequested = "FULFILLMENT_REQUESTED"
	NotificationOrderAdvanced        = "ORDER_ADVANCED_TO_FULFILLMENT"
)
