package workflow

import (
	"time"

	"salesflow/internal/domain/sale"

	"github.com/shopspring/decimal"
)

type SaleState string

const (
	SaleAwaitingPaymentMethod      SaleState = "AWAITING_PAYMENT_METHOD"
	SalePaymentInitiated           SaleState = "PAYMENT_INITIATED"
	SalePaymentPendingConfirmation SaleState = "PAYMENT_PENDING_CONFIRMATION"
	SaleOverrideReview             SaleState = "OVERRIDE_REVIEW"
	SaleClearedForFulfilment       SaleState = "CLEARED_FOR_FULFILMENT"
	SalePaymentFailed              SaleState = "PAYMENT_FAILED"
	SaleCancelled                  SaleState = "CANCELLED"
)

func (s SaleState) Valid() bool {
	_, ok := saleTable[s]
	return ok
}

func (s SaleState) Final() bool {
	return s == SaleClearedForFulfilment || s == SaleCancelled
}

type SaleEventType string

const (
	SaleEventSetPaymentMethod       SaleEventType = "SET_PAYMENT_METHOD"
	SaleEventPaymentMethodSubmitted SaleEventType = "PAYMENT_METHOD_SUBMITTED"
	SaleEventPaymentConfirmed       SaleEventType = "PAYMENT_CONFIRMED"
	SaleEventPaymentCaptured        SaleEventType = "PAYMENT_CAPTURED"
	SaleEventPaymentFailed          SaleEventType = "PAYMENT_FAILED"
	SaleEventAdminOverrideApproved  SaleEventType = "ADMIN_OVERRIDE_APPROVED"
	SaleEventCreditOverrideApproved SaleEventType = "CREDIT_OVERRIDE_APPROVED"
	SaleEventAdminOverrideDenied    SaleEventType = "ADMIN_OVERRIDE_DENIED"
	SaleEventCreditOverrideDenied   SaleEventType = "CREDIT_OVERRIDE_DENIED"
	SaleEventOverrideRevoked        SaleEventType = "OVERRIDE_REVOKED"
	SaleEventReset                  SaleEventType = "RESET"
	SaleEventCancel                 SaleEventType = "CANCEL"
)

type SaleEvent struct {
	Type           SaleEventType    `json:"type"`
	Method         string           `json:"method,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	ApprovedAmount *decimal.Decimal `json:"approvedAmount,omitempty"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
}

type OverrideStatus string

const (
	OverridePending  OverrideStatus = "PENDING"
	OverrideApproved OverrideStatus = "APPROVED"
	OverrideDenied   OverrideStatus = "DENIED"
	OverrideRevoked  OverrideStatus = "REVOKED"
)

type Override struct {
	Status         OverrideStatus   `json:"status"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	ApprovedAmount *decimal.Decimal `json:"approvedAmount,omitempty"`
}

type Overrides struct {
	Admin  *Override `json:"admin,omitempty"`
	Credit *Override `json:"credit,omitempty"`
}

type CreditSnapshot struct {
	Limit    decimal.Decimal `json:"limit"`
	Exposure decimal.Decimal `json:"exposure"`
	Overage  decimal.Decimal `json:"overage"`
}

type SaleContext struct {
	OrderID       string          `json:"orderId"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	CapturedTotal decimal.Decimal `json:"capturedTotal"`
	Credit        CreditSnapshot  `json:"credit"`
	Overrides     Overrides       `json:"overrides"`
	ClearToFulfil bool            `json:"clearToFulfil"`
}

// SaleRun is one evaluation of the sale machine. Now is the instant override expiry is judged against.
type SaleRun struct {
	State         SaleState
	Context       SaleContext
	Event         SaleEvent
	Now           time.Time
	OnSaleCleared func(SaleContext)
}

type SaleOutcome struct {
	State   SaleState
	Context SaleContext
	Changed bool
}

type saleGuard uint8

const (
	guardNone saleGuard = iota
	guardPaymentSatisfied
	guardOverrideSatisfied
)

type saleEffect uint16

const (
	effectSaveAdminOverride saleEffect = 1 << iota
	effectSaveCreditOverride
	effectMarkClearToFulfil
	effectResetFlags
	effectDenyAdminOverride
	effectDenyCreditOverride
	effectRevokeOverrides
)

// saleTransition with an empty target keeps the current state and only applies effects.
type saleTransition struct {
	target  SaleState
	guard   saleGuard
	effects saleEffect
}

var (
	clearOnPayment  = saleTransition{target: SaleClearedForFulfilment, guard: guardPaymentSatisfied, effects: effectMarkClearToFulfil}
	toPaymentFailed = []saleTransition{{target: SalePaymentFailed}}
	toCancelled     = []saleTransition{{target: SaleCancelled}}
	toInitiated     = []saleTransition{{target: SalePaymentInitiated}}
	toReview        = func(save saleEffect) []saleTransition {
		return []saleTransition{{target: SaleOverrideReview, effects: save}}
	}
	reviewApproval = func(save saleEffect) []saleTransition {
		return []saleTransition{
			{target: SaleClearedForFulfilment, guard: guardOverrideSatisfied, effects: save | effectMarkClearToFulfil},
			{effects: save},
		}
	}
	resetToAwaiting = []saleTransition{{target: SaleAwaitingPaymentMethod, effects: effectResetFlags}}
)

// Candidates for a (state, event) pair are tried in order; the first whose guard holds wins.
var saleTable = map[SaleState]map[SaleEventType][]saleTransition{
	SaleAwaitingPaymentMethod: {
		SaleEventSetPaymentMethod:       toInitiated,
		SaleEventPaymentMethodSubmitted: toInitiated,
		SaleEventAdminOverrideApproved: {
			{target: SaleClearedForFulfilment, effects: effectSaveAdminOverride | effectMarkClearToFulfil},
		},
		SaleEventCreditOverrideApproved: {
			{target: SaleClearedForFulfilment, effects: effectSaveCreditOverride | effectMarkClearToFulfil},
		},
		SaleEventPaymentFailed: toPaymentFailed,
		SaleEventCancel:        toCancelled,
	},
	SalePaymentInitiated: {
		SaleEventPaymentConfirmed:       {clearOnPayment, {target: SalePaymentPendingConfirmation}},
		SaleEventPaymentCaptured:        {clearOnPayment, {target: SalePaymentPendingConfirmation}},
		SaleEventPaymentFailed:          toPaymentFailed,
		SaleEventAdminOverrideApproved:  toReview(effectSaveAdminOverride),
		SaleEventCreditOverrideApproved: toReview(effectSaveCreditOverride),
		SaleEventCancel:                 toCancelled,
	},
	SalePaymentPendingConfirmation: {
		SaleEventPaymentConfirmed:       {clearOnPayment},
		SaleEventPaymentCaptured:        {clearOnPayment},
		SaleEventPaymentFailed:          toPaymentFailed,
		SaleEventAdminOverrideApproved:  toReview(effectSaveAdminOverride),
		SaleEventCreditOverrideApproved: toReview(effectSaveCreditOverride),
		SaleEventCancel:                 toCancelled,
	},
	SaleOverrideReview: {
		SaleEventAdminOverrideApproved:  reviewApproval(effectSaveAdminOverride),
		SaleEventCreditOverrideApproved: reviewApproval(effectSaveCreditOverride),
		SaleEventAdminOverrideDenied:    {{target: SalePaymentPendingConfirmation, effects: effectDenyAdminOverride}},
		SaleEventCreditOverrideDenied:   {{target: SalePaymentPendingConfirmation, effects: effectDenyCreditOverride}},
		SaleEventOverrideRevoked:        {{target: SalePaymentPendingConfirmation, effects: effectRevokeOverrides}},
		SaleEventPaymentConfirmed:       {clearOnPayment},
		SaleEventPaymentCaptured:        {clearOnPayment},
		SaleEventPaymentFailed:          toPaymentFailed,
		SaleEventCancel:                 toCancelled,
	},
	SalePaymentFailed: {
		SaleEventReset:                  resetToAwaiting,
		SaleEventSetPaymentMethod:       toInitiated,
		SaleEventPaymentMethodSubmitted: toInitiated,
		SaleEventCancel:                 toCancelled,
	},
	SaleClearedForFulfilment: {
		SaleEventReset: resetToAwaiting,
	},
	SaleCancelled: {},
}

// SaleStateFromStatus maps the legacy order status onto a starting workflow state.
func SaleStateFromStatus(status sale.Status) SaleState {
	switch status {
	case sale.StatusApproved:
		return SalePaymentPendingConfirmation
	case sale.StatusPaid, sale.StatusFulfilled:
		return SaleClearedForFulfilment
	case sale.StatusCancelled:
		return SaleCancelled
	default:
		return SaleAwaitingPaymentMethod
	}
}

// ResolveSaleState prefers a stored workflow state and falls back to the legacy status.
func ResolveSaleState(workflowState *string, status sale.Status) SaleState {
	if workflowState != nil {
		if s := SaleState(*workflowState); s.Valid() {
			return s
		}
	}
	return SaleStateFromStatus(status)
}

// SaleEventAccepted reports whether state has any transition for the event type.
func SaleEventAccepted(state SaleState, ev SaleEventType) bool {
	_, ok := saleTable[state][ev]
	return ok
}

func (e SaleEventType) Valid() bool {
	switch e {
	case SaleEventSetPaymentMethod, SaleEventPaymentMethodSubmitted, SaleEventPaymentConfirmed,
		SaleEventPaymentCaptured, SaleEventPaymentFailed, SaleEventAdminOverrideApproved,
		SaleEventCreditOverrideApproved, SaleEventAdminOverrideDenied, SaleEventCreditOverrideDenied,
		SaleEventOverrideRevoked, SaleEventReset, SaleEventCancel:
		return true
	}
	return false
}

// RunSaleMachine applies one event to a sale. It performs no I/O; OnSaleCleared fires only
// when the run enters CLEARED_FOR_FULFILMENT from another state.
func RunSaleMachine(run SaleRun) SaleOutcome {
	current := run.Context.Clone()
	candidates := saleTable[run.State][run.Event.Type]

	for _, t := range candidates {
		staged := applySaleEffects(current, t.effects&^effectMarkClearToFulfil, run.Event)
		if !t.guard.allows(staged, run.Now) {
			continue
		}
		if t.effects&effectMarkClearToFulfil != 0 {
			staged.ClearToFulfil = true
		}

		next := run.State
		if t.target != "" {
			next = t.target
		}
		out := SaleOutcome{
			State:   next,
			Context: staged,
			Changed: next != run.State || !staged.Equal(run.Context),
		}
		if next == SaleClearedForFulfilment && run.State != SaleClearedForFulfilment && run.OnSaleCleared != nil {
			run.OnSaleCleared(out.Context.Clone())
		}
		return out
	}

	return SaleOutcome{State: run.State, Context: current, Changed: false}
}

func (g saleGuard) allows(c SaleContext, now time.Time) bool {
	switch g {
	case guardPaymentSatisfied:
		return IsPaymentSatisfied(c, now)
	case guardOverrideSatisfied:
		return IsOverrideSatisfied(c, now)
	default:
		return true
	}
}

func applySaleEffects(c SaleContext, effects saleEffect, ev SaleEvent) SaleContext {
	c = c.Clone()
	if effects&effectSaveAdminOverride != 0 {
		c.Overrides.Admin = &Override{
			Status:    OverrideApproved,
			ExpiresAt: cloneTime(ev.ExpiresAt),
		}
	}
	if effects&effectSaveCreditOverride != 0 {
		amount := c.Credit.Overage
		if ev.ApprovedAmount != nil {
			amount = *ev.ApprovedAmount
		}
		c.Overrides.Credit = &Override{
			Status:         OverrideApproved,
			ExpiresAt:      cloneTime(ev.ExpiresAt),
			ApprovedAmount: &amount,
		}
	}
	if effects&effectDenyAdminOverride != 0 && c.Overrides.Admin != nil {
		c.Overrides.Admin.Status = OverrideDenied
	}
	if effects&effectDenyCreditOverride != 0 && c.Overrides.Credit != nil {
		c.Overrides.Credit.Status = OverrideDenied
	}
	if effects&effectRevokeOverrides != 0 {
		if c.Overrides.Admin != nil {
			c.Overrides.Admin.Status = OverrideRevoked
		}
		if c.Overrides.Credit != nil {
			c.Overrides.Credit.Status = OverrideRevoked
		}
	}
	if effects&effectResetFlags != 0 {
		c.Overrides = Overrides{}
		c.ClearToFulfil = false
	}
	return c
}

// IsAdminOverrideValid requires APPROVED and an expiry, if any, strictly after now.
func IsAdminOverrideValid(c SaleContext, now time.Time) bool {
	o := c.Overrides.Admin
	if o == nil || o.Status != OverrideApproved {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// IsCreditOverrideValid additionally requires the approved amount to cover the credit overage.
func IsCreditOverrideValid(c SaleContext, now time.Time) bool {
	o := c.Overrides.Credit
	if o == nil || o.Status != OverrideApproved {
		return false
	}
	if o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
		return false
	}
	approved := decimal.Zero
	if o.ApprovedAmount != nil {
		approved = *o.ApprovedAmount
	}
	return approved.GreaterThanOrEqual(c.Credit.Overage)
}

func IsOverrideSatisfied(c SaleContext, now time.Time) bool {
	return IsAdminOverrideValid(c, now) || IsCreditOverrideValid(c, now)
}

func IsPaymentSatisfied(c SaleContext, now time.Time) bool {
	if c.ClearToFulfil {
		return true
	}
	if c.CapturedTotal.GreaterThanOrEqual(c.GrandTotal) {
		return true
	}
	return IsOverrideSatisfied(c, now)
}

func (c SaleContext) Clone() SaleContext {
	out := c
	out.Overrides = Overrides{
		Admin:  c.Overrides.Admin.clone(),
		Credit: c.Overrides.Credit.clone(),
	}
	return out
}

func (c SaleContext) Equal(o SaleContext) bool {
	return c.OrderID == o.OrderID &&
		c.GrandTotal.Equal(o.GrandTotal) &&
		c.CapturedTotal.Equal(o.CapturedTotal) &&
		c.Credit.Limit.Equal(o.Credit.Limit) &&
		c.Credit.Exposure.Equal(o.Credit.Exposure) &&
		c.Credit.Overage.Equal(o.Credit.Overage) &&
		c.ClearToFulfil == o.ClearToFulfil &&
		c.Overrides.Admin.equal(o.Overrides.Admin) &&
		c.Overrides.Credit.equal(o.Overrides.Credit)
}

func (o *Override) clone() *Override {
	if o == nil {
		return nil
	}
	out := &Override{Status: o.Status, ExpiresAt: cloneTime(o.ExpiresAt)}
	if o.ApprovedAmount != nil {
		amount := *o.ApprovedAmount
		out.ApprovedAmount = &amount
	}
	return out
}

func (o *Override) equal(other *Override) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.Status != other.Status {
		return false
	}
	if (o.ExpiresAt == nil) != (other.ExpiresAt == nil) {
		return false
	}
	if o.ExpiresAt != nil && !o.ExpiresAt.Equal(*other.ExpiresAt) {
		return false
	}
	if (o.ApprovedAmount == nil) != (other.ApprovedAmount == nil) {
		return false
	}
	return o.ApprovedAmount == nil || o.ApprovedAmount.Equal(*other.ApprovedAmount)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
