package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
	"salesflow/internal/events"
	"salesflow/internal/repository"
	"salesflow/internal/workflow"
	salesflow_errors "salesflow/pkg/errors"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SaleService struct {
	store       repository.Store
	publisher   *EventPublisher
	recorder    *WorkflowRecorder
	coordinator *PhaseCoordinator
	logger      *logger.Logger
	clock       func() time.Time
}

func NewSaleService(store repository.Store, publisher *EventPublisher, recorder *WorkflowRecorder, coordinator *PhaseCoordinator, l *logger.Logger) *SaleService {
	if l == nil {
		l = logger.NewNop()
	}
	return &SaleService{
		store:       store,
		publisher:   publisher,
		recorder:    recorder,
		coordinator: coordinator,
		logger:      l,
		clock:       time.Now,
	}
}

type SaleSnapshot struct {
	OrderID     uuid.UUID            `json:"orderId"`
	State       workflow.SaleState   `json:"state"`
	Context     workflow.SaleContext `json:"context"`
	Status      sale.Status          `json:"status"`
	Phase       sale.Phase           `json:"phase"`
	Transitions []sale.TransitionLog `json:"transitions"`
}

type RegisterPaymentInput struct {
	SaleOrderID uuid.UUID
	Method      string
	Amount      decimal.Decimal
	Reference   string
}

// saleFigures is the money position of an order at the time a context is refreshed.
type saleFigures struct {
	paid      decimal.Decimal
	remainder decimal.Decimal
	profile   *user.ResellerProfile
	projected decimal.Decimal
}

// RegisterPayment records a PENDING payment and moves a sale still awaiting a method to PAYMENT_INITIATED.
func (s *SaleService) RegisterPayment(ctx context.Context, in RegisterPaymentInput) (sale.Payment, error) {
	if in.SaleOrderID == uuid.Nil || strings.TrimSpace(in.Method) == "" || !in.Amount.IsPositive() {
		return sale.Payment{}, salesflow_errors.ErrInvalidInput
	}

	var payment sale.Payment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		order, err := tx.Sales().GetOrderForUpdate(ctx, in.SaleOrderID)
		if err != nil {
			return err
		}
		if order.Phase != sale.PhaseSale {
			return fmt.Errorf("order %s already in %s phase: %w", order.ID, order.Phase, salesflow_errors.ErrConflict)
		}

		channel := sale.ChannelConsumer
		if order.Type == sale.TypeReseller {
			channel = sale.ChannelReseller
		}
		payment = sale.Payment{
			ID:          uuid.New(),
			SaleOrderID: order.ID,
			Channel:     channel,
			Method:      in.Method,
			Amount:      in.Amount,
			Status:      sale.PaymentPending,
			Reference:   in.Reference,
		}
		if err := tx.Sales().CreatePayment(ctx, &payment); err != nil {
			return err
		}

		state := workflow.ResolveSaleState(order.WorkflowState, order.Status)
		if state != workflow.SaleAwaitingPaymentMethod && state != workflow.SalePaymentFailed {
			return nil
		}
		sctx, _, err := s.refreshSaleContext(ctx, tx, &order)
		if err != nil {
			return err
		}
		outcome := workflow.RunSaleMachine(workflow.SaleRun{
			State:   state,
			Context: sctx,
			Event:   workflow.SaleEvent{Type: workflow.SaleEventSetPaymentMethod, Method: in.Method},
			Now:     s.clock().UTC(),
		})
		return s.recorder.RecordSaleTransition(ctx, tx, &order, SaleTransition{
			From:     stateRef(string(state)),
			To:       outcome.State,
			Context:  outcome.Context,
			Event:    string(workflow.SaleEventSetPaymentMethod),
			Metadata: map[string]interface{}{"paymentId": payment.ID.String(), "method": in.Method},
		})
	})
	if err != nil {
		return sale.Payment{}, err
	}
	return payment, nil
}

// ConfirmPayment marks a payment CONFIRMED and publishes PAYMENT_CONFIRMED in the same transaction.
// Confirming an already confirmed payment returns it unchanged without a second event.
func (s *SaleService) ConfirmPayment(ctx context.Context, paymentID uuid.UUID) (sale.Payment, error) {
	var payment sale.Payment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		p, err := tx.Sales().GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		switch p.Status {
		case sale.PaymentConfirmed:
			payment = p
			return nil
		case sale.PaymentFailed:
			return fmt.Errorf("payment %s failed: %w", p.ID, salesflow_errors.ErrInvalidTransition)
		}

		now := s.clock().UTC()
		p.Status = sale.PaymentConfirmed
		p.ConfirmedAt = &now
		p.UpdatedAt = now
		if err := tx.Sales().UpdatePayment(ctx, &p); err != nil {
			return err
		}

		amount := p.Amount
		_, err = s.publisher.Publish(ctx, events.EventTypePaymentConfirmed, events.PaymentConfirmedPayload{
			PaymentID:   p.ID.String(),
			SaleOrderID: p.SaleOrderID.String(),
			Channel:     string(p.Channel),
			Amount:      &amount,
		}, WithStore(tx), WithAggregate(events.AggregatePayment, p.ID.String()))
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return sale.Payment{}, err
	}
	return payment, nil
}

// HandlePaymentConfirmed re-derives the paid and credit position of an order, runs the sale
// machine and advances the order to fulfillment when it clears. Orders that are missing or
// already past the SALE phase are left alone. An order still awaiting a payment method does not
// move until a payment is registered for it. It reports whether the order advanced.
func (s *SaleService) HandlePaymentConfirmed(ctx context.Context, orderID uuid.UUID, p events.PaymentConfirmedPayload) (bool, error) {
	log := s.logger.WithContext(ctx).With(zap.String("order_id", orderID.String()))
	advanced := false

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		order, err := tx.Sales().GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, salesflow_errors.ErrNotFound) {
			log.Logger.Warn("payment confirmed for unknown order")
			return nil
		}
		if err != nil {
			return err
		}
		if order.Phase != sale.PhaseSale {
			log.Logger.Debug("order already advanced, ignoring payment confirmation", zap.String("phase", string(order.Phase)))
			return nil
		}

		sctx, fig, err := s.refreshSaleContext(ctx, tx, &order)
		if err != nil {
			return err
		}

		absorb := fig.remainder.IsPositive() && fig.profile != nil &&
			fig.projected.LessThanOrEqual(fig.profile.CreditLimit)
		runCtx := sctx.Clone()
		if absorb {
			approved := fig.remainder
			runCtx.Credit.Overage = decimal.Zero
			runCtx.Overrides.Credit = &workflow.Override{Status: workflow.OverrideApproved, ApprovedAmount: &approved}
		}

		state := workflow.ResolveSaleState(order.WorkflowState, order.Status)
		entered := false
		outcome := workflow.RunSaleMachine(workflow.SaleRun{
			State:         state,
			Context:       runCtx,
			Event:         workflow.SaleEvent{Type: workflow.SaleEventPaymentConfirmed, Amount: p.Amount},
			Now:           s.clock().UTC(),
			OnSaleCleared: func(workflow.SaleContext) { entered = true },
		})

		meta := map[string]interface{}{
			"capturedTotal": fig.paid.String(),
			"grandTotal":    order.TotalAmount.String(),
		}
		if p.PaymentID != "" {
			meta["paymentId"] = p.PaymentID
		}

		if outcome.State != workflow.SaleClearedForFulfilment {
			stored := outcome.Context
			stored.Overrides.Credit = sctx.Overrides.Credit
			stored.Credit = sctx.Credit
			if fig.profile != nil && fig.remainder.IsPositive() {
				meta["creditProjected"] = fig.projected.String()
				meta["creditLimit"] = fig.profile.CreditLimit.String()
			}
			return s.recorder.RecordSaleTransition(ctx, tx, &order, SaleTransition{
				From:     stateRef(string(state)),
				To:       outcome.State,
				Context:  stored,
				Event:    string(workflow.SaleEventPaymentConfirmed),
				Metadata: meta,
			})
		}

		if absorb {
			profile := *fig.profile
			profile.OutstandingBalance = fig.projected
			if err := tx.Sales().UpsertResellerProfile(ctx, &profile); err != nil {
				return fmt.Errorf("absorb credit: %w", err)
			}
			meta["creditAbsorbed"] = fig.remainder.String()
		}
		if fig.paid.GreaterThanOrEqual(order.TotalAmount) {
			order.Status = sale.StatusPaid
		}
		if !entered {
			meta["resumed"] = true
		}

		advanced = true
		return s.coordinator.AdvanceSale(ctx, tx, ClearedSale{
			Order:    &order,
			From:     stateRef(string(state)),
			Context:  outcome.Context,
			Trigger:  string(workflow.SaleEventPaymentConfirmed),
			Metadata: meta,
		})
	})
	if err != nil {
		return false, err
	}
	if advanced {
		log.Logger.Info("order advanced to fulfillment")
	}
	return advanced, nil
}

// ApplyEvent runs a workflow command against an order. Totals and credit are refreshed from
// storage first; a command that clears the sale advances the order like a confirmed payment.
func (s *SaleService) ApplyEvent(ctx context.Context, orderID uuid.UUID, ev workflow.SaleEvent) (SaleSnapshot, error) {
	if !ev.Type.Valid() {
		return SaleSnapshot{}, fmt.Errorf("%w: unknown sale event %q", salesflow_errors.ErrInvalidInput, ev.Type)
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		order, err := tx.Sales().GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		state := workflow.ResolveSaleState(order.WorkflowState, order.Status)
		if !workflow.SaleEventAccepted(state, ev.Type) {
			return fmt.Errorf("%s not accepted in %s: %w", ev.Type, state, salesflow_errors.ErrInvalidTransition)
		}
		if order.Phase != sale.PhaseSale && ev.Type == workflow.SaleEventReset {
			return fmt.Errorf("order %s already in %s phase: %w", order.ID, order.Phase, salesflow_errors.ErrConflict)
		}

		sctx, fig, err := s.refreshSaleContext(ctx, tx, &order)
		if err != nil {
			return err
		}
		outcome := workflow.RunSaleMachine(workflow.SaleRun{
			State:   state,
			Context: sctx,
			Event:   ev,
			Now:     s.clock().UTC(),
		})

		switch outcome.State {
		case workflow.SaleCancelled:
			order.Status = sale.StatusCancelled
		case workflow.SaleAwaitingPaymentMethod:
			if order.Status == sale.StatusCancelled || order.Status == sale.StatusPaid {
				order.Status = sale.StatusPending
			}
		}

		if outcome.State == workflow.SaleClearedForFulfilment && state != workflow.SaleClearedForFulfilment && order.Phase == sale.PhaseSale {
			if fig.paid.GreaterThanOrEqual(order.TotalAmount) {
				order.Status = sale.StatusPaid
			} else if order.Status == sale.StatusPending {
				order.Status = sale.StatusApproved
			}
			return s.coordinator.AdvanceSale(ctx, tx, ClearedSale{
				Order:   &order,
				From:    stateRef(string(state)),
				Context: outcome.Context,
				Trigger: string(ev.Type),
			})
		}

		return s.recorder.RecordSaleTransition(ctx, tx, &order, SaleTransition{
			From:    stateRef(string(state)),
			To:      outcome.State,
			Context: outcome.Context,
			Event:   string(ev.Type),
		})
	})
	if err != nil {
		return SaleSnapshot{}, err
	}
	return s.Snapshot(ctx, orderID)
}

func (s *SaleService) Snapshot(ctx context.Context, orderID uuid.UUID) (SaleSnapshot, error) {
	order, err := s.store.Sales().GetOrder(ctx, orderID)
	if err != nil {
		return SaleSnapshot{}, err
	}
	logs, err := s.store.Sales().ListTransitions(ctx, orderID)
	if err != nil {
		return SaleSnapshot{}, err
	}
	return SaleSnapshot{
		OrderID:     order.ID,
		State:       workflow.ResolveSaleState(order.WorkflowState, order.Status),
		Context:     s.decodeSaleContext(ctx, order),
		Status:      order.Status,
		Phase:       order.Phase,
		Transitions: logs,
	}, nil
}

// refreshSaleContext loads the stored context and overwrites totals and credit with current figures.
func (s *SaleService) refreshSaleContext(ctx context.Context, tx repository.Store, order *sale.SaleOrder) (workflow.SaleContext, saleFigures, error) {
	sctx := s.decodeSaleContext(ctx, *order)

	paid, err := tx.Sales().SumConfirmedPayments(ctx, order.ID)
	if err != nil {
		return sctx, saleFigures{}, fmt.Errorf("sum payments: %w", err)
	}
	fig := saleFigures{paid: paid, remainder: decimal.Max(order.TotalAmount.Sub(paid), decimal.Zero)}

	sctx.GrandTotal = order.TotalAmount
	sctx.CapturedTotal = paid

	if order.Type == sale.TypeReseller {
		profile, err := s.resellerProfile(ctx, tx, order.ID)
		if err != nil {
			return sctx, fig, err
		}
		if profile != nil {
			fig.profile = profile
			fig.projected = profile.OutstandingBalance.Add(fig.remainder)
			sctx.Credit = workflow.CreditSnapshot{
				Limit:    profile.CreditLimit,
				Exposure: fig.projected,
				Overage:  decimal.Max(fig.projected.Sub(profile.CreditLimit), decimal.Zero),
			}
		}
	}
	return sctx, fig, nil
}

func (s *SaleService) resellerProfile(ctx context.Context, tx repository.Store, orderID uuid.UUID) (*user.ResellerProfile, error) {
	attached, err := tx.Sales().GetAttachedSale(ctx, orderID)
	if errors.Is(err, salesflow_errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load attached sale: %w", err)
	}
	if attached.ResellerID == nil {
		return nil, nil
	}
	profile, err := tx.Sales().GetResellerProfile(ctx, *attached.ResellerID)
	if errors.Is(err, salesflow_errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load reseller profile: %w", err)
	}
	return &profile, nil
}

func (s *SaleService) decodeSaleContext(ctx context.Context, order sale.SaleOrder) workflow.SaleContext {
	sctx := workflow.SaleContext{OrderID: order.ID.String(), GrandTotal: order.TotalAmount}
	if len(order.WorkflowContext) == 0 {
		return sctx
	}
	if err := json.Unmarshal(order.WorkflowContext, &sctx); err != nil {
		s.logger.WithContext(ctx).Logger.Warn("discarding unreadable sale workflow context",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return workflow.SaleContext{OrderID: order.ID.String(), GrandTotal: order.TotalAmount}
	}
	sctx.OrderID = order.ID.String()
	return sctx
}
