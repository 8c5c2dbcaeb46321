package memory

import (
	"context"
	"sort"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type saleRepo struct {
	st *state
}

func (r *saleRepo) CreateOrder(_ context.Context, o *sale.SaleOrder) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if _, exists := r.st.orders[o.ID]; exists {
		return salesflow_errors.ErrAlreadyExists
	}
	if o.Status == "" {
		o.Status = sale.StatusPending
	}
	if o.Phase == "" {
		o.Phase = sale.PhaseSale
	}
	stamp(&o.CreatedAt)
	stamp(&o.UpdatedAt)
	r.st.orders[o.ID] = *o
	return nil
}

func (r *saleRepo) GetOrder(_ context.Context, id uuid.UUID) (sale.SaleOrder, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	o, ok := r.st.orders[id]
	if !ok {
		return sale.SaleOrder{}, salesflow_errors.ErrNotFound
	}
	return o, nil
}

// GetOrderForUpdate relies on Store.WithinTx serializing transactions.
func (r *saleRepo) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (sale.SaleOrder, error) {
	return r.GetOrder(ctx, id)
}

func (r *saleRepo) UpdateOrder(_ context.Context, o *sale.SaleOrder) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	existing, ok := r.st.orders[o.ID]
	if !ok {
		return salesflow_errors.ErrNotFound
	}
	o.CreatedAt = existing.CreatedAt
	r.st.orders[o.ID] = *o
	return nil
}

func (r *saleRepo) CreatePayment(_ context.Context, p *sale.Payment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = sale.PaymentPending
	}
	stamp(&p.CreatedAt)
	stamp(&p.UpdatedAt)
	r.st.payments[p.ID] = *p
	return nil
}

func (r *saleRepo) GetPayment(_ context.Context, id uuid.UUID) (sale.Payment, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	p, ok := r.st.payments[id]
	if !ok {
		return sale.Payment{}, salesflow_errors.ErrNotFound
	}
	return p, nil
}

func (r *saleRepo) UpdatePayment(_ context.Context, p *sale.Payment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.payments[p.ID]; !ok {
		return salesflow_errors.ErrNotFound
	}
	r.st.payments[p.ID] = *p
	return nil
}

func (r *saleRepo) SumConfirmedPayments(_ context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	total := decimal.Zero
	for _, p := range r.st.payments {
		if p.SaleOrderID == orderID && p.Status == sale.PaymentConfirmed {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (r *saleRepo) CreateConsumerSale(_ context.Context, s *sale.ConsumerSale) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, exists := r.st.consumerSales[s.SaleOrderID]; exists {
		return salesflow_errors.ErrAlreadyExists
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for i := range s.Items {
		if s.Items[i].ID == uuid.Nil {
			s.Items[i].ID = uuid.New()
		}
		s.Items[i].ConsumerSaleID = s.ID
	}
	stamp(&s.CreatedAt)
	r.st.consumerSales[s.SaleOrderID] = *s
	return nil
}

func (r *saleRepo) CreateResellerSale(_ context.Context, s *sale.ResellerSale) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, exists := r.st.resellerSales[s.SaleOrderID]; exists {
		return salesflow_errors.ErrAlreadyExists
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for i := range s.Items {
		if s.Items[i].ID == uuid.Nil {
			s.Items[i].ID = uuid.New()
		}
		s.Items[i].ResellerSaleID = s.ID
	}
	stamp(&s.CreatedAt)
	r.st.resellerSales[s.SaleOrderID] = *s
	return nil
}

func (r *saleRepo) GetAttachedSale(_ context.Context, orderID uuid.UUID) (sale.AttachedSale, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	if cs, ok := r.st.consumerSales[orderID]; ok {
		return cs.Attached(), nil
	}
	if rs, ok := r.st.resellerSales[orderID]; ok {
		return rs.Attached(), nil
	}
	return sale.AttachedSale{}, salesflow_errors.ErrNotFound
}

func (r *saleRepo) GetResellerProfile(_ context.Context, userID uuid.UUID) (user.ResellerProfile, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	p, ok := r.st.profiles[userID]
	if !ok {
		return user.ResellerProfile{}, salesflow_errors.ErrNotFound
	}
	return p, nil
}

func (r *saleRepo) UpsertResellerProfile(_ context.Context, p *user.ResellerProfile) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	stamp(&p.UpdatedAt)
	r.st.profiles[p.UserID] = *p
	return nil
}

func (r *saleRepo) AppendTransition(_ context.Context, l *sale.TransitionLog) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	stamp(&l.OccurredAt)
	r.st.saleLogs = append(r.st.saleLogs, *l)
	return nil
}

func (r *saleRepo) ListTransitions(_ context.Context, orderID uuid.UUID) ([]sale.TransitionLog, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var out []sale.TransitionLog
	for _, l := range r.st.saleLogs {
		if l.SaleOrderID == orderID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

type fulfillmentRepo struct {
	st *state
}

func (r *fulfillmentRepo) Create(_ context.Context, f *fulfillment.Fulfillment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, exists := r.st.fulfillments[f.SaleOrderID]; exists {
		return salesflow_errors.ErrAlreadyExists
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	stamp(&f.CreatedAt)
	stamp(&f.UpdatedAt)
	r.st.fulfillments[f.SaleOrderID] = *f
	return nil
}

func (r *fulfillmentRepo) GetBySaleOrderID(_ context.Context, orderID uuid.UUID) (fulfillment.Fulfillment, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	f, ok := r.st.fulfillments[orderID]
	if !ok {
		return fulfillment.Fulfillment{}, salesflow_errors.ErrNotFound
	}
	return f, nil
}

func (r *fulfillmentRepo) Update(_ context.Context, f *fulfillment.Fulfillment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	existing, ok := r.st.fulfillments[f.SaleOrderID]
	if !ok || existing.ID != f.ID {
		return salesflow_errors.ErrNotFound
	}
	r.st.fulfillments[f.SaleOrderID] = *f
	return nil
}

func (r *fulfillmentRepo) AppendTransition(_ context.Context, l *fulfillment.TransitionLog) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	stamp(&l.OccurredAt)
	r.st.fulfilLogs = append(r.st.fulfilLogs, *l)
	return nil
}

func (r *fulfillmentRepo) ListTransitions(_ context.Context, fulfillmentID uuid.UUID) ([]fulfillment.TransitionLog, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var out []fulfillment.TransitionLog
	for _, l := range r.st.fulfilLogs {
		if l.FulfillmentID == fulfillmentID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
