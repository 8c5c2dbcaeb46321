package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"salesflow/internal/domain/audit"
	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/inventory"
	"salesflow/internal/domain/notification"
	"salesflow/internal/domain/outbox"
	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
	"salesflow/internal/repository"

	"github.com/google/uuid"
)

type stockKey struct {
	storeID   uuid.UUID
	variantID uuid.UUID
}

type state struct {
	mu sync.RWMutex

	outbox    map[uuid.UUID]outbox.OutboxEvent
	outboxSeq map[uuid.UUID]int64
	seq       int64

	orders        map[uuid.UUID]sale.SaleOrder
	payments      map[uuid.UUID]sale.Payment
	consumerSales map[uuid.UUID]sale.ConsumerSale
	resellerSales map[uuid.UUID]sale.ResellerSale
	profiles      map[uuid.UUID]user.ResellerProfile
	saleLogs      []sale.TransitionLog

	fulfillments map[uuid.UUID]fulfillment.Fulfillment
	fulfilLogs   []fulfillment.TransitionLog

	stores map[uuid.UUID]inventory.Store
	stock  map[stockKey]inventory.Stock

	users         map[uuid.UUID]user.User
	notifications []notification.Notification
	audits        []audit.Record
}

func newState() *state {
	return &state{
		outbox:        map[uuid.UUID]outbox.OutboxEvent{},
		outboxSeq:     map[uuid.UUID]int64{},
		orders:        map[uuid.UUID]sale.SaleOrder{},
		payments:      map[uuid.UUID]sale.Payment{},
		consumerSales: map[uuid.UUID]sale.ConsumerSale{},
		resellerSales: map[uuid.UUID]sale.ResellerSale{},
		profiles:      map[uuid.UUID]user.ResellerProfile{},
		fulfillments:  map[uuid.UUID]fulfillment.Fulfillment{},
		stores:        map[uuid.UUID]inventory.Store{},
		stock:         map[stockKey]inventory.Stock{},
		users:         map[uuid.UUID]user.User{},
	}
}

func (st *state) snapshot() *state {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return &state{
		outbox:        maps.Clone(st.outbox),
		outboxSeq:     maps.Clone(st.outboxSeq),
		seq:           st.seq,
		orders:        maps.Clone(st.orders),
		payments:      maps.Clone(st.payments),
		consumerSales: maps.Clone(st.consumerSales),
		resellerSales: maps.Clone(st.resellerSales),
		profiles:      maps.Clone(st.profiles),
		saleLogs:      append([]sale.TransitionLog(nil), st.saleLogs...),
		fulfillments:  maps.Clone(st.fulfillments),
		fulfilLogs:    append([]fulfillment.TransitionLog(nil), st.fulfilLogs...),
		stores:        maps.Clone(st.stores),
		stock:         maps.Clone(st.stock),
		users:         maps.Clone(st.users),
		notifications: append([]notification.Notification(nil), st.notifications...),
		audits:        append([]audit.Record(nil), st.audits...),
	}
}

func (st *state) restore(snap *state) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.outbox = snap.outbox
	st.outboxSeq = snap.outboxSeq
	st.seq = snap.seq
	st.orders = snap.orders
	st.payments = snap.payments
	st.consumerSales = snap.consumerSales
	st.resellerSales = snap.resellerSales
	st.profiles = snap.profiles
	st.saleLogs = snap.saleLogs
	st.fulfillments = snap.fulfillments
	st.fulfilLogs = snap.fulfilLogs
	st.stores = snap.stores
	st.stock = snap.stock
	st.users = snap.users
	st.notifications = snap.notifications
	st.audits = snap.audits
}

// Store implements repository.Store in memory for tests and local demos.
// Transactions are serialized and roll back by restoring a snapshot, so writes made
// outside a transaction while a failing one runs are lost with it.
type Store struct {
	st   *state
	txMu *sync.Mutex
	inTx bool
}

func New() *Store {
	return &Store{st: newState(), txMu: &sync.Mutex{}}
}

func (s *Store) Outbox() repository.OutboxRepository { return &outboxRepo{st: s.st} }
func (s *Store) Sales() repository.SaleRepository { return &saleRepo{st: s.st} }
func (s *Store) Fulfillments() repository.FulfillmentRepository { return &fulfillmentRepo{st: s.st} }
func (s *Store) Stock() repository.StockRepository { return &stockRepo{st: s.st} }
func (s *Store) Users() repository.UserRepository { return &userRepo{st: s.st} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{st: s.st} }
func (s *Store) Audit() repository.AuditRepository { return &auditRepo{st: s.st} }

func (s *Store) WithinTx(_ context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		snap := s.st.snapshot()
		if err := fn(s); err != nil {
			s.st.restore(snap)
			return err
		}
		return nil
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.st.snapshot()
	tx := &Store{st: s.st, txMu: s.txMu, inTx: true}
	if err := fn(tx); err != nil {
		s.st.restore(snap)
		return err
	}
	return nil
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}
