package memory

import (
	"context"
	"sort"
	"time"

	"salesflow/internal/domain/audit"
	"salesflow/internal/domain/inventory"
	"salesflow/internal/domain/notification"
	"salesflow/internal/domain/user"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
)

type stockRepo struct {
	st *state
}

func (r *stockRepo) CreateStore(_ context.Context, s *inventory.Store) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, exists := r.st.stores[s.ID]; exists {
		return salesflow_errors.ErrAlreadyExists
	}
	stamp(&s.CreatedAt)
	r.st.stores[s.ID] = *s
	return nil
}

func (r *stockRepo) GetStore(_ context.Context, id uuid.UUID) (inventory.Store, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	s, ok := r.st.stores[id]
	if !ok {
		return inventory.Store{}, salesflow_errors.ErrNotFound
	}
	return s, nil
}

func (r *stockRepo) Reserve(_ context.Context, storeID, productVariantID uuid.UUID, qty int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	key := stockKey{storeID: storeID, variantID: productVariantID}
	row, ok := r.st.stock[key]
	if !ok {
		row = inventory.Stock{ID: uuid.New(), StoreID: storeID, ProductVariantID: productVariantID}
	}
	row.Reserved += qty
	row.UpdatedAt = time.Now().UTC()
	r.st.stock[key] = row
	return nil
}

func (r *stockRepo) Release(_ context.Context, storeID, productVariantID uuid.UUID, qty int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	key := stockKey{storeID: storeID, variantID: productVariantID}
	row, ok := r.st.stock[key]
	if !ok {
		return salesflow_errors.ErrNotFound
	}
	row.Quantity = max(row.Quantity-qty, 0)
	row.Reserved = max(row.Reserved-qty, 0)
	row.UpdatedAt = time.Now().UTC()
	r.st.stock[key] = row
	return nil
}

func (r *stockRepo) Get(_ context.Context, storeID, productVariantID uuid.UUID) (inventory.Stock, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	row, ok := r.st.stock[stockKey{storeID: storeID, variantID: productVariantID}]
	if !ok {
		return inventory.Stock{}, salesflow_errors.ErrNotFound
	}
	return row, nil
}

func (r *stockRepo) Upsert(_ context.Context, s *inventory.Stock) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	key := stockKey{storeID: s.StoreID, variantID: s.ProductVariantID}
	if existing, ok := r.st.stock[key]; ok {
		s.ID = existing.ID
	} else if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	stamp(&s.UpdatedAt)
	r.st.stock[key] = *s
	return nil
}

type userRepo struct {
	st *state
}

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, existing := range r.st.users {
		if existing.ID == u.ID || existing.Email == u.Email {
			return salesflow_errors.ErrAlreadyExists
		}
	}
	stamp(&u.CreatedAt)
	stamp(&u.UpdatedAt)
	r.st.users[u.ID] = *u
	return nil
}

func (r *userRepo) ExistingIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	found := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.st.users[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

type notificationRepo struct {
	st *state
}

func (r *notificationRepo) CreateMany(_ context.Context, items []notification.Notification) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		stamp(&items[i].CreatedAt)
		r.st.notifications = append(r.st.notifications, items[i])
	}
	return nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]notification.Notification, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var out []notification.Notification
	for _, n := range r.st.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type auditRepo struct {
	st *state
}

func (r *auditRepo) Create(_ context.Context, rec *audit.Record) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	stamp(&rec.CreatedAt)
	r.st.audits = append(r.st.audits, *rec)
	return nil
}

func (r *auditRepo) ListByEventType(_ context.Context, eventType string) ([]audit.Record, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var out []audit.Record
	for _, rec := range r.st.audits {
		if rec.EventType == eventType {
			out = append(out, rec)
		}
	}
	return out, nil
}
