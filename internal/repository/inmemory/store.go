package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
)

// Store keeps the whole ledger in memory. Transactions are serialised by a
// single mutex and roll back by restoring a snapshot taken at Begin.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	members     map[int64]enrollmentdomain.Member
	batches     map[string]enrollmentdomain.Batch
	enrollments map[int64]enrollmentdomain.Enrollment
	payments    map[int64]enrollmentdomain.Payment
	nextID      int64
}

func New() *Store {
	return &Store{state: newState()}
}

// NewSeeded returns a store holding the default batch slots.
func NewSeeded() *Store {
	s := New()
	s.SeedBatches(enrollmentdomain.DefaultBatches()...)
	return s
}

func newState() *state {
	return &state{
		members:     make(map[int64]enrollmentdomain.Member),
		batches:     make(map[string]enrollmentdomain.Batch),
		enrollments: make(map[int64]enrollmentdomain.Enrollment),
		payments:    make(map[int64]enrollmentdomain.Payment),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.members {
		c.members[k] = v
	}
	for k, v := range st.batches {
		c.batches[k] = v
	}
	for k, v := range st.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range st.payments {
		c.payments[k] = v
	}
	c.nextID = st.nextID
	return c
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// SeedBatches inserts batches that are not present yet.
func (s *Store) SeedBatches(batches ...enrollmentdomain.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, batch := range batches {
		if _, ok := s.state.batches[batch.BatchTime]; ok {
			continue
		}
		batch.ID = s.state.id()
		s.state.batches[batch.BatchTime] = batch
	}
}

// Snapshot accessors used by tests.

func (s *Store) Batch(batchTime string) (enrollmentdomain.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.state.batches[batchTime]
	return batch, ok
}

func (s *Store) Members() []enrollmentdomain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]enrollmentdomain.Member, 0, len(s.state.members))
	for _, m := range s.state.members {
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *Store) Enrollments() []enrollmentdomain.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]enrollmentdomain.Enrollment, 0, len(s.state.enrollments))
	for _, e := range s.state.enrollments {
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *Store) Payments() []enrollmentdomain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]enrollmentdomain.Payment, 0, len(s.state.payments))
	for _, p := range s.state.payments {
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Repository implementation. Every exported call runs as its own
// transaction; tx is the view handed to Transaction callbacks.

func (s *Store) Transaction(ctx context.Context, fn func(enrollmentdomain.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", enrollmentdomain.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&tx{st: s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", enrollmentdomain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) ListBatches(ctx context.Context, openOnly bool) ([]enrollmentdomain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).ListBatches(ctx, openOnly)
}

func (s *Store) GetBatch(ctx context.Context, batchTime string) (*enrollmentdomain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).GetBatch(ctx, batchTime)
}

func (s *Store) LockBatches(ctx context.Context, batchTimes ...string) (map[string]enrollmentdomain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).LockBatches(ctx, batchTimes...)
}

func (s *Store) ReserveSeat(ctx context.Context, batchTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).ReserveSeat(ctx, batchTime)
}

func (s *Store) ReleaseSeat(ctx context.Context, batchTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).ReleaseSeat(ctx, batchTime)
}

func (s *Store) MemberEmailExists(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).MemberEmailExists(ctx, email)
}

func (s *Store) LockMember(ctx context.Context, email, name string) (*enrollmentdomain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).LockMember(ctx, email, name)
}

func (s *Store) CreateMember(ctx context.Context, member *enrollmentdomain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).CreateMember(ctx, member)
}

func (s *Store) GetEnrollment(ctx context.Context, memberID int64, month time.Time) (*enrollmentdomain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).GetEnrollment(ctx, memberID, month)
}

func (s *Store) LockEnrollment(ctx context.Context, enrollmentID int64) (*enrollmentdomain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).LockEnrollment(ctx, enrollmentID)
}

func (s *Store) CreateEnrollment(ctx context.Context, enrollment *enrollmentdomain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).CreateEnrollment(ctx, enrollment)
}

func (s *Store) UpdateEnrollment(ctx context.Context, enrollment *enrollmentdomain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).UpdateEnrollment(ctx, enrollment)
}

func (s *Store) CreatePayment(ctx context.Context, payment *enrollmentdomain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).CreatePayment(ctx, payment)
}

func (s *Store) ListUnpaid(ctx context.Context) ([]enrollmentdomain.UnpaidEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).ListUnpaid(ctx)
}

func (s *Store) ListOutstandingDues(ctx context.Context) ([]enrollmentdomain.OutstandingDues, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).ListOutstandingDues(ctx)
}

func (s *Store) GetCurrentBatch(ctx context.Context, memberID int64, month time.Time) (*enrollmentdomain.CurrentBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.state}).GetCurrentBatch(ctx, memberID, month)
}
