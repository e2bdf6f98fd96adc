package inmemory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
)

// tx operates on state while the owning Store's mutex is held.
type tx struct {
	st *state
}

func (t *tx) Transaction(ctx context.Context, fn func(enrollmentdomain.Repository) error) error {
	return fn(t)
}

func (t *tx) Ping(ctx context.Context) error {
	return nil
}

// Batch operations

func (t *tx) ListBatches(ctx context.Context, openOnly bool) ([]enrollmentdomain.Batch, error) {
	items := make([]enrollmentdomain.Batch, 0, len(t.st.batches))
	for _, batch := range t.st.batches {
		if openOnly && !batch.HasFreeSeat() {
			continue
		}
		items = append(items, batch)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].BatchTime < items[j].BatchTime })
	return items, nil
}

func (t *tx) GetBatch(ctx context.Context, batchTime string) (*enrollmentdomain.Batch, error) {
	batch, ok := t.st.batches[batchTime]
	if !ok {
		return nil, enrollmentdomain.ErrBatchNotFound
	}
	return &batch, nil
}

func (t *tx) LockBatches(ctx context.Context, batchTimes ...string) (map[string]enrollmentdomain.Batch, error) {
	result := make(map[string]enrollmentdomain.Batch, len(batchTimes))
	for _, batchTime := range batchTimes {
		if batch, ok := t.st.batches[batchTime]; ok {
			result[batchTime] = batch
		}
	}
	return result, nil
}

func (t *tx) ReserveSeat(ctx context.Context, batchTime string) error {
	batch, ok := t.st.batches[batchTime]
	if !ok || !batch.HasFreeSeat() {
		return enrollmentdomain.ErrBatchFull
	}
	batch.CurrentCapacity++
	t.st.batches[batchTime] = batch
	return nil
}

func (t *tx) ReleaseSeat(ctx context.Context, batchTime string) error {
	batch, ok := t.st.batches[batchTime]
	if !ok || batch.CurrentCapacity == 0 {
		return nil
	}
	batch.CurrentCapacity--
	t.st.batches[batchTime] = batch
	return nil
}

// Member operations

func (t *tx) MemberEmailExists(ctx context.Context, email string) (bool, error) {
	for _, member := range t.st.members {
		if strings.EqualFold(member.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) LockMember(ctx context.Context, email, name string) (*enrollmentdomain.Member, error) {
	for _, member := range t.st.members {
		if member.Email == email && member.Name == name {
			found := member
			return &found, nil
		}
	}
	return nil, enrollmentdomain.ErrMemberNotFound
}

func (t *tx) CreateMember(ctx context.Context, member *enrollmentdomain.Member) error {
	taken, _ := t.MemberEmailExists(ctx, member.Email)
	if taken {
		return enrollmentdomain.ErrEmailTaken
	}
	member.ID = t.st.id()
	member.CreatedAt = time.Now().UTC()
	t.st.members[member.ID] = *member
	return nil
}

// Enrollment operations

func (t *tx) GetEnrollment(ctx context.Context, memberID int64, month time.Time) (*enrollmentdomain.Enrollment, error) {
	for _, enrollment := range t.st.enrollments {
		if enrollment.MemberID == memberID && enrollment.Month.Equal(month) {
			found := enrollment
			return &found, nil
		}
	}
	return nil, enrollmentdomain.ErrEnrollmentNotFound
}

func (t *tx) LockEnrollment(ctx context.Context, enrollmentID int64) (*enrollmentdomain.Enrollment, error) {
	enrollment, ok := t.st.enrollments[enrollmentID]
	if !ok {
		return nil, enrollmentdomain.ErrEnrollmentNotFound
	}
	return &enrollment, nil
}

func (t *tx) CreateEnrollment(ctx context.Context, enrollment *enrollmentdomain.Enrollment) error {
	if _, ok := t.st.members[enrollment.MemberID]; !ok {
		return enrollmentdomain.ErrMemberNotFound
	}
	if _, ok := t.st.batches[enrollment.BatchTime]; !ok {
		return enrollmentdomain.ErrBatchNotFound
	}
	if _, err := t.GetEnrollment(ctx, enrollment.MemberID, enrollment.Month); err == nil {
		return enrollmentdomain.ErrDuplicateEnrollment
	}

	now := time.Now().UTC()
	enrollment.ID = t.st.id()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	t.st.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (t *tx) UpdateEnrollment(ctx context.Context, enrollment *enrollmentdomain.Enrollment) error {
	existing, ok := t.st.enrollments[enrollment.ID]
	if !ok {
		return enrollmentdomain.ErrEnrollmentNotFound
	}
	existing.BatchTime = enrollment.BatchTime
	existing.Amount = enrollment.Amount
	existing.PaymentStatus = enrollment.PaymentStatus
	existing.UpdatedAt = enrollment.UpdatedAt
	t.st.enrollments[enrollment.ID] = existing
	return nil
}

// Payment operations

func (t *tx) CreatePayment(ctx context.Context, payment *enrollmentdomain.Payment) error {
	if _, ok := t.st.enrollments[payment.EnrollmentID]; !ok {
		return enrollmentdomain.ErrEnrollmentNotFound
	}
	payment.ID = t.st.id()
	payment.PaymentDate = time.Now().UTC()
	t.st.payments[payment.ID] = *payment
	return nil
}

// Reports

func (t *tx) ListUnpaid(ctx context.Context) ([]enrollmentdomain.UnpaidEnrollment, error) {
	items := make([]enrollmentdomain.UnpaidEnrollment, 0)
	for _, enrollment := range t.st.enrollments {
		if enrollment.PaymentStatus != enrollmentdomain.PaymentPending {
			continue
		}
		member := t.st.members[enrollment.MemberID]
		items = append(items, enrollmentdomain.UnpaidEnrollment{
			Name:          member.Name,
			Email:         member.Email,
			BatchTime:     enrollment.BatchTime,
			Amount:        enrollment.Amount,
			PaymentStatus: enrollment.PaymentStatus,
			Month:         enrollment.Month,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Month.Equal(items[j].Month) {
			return items[i].Month.After(items[j].Month)
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (t *tx) ListOutstandingDues(ctx context.Context) ([]enrollmentdomain.OutstandingDues, error) {
	byMember := make(map[int64]*enrollmentdomain.OutstandingDues)
	for _, enrollment := range t.st.enrollments {
		if enrollment.PaymentStatus != enrollmentdomain.PaymentPending {
			continue
		}
		dues, ok := byMember[enrollment.MemberID]
		if !ok {
			member := t.st.members[enrollment.MemberID]
			dues = &enrollmentdomain.OutstandingDues{
				MemberID:  member.ID,
				Name:      member.Name,
				Email:     member.Email,
				TotalDues: decimal.Zero,
			}
			byMember[enrollment.MemberID] = dues
		}
		dues.PendingMonths++
		dues.TotalDues = dues.TotalDues.Add(enrollment.Amount)
	}

	items := make([]enrollmentdomain.OutstandingDues, 0, len(byMember))
	for _, dues := range byMember {
		items = append(items, *dues)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].TotalDues.Equal(items[j].TotalDues) {
			return items[i].TotalDues.GreaterThan(items[j].TotalDues)
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (t *tx) GetCurrentBatch(ctx context.Context, memberID int64, month time.Time) (*enrollmentdomain.CurrentBatch, error) {
	enrollment, err := t.GetEnrollment(ctx, memberID, month)
	if err != nil {
		return nil, err
	}
	batch, ok := t.st.batches[enrollment.BatchTime]
	if !ok {
		return nil, enrollmentdomain.ErrEnrollmentNotFound
	}
	return &enrollmentdomain.CurrentBatch{
		BatchTime:       enrollment.BatchTime,
		PaymentStatus:   enrollment.PaymentStatus,
		Month:           enrollment.Month,
		MonthlyFee:      batch.MonthlyFee,
		CurrentCapacity: batch.CurrentCapacity,
		MaxCapacity:     batch.MaxCapacity,
	}, nil
}
