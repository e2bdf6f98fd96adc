package enrollment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo   Repository
	now    func() time.Time
	loc    *time.Location
	txnIDs func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the zone used to decide the current calendar month.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithTransactionIDs(next func() string) Option {
	return func(s *Service) {
		s.txnIDs = next
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		now:    time.Now,
		loc:    time.UTC,
		txnIDs: NewTransactionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTransactionID returns a payment reference that stays unique across
// concurrent payments.
func NewTransactionID() string {
	return "TXN-" + uuid.NewString()
}

func (s *Service) CurrentMonth() time.Time {
	return MonthStart(s.now().In(s.loc))
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Enrollment

func (s *Service) Enroll(ctx context.Context, input EnrollInput) (*EnrollResult, error) {
	input, err := normalizeEnrollInput(input)
	if err != nil {
		return nil, err
	}

	month := s.CurrentMonth()
	var result EnrollResult

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		locked, err := tx.LockBatches(ctx, input.BatchTime)
		if err != nil {
			return err
		}
		batch, ok := locked[input.BatchTime]
		if !ok {
			return ErrBatchNotFound
		}
		if !batch.HasFreeSeat() {
			return ErrBatchFull
		}
		if input.PaymentAmount.LessThan(batch.MonthlyFee) {
			return &InsufficientPaymentError{Required: batch.MonthlyFee}
		}

		taken, err := tx.MemberEmailExists(ctx, input.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		member := Member{
			Name:    input.Name,
			Email:   input.Email,
			Address: input.Address,
			Phone:   input.Phone,
		}
		if err := tx.CreateMember(ctx, &member); err != nil {
			return err
		}

		enrollment := Enrollment{
			MemberID:      member.ID,
			BatchTime:     batch.BatchTime,
			Month:         month,
			PaymentStatus: input.PaymentStatus,
			Amount:        input.PaymentAmount,
		}
		if err := tx.CreateEnrollment(ctx, &enrollment); err != nil {
			return err
		}

		var payment *Payment
		if enrollment.PaymentStatus == PaymentPaid {
			payment = &Payment{
				EnrollmentID:  enrollment.ID,
				Amount:        input.PaymentAmount,
				TransactionID: s.txnIDs(),
			}
			if err := tx.CreatePayment(ctx, payment); err != nil {
				return err
			}
		}

		if err := tx.ReserveSeat(ctx, batch.BatchTime); err != nil {
			return err
		}

		result = EnrollResult{Member: member, Enrollment: enrollment, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// ChangeBatch moves a member to another batch starting next calendar month.
// The seat moves immediately: the source batch releases one and the target
// takes one, and next month's enrollment is left pending at the target fee.
func (s *Service) ChangeBatch(ctx context.Context, input ChangeBatchInput) (*ChangeBatchResult, error) {
	input, err := normalizeChangeBatchInput(input)
	if err != nil {
		return nil, err
	}

	current := s.CurrentMonth()
	next := NextMonth(current)
	var result ChangeBatchResult

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		target, err := tx.GetBatch(ctx, input.NewBatchTime)
		if err != nil {
			return err
		}
		if !target.HasFreeSeat() {
			return ErrBatchFull
		}

		// The member lock serializes batch changes for one member, so the
		// enrollment reads below always see the last committed move.
		member, err := tx.LockMember(ctx, input.Email, input.Name)
		if err != nil {
			return err
		}

		currentEnrollment, err := tx.GetEnrollment(ctx, member.ID, current)
		if err != nil {
			return err
		}

		nextEnrollment, err := tx.GetEnrollment(ctx, member.ID, next)
		switch {
		case errors.Is(err, ErrEnrollmentNotFound):
			nextEnrollment = nil
		case err != nil:
			return err
		default:
			// PayEnrollment flips the status under this row lock.
			nextEnrollment, err = tx.LockEnrollment(ctx, nextEnrollment.ID)
			if err != nil {
				return err
			}
		}

		source := currentEnrollment.BatchTime
		if nextEnrollment != nil {
			if nextEnrollment.PaymentStatus == PaymentPaid {
				return ErrAlreadyPaid
			}
			source = nextEnrollment.BatchTime
		}
		if source == target.BatchTime {
			return ErrSameBatch
		}

		locked, err := tx.LockBatches(ctx, source, target.BatchTime)
		if err != nil {
			return err
		}
		lockedTarget, ok := locked[target.BatchTime]
		if !ok {
			return ErrBatchNotFound
		}
		if !lockedTarget.HasFreeSeat() {
			return ErrBatchFull
		}

		if err := tx.ReleaseSeat(ctx, source); err != nil {
			return err
		}
		if err := tx.ReserveSeat(ctx, lockedTarget.BatchTime); err != nil {
			return err
		}

		created := nextEnrollment == nil
		if created {
			nextEnrollment = &Enrollment{
				MemberID: member.ID,
				Month:    next,
			}
		}
		nextEnrollment.BatchTime = lockedTarget.BatchTime
		nextEnrollment.Amount = lockedTarget.MonthlyFee
		nextEnrollment.PaymentStatus = PaymentPending
		nextEnrollment.UpdatedAt = s.now().UTC()

		if created {
			err = tx.CreateEnrollment(ctx, nextEnrollment)
		} else {
			err = tx.UpdateEnrollment(ctx, nextEnrollment)
		}
		if err != nil {
			return err
		}

		result = ChangeBatchResult{
			Enrollment:        *nextEnrollment,
			PreviousBatchTime: source,
			Created:           created,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *Service) PayEnrollment(ctx context.Context, input PayInput) (*PayResult, error) {
	if input.EnrollmentID <= 0 {
		return nil, ErrEnrollmentNotFound
	}
	if !input.Amount.IsPositive() {
		return nil, &MissingFieldsError{Fields: []string{"payment_amount"}}
	}

	var result PayResult
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		enrollment, err := tx.LockEnrollment(ctx, input.EnrollmentID)
		if err != nil {
			return err
		}
		if enrollment.PaymentStatus == PaymentPaid {
			return ErrAlreadyPaid
		}
		if input.Amount.LessThan(enrollment.Amount) {
			return &InsufficientPaymentError{Required: enrollment.Amount}
		}

		enrollment.PaymentStatus = PaymentPaid
		enrollment.UpdatedAt = s.now().UTC()
		if err := tx.UpdateEnrollment(ctx, enrollment); err != nil {
			return err
		}

		payment := Payment{
			EnrollmentID:  enrollment.ID,
			Amount:        input.Amount,
			TransactionID: s.txnIDs(),
		}
		if err := tx.CreatePayment(ctx, &payment); err != nil {
			return err
		}

		result = PayResult{Enrollment: *enrollment, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Reports

func (s *Service) ListBatches(ctx context.Context, openOnly bool) ([]Batch, error) {
	return s.repo.ListBatches(ctx, openOnly)
}

func (s *Service) ListUnpaid(ctx context.Context) ([]UnpaidEnrollment, error) {
	return s.repo.ListUnpaid(ctx)
}

func (s *Service) ListOutstandingDues(ctx context.Context) ([]OutstandingDues, error) {
	return s.repo.ListOutstandingDues(ctx)
}

func (s *Service) CurrentBatch(ctx context.Context, memberID int64) (*CurrentBatch, error) {
	if memberID <= 0 {
		return nil, ErrEnrollmentNotFound
	}
	return s.repo.GetCurrentBatch(ctx, memberID, s.CurrentMonth())
}

// Validation helpers

func normalizeEnrollInput(input EnrollInput) (EnrollInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	if input.Address != nil {
		address := strings.TrimSpace(*input.Address)
		if address == "" {
			input.Address = nil
		} else {
			input.Address = &address
		}
	}

	var missing []string
	if input.Name == "" {
		missing = append(missing, "name")
	}
	if input.Email == "" {
		missing = append(missing, "email")
	}
	if input.Phone == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(input.BatchTime) == "" {
		missing = append(missing, "batch_time")
	}
	if input.PaymentAmount.IsZero() {
		missing = append(missing, "payment_amount")
	}
	if len(missing) > 0 {
		return input, &MissingFieldsError{Fields: missing}
	}

	batchTime, ok := NormalizeBatchTime(input.BatchTime)
	if !ok {
		return input, ErrBatchNotFound
	}
	input.BatchTime = batchTime

	if input.PaymentStatus == "" {
		input.PaymentStatus = PaymentPending
	}
	if !input.PaymentStatus.Valid() {
		return input, ErrInvalidPaymentStatus
	}

	return input, nil
}

func normalizeChangeBatchInput(input ChangeBatchInput) (ChangeBatchInput, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	var missing []string
	if input.Email == "" {
		missing = append(missing, "email")
	}
	if input.Name == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(input.NewBatchTime) == "" {
		missing = append(missing, "new_batch_time")
	}
	if len(missing) > 0 {
		return input, &MissingFieldsError{Fields: missing}
	}

	batchTime, ok := NormalizeBatchTime(input.NewBatchTime)
	if !ok {
		return input, ErrBatchNotFound
	}
	input.NewBatchTime = batchTime

	return input, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
