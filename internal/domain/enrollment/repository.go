package enrollment

import (
	"context"
	"time"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error

	// Batch operations
	ListBatches(ctx context.Context, openOnly bool) ([]Batch, error)
	GetBatch(ctx context.Context, batchTime string) (*Batch, error)
	// LockBatches row-locks the named batches in batch_time order for the
	// rest of the transaction. Unknown batch times are absent from the map.
	LockBatches(ctx context.Context, batchTimes ...string) (map[string]Batch, error)
	// ReserveSeat increments occupancy only while it is below the ceiling
	// and returns ErrBatchFull otherwise.
	ReserveSeat(ctx context.Context, batchTime string) error
	// ReleaseSeat decrements occupancy, never below zero.
	ReleaseSeat(ctx context.Context, batchTime string) error

	// Member operations
	MemberEmailExists(ctx context.Context, email string) (bool, error)
	// LockMember row-locks the member matching email and name for the rest
	// of the transaction and returns ErrMemberNotFound when none matches.
	LockMember(ctx context.Context, email, name string) (*Member, error)
	CreateMember(ctx context.Context, member *Member) error

	// Enrollment operations
	GetEnrollment(ctx context.Context, memberID int64, month time.Time) (*Enrollment, error)
	LockEnrollment(ctx context.Context, enrollmentID int64) (*Enrollment, error)
	CreateEnrollment(ctx context.Context, enrollment *Enrollment) error
	UpdateEnrollment(ctx context.Context, enrollment *Enrollment) error

	// Payment operations
	CreatePayment(ctx context.Context, payment *Payment) error

	// Reports
	ListUnpaid(ctx context.Context) ([]UnpaidEnrollment, error)
	ListOutstandingDues(ctx context.Context) ([]OutstandingDues, error)
	GetCurrentBatch(ctx context.Context, memberID int64, month time.Time) (*CurrentBatch, error)
}
