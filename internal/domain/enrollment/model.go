package enrollment

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid
}

// Member is created once, at first enrollment, and never deleted.
type Member struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"uniqueIndex:members_email_key;not null"`
	Address   *string   `gorm:"type:text"`
	Phone     string    `gorm:"size:15;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Member) TableName() string { return "members" }

// Batch is a fixed daily time slot. CurrentCapacity stays within [0, MaxCapacity].
type Batch struct {
	ID              int64           `gorm:"primaryKey"`
	BatchTime       string          `gorm:"size:8;uniqueIndex;not null"`
	CurrentCapacity int             `gorm:"not null;default:0"`
	MaxCapacity     int             `gorm:"not null"`
	MonthlyFee      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
}

func (Batch) TableName() string { return "batches" }

func (b Batch) HasFreeSeat() bool {
	return b.CurrentCapacity < b.MaxCapacity
}

// Enrollment binds one member to one batch for one calendar month. Month is
// always the first day of the month at UTC midnight.
type Enrollment struct {
	ID            int64           `gorm:"primaryKey"`
	MemberID      int64           `gorm:"not null"`
	BatchTime     string          `gorm:"size:8;not null"`
	Month         time.Time       `gorm:"type:date;not null"`
	PaymentStatus PaymentStatus   `gorm:"size:16;not null;default:pending"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
}

func (Enrollment) TableName() string { return "enrollments" }

type Payment struct {
	ID            int64           `gorm:"primaryKey"`
	EnrollmentID  int64           `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	PaymentDate   time.Time       `gorm:"autoCreateTime"`
	TransactionID string          `gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// Read models

type UnpaidEnrollment struct {
	Name          string
	Email         string
	BatchTime     string
	Amount        decimal.Decimal
	PaymentStatus PaymentStatus
	Month         time.Time
}

type OutstandingDues struct {
	MemberID      int64
	Name          string
	Email         string
	PendingMonths int64
	TotalDues     decimal.Decimal
}

type CurrentBatch struct {
	BatchTime       string
	PaymentStatus   PaymentStatus
	Month           time.Time
	MonthlyFee      decimal.Decimal
	CurrentCapacity int
	MaxCapacity     int
}

// Inputs and results

type EnrollInput struct {
	Name          string
	Email         string
	Address       *string
	Phone         string
	BatchTime     string
	PaymentAmount decimal.Decimal
	// PaymentStatus defaults to pending when empty.
	PaymentStatus PaymentStatus
}

type EnrollResult struct {
	Member     Member
	Enrollment Enrollment
	Payment    *Payment
}

type ChangeBatchInput struct {
	Email        string
	Name         string
	NewBatchTime string
}

type ChangeBatchResult struct {
	Enrollment        Enrollment
	PreviousBatchTime string
	Created           bool
}

type PayInput struct {
	EnrollmentID int64
	Amount       decimal.Decimal
}

type PayResult struct {
	Enrollment Enrollment
	Payment    Payment
}

// DefaultBatches is the slot set seeded at bootstrap.
func DefaultBatches() []Batch {
	fee := decimal.NewFromInt(1000)
	times := []string{"06:00:00", "07:00:00", "08:00:00", "17:00:00", "18:00:00"}

	batches := make([]Batch, 0, len(times))
	for _, t := range times {
		batches = append(batches, Batch{
			BatchTime:   t,
			MaxCapacity: 30,
			MonthlyFee:  fee,
		})
	}
	return batches
}
