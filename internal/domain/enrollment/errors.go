package enrollment

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrBatchNotFound        = errors.New("batch not found")
	ErrBatchFull            = errors.New("batch is full")
	ErrEmailTaken           = errors.New("email already registered")
	ErrMemberNotFound       = errors.New("member not found")
	ErrEnrollmentNotFound   = errors.New("enrollment not found")
	ErrDuplicateEnrollment  = errors.New("enrollment for month already exists")
	ErrSameBatch            = errors.New("already enrolled in batch")
	ErrAlreadyPaid          = errors.New("enrollment already paid")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

type InsufficientPaymentError struct {
	Required decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return "insufficient payment amount, required " + e.Required.StringFixed(2)
}

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}
