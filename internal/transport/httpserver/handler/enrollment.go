package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
	"gym-batches-go/internal/metrics"
)

const (
	opListBatches     = "list_batches"
	opEnroll          = "enroll"
	opListUnpaid      = "list_unpaid"
	opOutstandingDues = "outstanding_dues"
	opChangeBatch     = "change_batch"
	opCurrentBatch    = "current_batch"
	opPayEnrollment   = "pay_enrollment"
)

// Requests

type enrollRequest struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Email         string           `json:"email" validate:"required,max=255"`
	Address       *string          `json:"address"`
	Phone         string           `json:"phone" validate:"required,max=15"`
	BatchTime     string           `json:"batch_time" validate:"required"`
	PaymentAmount *decimal.Decimal `json:"payment_amount" validate:"required"`
	PaymentStatus string           `json:"payment_status" validate:"omitempty,oneof=pending paid"`
}

type changeBatchRequest struct {
	Email        string `json:"email" validate:"required"`
	Name         string `json:"name" validate:"required"`
	NewBatchTime string `json:"new_batch_time" validate:"required"`
}

type payEnrollmentRequest struct {
	PaymentAmount *decimal.Decimal `json:"payment_amount" validate:"required"`
}

// Responses

type batchResponse struct {
	BatchTime       string  `json:"batch_time"`
	CurrentCapacity int     `json:"current_capacity"`
	MaxCapacity     int     `json:"max_capacity"`
	MonthlyFee      float64 `json:"monthly_fee"`
}

type enrollResponse struct {
	Message       string `json:"message"`
	MemberID      int64  `json:"memberId"`
	EnrollmentID  int64  `json:"enrollmentId"`
	BatchTime     string `json:"batch_time"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type unpaidResponse struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	BatchTime     string  `json:"batch_time"`
	Amount        float64 `json:"amount"`
	PaymentStatus string  `json:"payment_status"`
	Month         string  `json:"month"`
}

type outstandingDuesResponse struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	PendingMonths int64   `json:"pending_months"`
	TotalDues     float64 `json:"total_dues"`
}

type changeBatchResponse struct {
	Message      string `json:"message"`
	NewBatchTime string `json:"new_batch_time"`
	Month        string `json:"month"`
}

type currentBatchResponse struct {
	BatchTime       string  `json:"batch_time"`
	PaymentStatus   string  `json:"payment_status"`
	Month           string  `json:"month"`
	MonthlyFee      float64 `json:"monthly_fee"`
	CurrentCapacity int     `json:"current_capacity"`
	MaxCapacity     int     `json:"max_capacity"`
}

type payEnrollmentResponse struct {
	Message       string `json:"message"`
	EnrollmentID  int64  `json:"enrollmentId"`
	TransactionID string `json:"transaction_id"`
}

func (h *Handlers) ListAvailableBatches(w http.ResponseWriter, r *http.Request) {
	openOnly, err := parseBoolParam(r.URL.Query().Get("open_only"), false)
	if err != nil {
		h.log.BusinessError("enrollment.list_batches: invalid open_only", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid open_only")
		return
	}

	items, err := h.Enrollment.ListBatches(r.Context(), openOnly)
	if err != nil {
		h.writeDomainError(w, opListBatches, err)
		return
	}

	response := make([]batchResponse, 0, len(items))
	for _, batch := range items {
		response = append(response, toBatchResponse(batch))
	}
	h.metrics.ObserveOperation(opListBatches, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log.BusinessError("enrollment.enroll: invalid json", err)
		h.metrics.ObserveOperation(opEnroll, metrics.OutcomeRejected)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if h.writeValidationError(w, "enrollment.enroll", &req) {
		h.metrics.ObserveOperation(opEnroll, metrics.OutcomeRejected)
		return
	}

	result, err := h.Enrollment.Enroll(r.Context(), enrollmentdomain.EnrollInput{
		Name:          req.Name,
		Email:         req.Email,
		Address:       req.Address,
		Phone:         req.Phone,
		BatchTime:     req.BatchTime,
		PaymentAmount: *req.PaymentAmount,
		PaymentStatus: enrollmentdomain.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		h.writeDomainError(w, opEnroll, err, "batch_time", req.BatchTime)
		return
	}

	response := enrollResponse{
		Message:      "Enrollment successful",
		MemberID:     result.Member.ID,
		EnrollmentID: result.Enrollment.ID,
		BatchTime:    result.Enrollment.BatchTime,
	}
	if result.Payment != nil {
		response.TransactionID = result.Payment.TransactionID
	}

	h.log.Info("enrollment.enroll: enrolled",
		"member_id", result.Member.ID,
		"enrollment_id", result.Enrollment.ID,
		"batch_time", result.Enrollment.BatchTime,
		"payment_status", result.Enrollment.PaymentStatus,
	)
	h.metrics.ObserveOperation(opEnroll, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusCreated, response)
}

func (h *Handlers) ListUnpaid(w http.ResponseWriter, r *http.Request) {
	items, err := h.Enrollment.ListUnpaid(r.Context())
	if err != nil {
		h.writeDomainError(w, opListUnpaid, err)
		return
	}

	response := make([]unpaidResponse, 0, len(items))
	for _, item := range items {
		response = append(response, unpaidResponse{
			Name:          item.Name,
			Email:         item.Email,
			BatchTime:     item.BatchTime,
			Amount:        item.Amount.InexactFloat64(),
			PaymentStatus: string(item.PaymentStatus),
			Month:         item.Month.Format(enrollmentdomain.MonthLayout),
		})
	}
	h.metrics.ObserveOperation(opListUnpaid, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) ListOutstandingDues(w http.ResponseWriter, r *http.Request) {
	items, err := h.Enrollment.ListOutstandingDues(r.Context())
	if err != nil {
		h.writeDomainError(w, opOutstandingDues, err)
		return
	}

	response := make([]outstandingDuesResponse, 0, len(items))
	for _, item := range items {
		response = append(response, outstandingDuesResponse{
			Name:          item.Name,
			Email:         item.Email,
			PendingMonths: item.PendingMonths,
			TotalDues:     item.TotalDues.InexactFloat64(),
		})
	}
	h.metrics.ObserveOperation(opOutstandingDues, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) ChangeBatch(w http.ResponseWriter, r *http.Request) {
	var req changeBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log.BusinessError("enrollment.change_batch: invalid json", err)
		h.metrics.ObserveOperation(opChangeBatch, metrics.OutcomeRejected)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if h.writeValidationError(w, "enrollment.change_batch", &req) {
		h.metrics.ObserveOperation(opChangeBatch, metrics.OutcomeRejected)
		return
	}

	result, err := h.Enrollment.ChangeBatch(r.Context(), enrollmentdomain.ChangeBatchInput{
		Email:        req.Email,
		Name:         req.Name,
		NewBatchTime: req.NewBatchTime,
	})
	if err != nil {
		h.writeDomainError(w, opChangeBatch, err, "new_batch_time", req.NewBatchTime)
		return
	}

	h.log.Info("enrollment.change_batch: batch changed",
		"member_id", result.Enrollment.MemberID,
		"from", result.PreviousBatchTime,
		"to", result.Enrollment.BatchTime,
		"month", result.Enrollment.Month.Format(enrollmentdomain.MonthLayout),
		"created", result.Created,
	)
	h.metrics.ObserveOperation(opChangeBatch, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, changeBatchResponse{
		Message:      "Batch changed for next month",
		NewBatchTime: result.Enrollment.BatchTime,
		Month:        result.Enrollment.Month.Format(enrollmentdomain.MonthLayout),
	})
}

func (h *Handlers) CurrentBatch(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.log.BusinessError("enrollment.current_batch: invalid member id", err)
		h.metrics.ObserveOperation(opCurrentBatch, metrics.OutcomeRejected)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid member id")
		return
	}

	item, err := h.Enrollment.CurrentBatch(r.Context(), memberID)
	if err != nil {
		h.writeDomainError(w, opCurrentBatch, err, "member_id", memberID)
		return
	}

	h.metrics.ObserveOperation(opCurrentBatch, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, currentBatchResponse{
		BatchTime:       item.BatchTime,
		PaymentStatus:   string(item.PaymentStatus),
		Month:           item.Month.Format(enrollmentdomain.MonthLayout),
		MonthlyFee:      item.MonthlyFee.InexactFloat64(),
		CurrentCapacity: item.CurrentCapacity,
		MaxCapacity:     item.MaxCapacity,
	})
}

func (h *Handlers) PayEnrollment(w http.ResponseWriter, r *http.Request) {
	enrollmentID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.log.BusinessError("enrollment.pay: invalid enrollment id", err)
		h.metrics.ObserveOperation(opPayEnrollment, metrics.OutcomeRejected)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid enrollment id")
		return
	}

	var req payEnrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log.BusinessError("enrollment.pay: invalid json", err)
		h.metrics.ObserveOperation(opPayEnrollment, metrics.OutcomeRejected)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if h.writeValidationError(w, "enrollment.pay", &req) {
		h.metrics.ObserveOperation(opPayEnrollment, metrics.OutcomeRejected)
		return
	}

	result, err := h.Enrollment.PayEnrollment(r.Context(), enrollmentdomain.PayInput{
		EnrollmentID: enrollmentID,
		Amount:       *req.PaymentAmount,
	})
	if err != nil {
		h.writeDomainError(w, opPayEnrollment, err, "enrollment_id", enrollmentID)
		return
	}

	h.log.Info("enrollment.pay: payment recorded",
		"enrollment_id", result.Enrollment.ID,
		"transaction_id", result.Payment.TransactionID,
	)
	h.metrics.ObserveOperation(opPayEnrollment, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, payEnrollmentResponse{
		Message:       "Payment recorded",
		EnrollmentID:  result.Enrollment.ID,
		TransactionID: result.Payment.TransactionID,
	})
}

func (h *Handlers) Test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "API is working"})
}

// writeDomainError maps service errors onto HTTP replies. Client errors are
// logged as business errors, everything else as internal.
func (h *Handlers) writeDomainError(w http.ResponseWriter, op string, err error, args ...any) {
	logKey := "enrollment." + op

	var missing *enrollmentdomain.MissingFieldsError
	if errors.As(err, &missing) {
		h.log.BusinessError(logKey+": missing fields", err, args...)
		h.metrics.ObserveOperation(op, metrics.OutcomeRejected)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:    "Missing required fields",
			Code:     "missing_fields",
			Required: missing.Fields,
		})
		return
	}

	var insufficient *enrollmentdomain.InsufficientPaymentError
	if errors.As(err, &insufficient) {
		h.log.BusinessError(logKey+": insufficient payment", err, args...)
		h.metrics.ObserveOperation(op, metrics.OutcomeRejected)
		required := insufficient.Required.InexactFloat64()
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:          "Insufficient payment amount",
			Code:           "insufficient_payment",
			RequiredAmount: &required,
		})
		return
	}

	status, code, message := domainErrorStatus(op, err)
	if status >= http.StatusInternalServerError {
		h.log.InternalError(logKey+": failed", err, args...)
		h.metrics.ObserveOperation(op, metrics.OutcomeError)
	} else {
		h.log.BusinessError(logKey+": rejected", err, args...)
		h.metrics.ObserveOperation(op, metrics.OutcomeRejected)
	}
	writeError(w, status, code, message)
}

func domainErrorStatus(op string, err error) (int, string, string) {
	switch {
	case errors.Is(err, enrollmentdomain.ErrBatchNotFound):
		return http.StatusBadRequest, "invalid_batch", "Invalid batch time"
	case errors.Is(err, enrollmentdomain.ErrBatchFull):
		return http.StatusBadRequest, "batch_full", "Selected batch is full"
	case errors.Is(err, enrollmentdomain.ErrEmailTaken):
		return http.StatusBadRequest, "email_taken", "Email already registered"
	case errors.Is(err, enrollmentdomain.ErrInvalidPaymentStatus):
		return http.StatusBadRequest, "invalid_payment_status", "payment_status must be pending or paid"
	case errors.Is(err, enrollmentdomain.ErrSameBatch):
		return http.StatusBadRequest, "same_batch", "Already enrolled in this batch"
	case errors.Is(err, enrollmentdomain.ErrMemberNotFound):
		return http.StatusNotFound, "member_not_found", "Member not found. Please check your email and name."
	case errors.Is(err, enrollmentdomain.ErrEnrollmentNotFound):
		switch op {
		case opChangeBatch:
			return http.StatusNotFound, "enrollment_not_found", "No active enrollment found for current month"
		case opCurrentBatch:
			return http.StatusNotFound, "enrollment_not_found", "No active enrollment found for this month"
		default:
			return http.StatusNotFound, "enrollment_not_found", "Enrollment not found"
		}
	case errors.Is(err, enrollmentdomain.ErrDuplicateEnrollment):
		return http.StatusConflict, "duplicate_enrollment", "Enrollment for this month already exists"
	case errors.Is(err, enrollmentdomain.ErrAlreadyPaid):
		return http.StatusConflict, "already_paid", "Enrollment already paid"
	case errors.Is(err, enrollmentdomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable", "service unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

func toBatchResponse(batch enrollmentdomain.Batch) batchResponse {
	return batchResponse{
		BatchTime:       batch.BatchTime,
		CurrentCapacity: batch.CurrentCapacity,
		MaxCapacity:     batch.MaxCapacity,
		MonthlyFee:      batch.MonthlyFee.InexactFloat64(),
	}
}
