package enrollment

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(enrollmentdomain.Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
	return translateError(err)
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return translateError(sqlDB.PingContext(ctx))
}

// Batch operations

func (r *PostgresRepository) ListBatches(ctx context.Context, openOnly bool) ([]enrollmentdomain.Batch, error) {
	query := r.db.WithContext(ctx).Model(&enrollmentdomain.Batch{})
	if openOnly {
		query = query.Where("current_capacity < max_capacity")
	}

	var items []enrollmentdomain.Batch
	if err := query.Order("batch_time asc").Find(&items).Error; err != nil {
		return nil, translateError(err)
	}
	return items, nil
}

func (r *PostgresRepository) GetBatch(ctx context.Context, batchTime string) (*enrollmentdomain.Batch, error) {
	var batch enrollmentdomain.Batch
	if err := r.db.WithContext(ctx).
		Where("batch_time = ?", batchTime).
		First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, enrollmentdomain.ErrBatchNotFound
		}
		return nil, translateError(err)
	}
	return &batch, nil
}

func (r *PostgresRepository) LockBatches(ctx context.Context, batchTimes ...string) (map[string]enrollmentdomain.Batch, error) {
	result := make(map[string]enrollmentdomain.Batch, len(batchTimes))
	if len(batchTimes) == 0 {
		return result, nil
	}

	// A fixed lock order keeps two crossing batch changes from deadlocking.
	var batches []enrollmentdomain.Batch
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("batch_time IN ?", batchTimes).
		Order("batch_time asc").
		Find(&batches).Error; err != nil {
		return nil, translateError(err)
	}

	for _, batch := range batches {
		result[batch.BatchTime] = batch
	}
	return result, nil
}

func (r *PostgresRepository) ReserveSeat(ctx context.Context, batchTime string) error {
	result := r.db.WithContext(ctx).
		Model(&enrollmentdomain.Batch{}).
		Where("batch_time = ? AND current_capacity < max_capacity", batchTime).
		Update("current_capacity", gorm.Expr("current_capacity + 1"))
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return enrollmentdomain.ErrBatchFull
	}
	return nil
}

func (r *PostgresRepository) ReleaseSeat(ctx context.Context, batchTime string) error {
	return translateError(r.db.WithContext(ctx).
		Model(&enrollmentdomain.Batch{}).
		Where("batch_time = ? AND current_capacity > 0", batchTime).
		Update("current_capacity", gorm.Expr("current_capacity - 1")).Error)
}

// Member operations

func (r *PostgresRepository) MemberEmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&enrollmentdomain.Member{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *PostgresRepository) LockMember(ctx context.Context, email, name string) (*enrollmentdomain.Member, error) {
	var member enrollmentdomain.Member
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ? AND name = ?", email, name).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, enrollmentdomain.ErrMemberNotFound
		}
		return nil, translateError(err)
	}
	return &member, nil
}

func (r *PostgresRepository) CreateMember(ctx context.Context, member *enrollmentdomain.Member) error {
	return translateError(r.db.WithContext(ctx).Create(member).Error)
}

// Enrollment operations

func (r *PostgresRepository) GetEnrollment(ctx context.Context, memberID int64, month time.Time) (*enrollmentdomain.Enrollment, error) {
	var enrollment enrollmentdomain.Enrollment
	if err := r.db.WithContext(ctx).
		Where("member_id = ? AND month = ?", memberID, month.Format(enrollmentdomain.MonthLayout)).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, enrollmentdomain.ErrEnrollmentNotFound
		}
		return nil, translateError(err)
	}
	return &enrollment, nil
}

func (r *PostgresRepository) LockEnrollment(ctx context.Context, enrollmentID int64) (*enrollmentdomain.Enrollment, error) {
	var enrollment enrollmentdomain.Enrollment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", enrollmentID).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, enrollmentdomain.ErrEnrollmentNotFound
		}
		return nil, translateError(err)
	}
	return &enrollment, nil
}

func (r *PostgresRepository) CreateEnrollment(ctx context.Context, enrollment *enrollmentdomain.Enrollment) error {
	return translateError(r.db.WithContext(ctx).Create(enrollment).Error)
}

func (r *PostgresRepository) UpdateEnrollment(ctx context.Context, enrollment *enrollmentdomain.Enrollment) error {
	result := r.db.WithContext(ctx).
		Model(&enrollmentdomain.Enrollment{}).
		Where("id = ?", enrollment.ID).
		Updates(map[string]interface{}{
			"batch_time":     enrollment.BatchTime,
			"amount":         enrollment.Amount,
			"payment_status": enrollment.PaymentStatus,
			"updated_at":     enrollment.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return enrollmentdomain.ErrEnrollmentNotFound
	}
	return nil
}

// Payment operations

func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *enrollmentdomain.Payment) error {
	return translateError(r.db.WithContext(ctx).Create(payment).Error)
}

// Reports

func (r *PostgresRepository) ListUnpaid(ctx context.Context) ([]enrollmentdomain.UnpaidEnrollment, error) {
	var items []enrollmentdomain.UnpaidEnrollment
	if err := r.db.WithContext(ctx).Raw(`
		SELECT m.name, m.email, e.batch_time, e.amount, e.payment_status, e.month
		FROM enrollments e
		JOIN members m ON m.id = e.member_id
		WHERE e.payment_status = ?
		ORDER BY e.month DESC, m.name ASC
	`, enrollmentdomain.PaymentPending).Scan(&items).Error; err != nil {
		return nil, translateError(err)
	}
	return items, nil
}

func (r *PostgresRepository) ListOutstandingDues(ctx context.Context) ([]enrollmentdomain.OutstandingDues, error) {
	var items []enrollmentdomain.OutstandingDues
	if err := r.db.WithContext(ctx).Raw(`
		SELECT m.id AS member_id, m.name, m.email,
			COUNT(e.id) AS pending_months,
			COALESCE(SUM(e.amount), 0) AS total_dues
		FROM members m
		JOIN enrollments e ON e.member_id = m.id
		WHERE e.payment_status = ?
		GROUP BY m.id, m.name, m.email
		ORDER BY total_dues DESC, m.name ASC
	`, enrollmentdomain.PaymentPending).Scan(&items).Error; err != nil {
		return nil, translateError(err)
	}
	return items, nil
}

func (r *PostgresRepository) GetCurrentBatch(ctx context.Context, memberID int64, month time.Time) (*enrollmentdomain.CurrentBatch, error) {
	var item enrollmentdomain.CurrentBatch
	result := r.db.WithContext(ctx).Raw(`
		SELECT e.batch_time, e.payment_status, e.month,
			b.monthly_fee, b.current_capacity, b.max_capacity
		FROM enrollments e
		JOIN batches b ON b.batch_time = e.batch_time
		WHERE e.member_id = ? AND e.month = ?
		LIMIT 1
	`, memberID, month.Format(enrollmentdomain.MonthLayout)).Scan(&item)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, enrollmentdomain.ErrEnrollmentNotFound
	}
	return &item, nil
}
