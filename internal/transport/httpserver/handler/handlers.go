package handler

import (
	"github.com/go-playground/validator/v10"

	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
	"gym-batches-go/internal/metrics"
	"gym-batches-go/pkg/logger"
)

type Handlers struct {
	Enrollment *enrollmentdomain.Service
	log        logger.Logger
	metrics    *metrics.Metrics
	validate   *validator.Validate
}

func New(enrollment *enrollmentdomain.Service, log logger.Logger, m *metrics.Metrics) *Handlers {
	return &Handlers{
		Enrollment: enrollment,
		log:        log,
		metrics:    m,
		validate:   newValidator(),
	}
}
