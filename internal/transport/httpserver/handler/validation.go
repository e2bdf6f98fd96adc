package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest splits validator failures into missing fields and other
// field-level problems. Both are nil when the payload is valid.
func (h *Handlers) validateRequest(payload interface{}) ([]string, []fieldError, error) {
	err := h.validate.Struct(payload)
	if err == nil {
		return nil, nil, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, nil, err
	}

	var required []string
	var fields []fieldError
	for _, fe := range validationErrors {
		if fe.Tag() == "required" {
			required = append(required, fe.Field())
			continue
		}
		fields = append(fields, fieldError{Field: fe.Field(), Error: fieldMessage(fe)})
	}
	return required, fields, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s:%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

// writeValidationError answers 400 when the payload failed validation and
// reports whether it did.
func (h *Handlers) writeValidationError(w http.ResponseWriter, op string, payload interface{}) bool {
	required, fields, err := h.validateRequest(payload)
	if err != nil {
		h.log.BusinessError(op+": invalid payload", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request")
		return true
	}
	if len(required) > 0 {
		h.log.BusinessError(op+": missing fields", errMissingFields, "required", required)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:    "Missing required fields",
			Code:     "missing_fields",
			Required: required,
			Fields:   fields,
		})
		return true
	}
	if len(fields) > 0 {
		h.log.BusinessError(op+": invalid fields", errInvalidFields, "fields", fields)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "Invalid request",
			Code:   "invalid_request",
			Fields: fields,
		})
		return true
	}
	return false
}

var (
	errMissingFields = errors.New("missing required fields")
	errInvalidFields = errors.New("invalid fields")
)
