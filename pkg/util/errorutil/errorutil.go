package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
)

// Error codes shared by services and the HTTP layer.
const (
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeRuleNotFound         = "RULE_NOT_FOUND"
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION_FAILED"
	CodeConflict             = "CONFLICT"
	CodeTransientStore       = "TRANSIENT_STORE_ERROR"
	CodeNotificationDelivery = "NOTIFICATION_DELIVERY_FAILED"
	CodeInternal             = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Matching is by Code, so any DomainError
// carrying the same code satisfies errors.Is against these.
var (
	ErrInvalidTransition    = &DomainError{Code: CodeInvalidTransition}
	ErrRuleNotFound         = &DomainError{Code: CodeRuleNotFound}
	ErrNotFound             = &DomainError{Code: CodeNotFound}
	ErrValidation           = &DomainError{Code: CodeValidation}
	ErrConflict             = &DomainError{Code: CodeConflict}
	ErrTransientStore       = &DomainError{Code: CodeTransientStore}
	ErrNotificationDelivery = &DomainError{Code: CodeNotificationDelivery}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewRuleNotFound(kind string, id int64) error {
	return &DomainError{
		Code:       CodeRuleNotFound,
		Message:    fmt.Sprintf("%s rule not found", kind),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"rule_id": id},
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidTransition reports a status change the transition table forbids.
func NewInvalidTransition(from, to string) error {
	return &DomainError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot transition from %s to %s", from, to),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"from": from, "to": to},
	}
}

// NewTransientStoreError wraps a data-store failure that may succeed on retry.
func NewTransientStoreError(op string, err error) error {
	return &DomainError{
		Code:       CodeTransientStore,
		Message:    op + " failed",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewNotificationDeliveryError(target string, err error) error {
	return &DomainError{
		Code:       CodeNotificationDelivery,
		Message:    "notification delivery to " + target + " failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

// StoreError classifies a repository error: missing rows become NOT_FOUND
// for the given resource, domain errors pass through, everything else is
// treated as transient.
func StoreError(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound(resource, nil)
	}
	return NewTransientStoreError(op, err)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// FromValidation turns a validator error into a validation DomainError whose
// details map each failing field to its tag, e.g. "gt=0".
func FromValidation(message string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err.Error(), nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fe.Field()] = rule
	}
	return NewValidationError(message, details)
}
