package kafka

import (
	"errors"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

const (
	StatusSuccess                = "SUCCESS"
	StatusCooldownActive         = "COOLDOWN_ACTIVE"
	StatusNoCoupons              = "NO_COUPONS"
	StatusConflictRetryExhausted = "CONFLICT_RETRY_EXHAUSTED"
	StatusInvalidRequest         = "INVALID_REQUEST"
	StatusInternalError          = "INTERNAL_ERROR"
)

type ClaimRequest struct {
	SchemaVersion int    `json:"schema_version"`
	CorrelationID string `json:"correlation_id"`
	ReplyTo       string `json:"reply_to"`
	Identity      string `json:"identity"`
}

type ClaimResponse struct {
	SchemaVersion     int                `json:"schema_version"`
	CorrelationID     string             `json:"correlation_id"`
	Status            string             `json:"status"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	RetryAfterSeconds int64              `json:"retry_after_seconds,omitempty"`
	Allocation        *domain.Allocation `json:"allocation,omitempty"`
}

// responseFor turns an engine result into the reply sent back to the gateway.
func responseFor(correlationID string, alloc *domain.Allocation, err error) *ClaimResponse {
	resp := &ClaimResponse{
		SchemaVersion: schemaVersion,
		CorrelationID: correlationID,
		Status:        StatusSuccess,
		Allocation:    alloc,
	}
	if err == nil {
		return resp
	}

	resp.Allocation = nil
	resp.ErrorMessage = err.Error()

	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		resp.Status = StatusCooldownActive
		resp.RetryAfterSeconds = cooldown.RemainingSeconds()
	case errors.Is(err, domain.ErrNoCouponsAvailable):
		resp.Status = StatusNoCoupons
	case errors.Is(err, domain.ErrConflictRetryExhausted):
		resp.Status = StatusConflictRetryExhausted
	case errors.Is(err, domain.ErrInvalidIdentity):
		resp.Status = StatusInvalidRequest
	default:
		resp.Status = StatusInternalError
		resp.ErrorMessage = "internal error"
	}
	return resp
}

// toResult is the inverse of responseFor on the gateway side.
func (r *ClaimResponse) toResult() (*domain.Allocation, error) {
	switch r.Status {
	case StatusSuccess:
		if r.Allocation == nil {
			return nil, errors.New("success reply without allocation")
		}
		return r.Allocation, nil
	case StatusCooldownActive:
		return nil, domain.NewCooldownError(r.RetryAfterSeconds)
	case StatusNoCoupons:
		return nil, domain.ErrNoCouponsAvailable
	case StatusConflictRetryExhausted:
		return nil, domain.ErrConflictRetryExhausted
	case StatusInvalidRequest:
		return nil, domain.ErrInvalidIdentity
	default:
		return nil, errors.New(r.ErrorMessage)
	}
}
