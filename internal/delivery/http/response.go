package http

import (
	"encoding/json"
	"net/http"

	"github.com/azizikri/round-robin-coupon/internal/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Message          string `json:"message"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Z().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}
