package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateCouponRequest struct {
	Code      string          `json:"code"`
	Discount  decimal.Decimal `json:"discount"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

// UpdateCouponRequest changes the discount and/or expiry. A JSON null for
// expires_at clears the expiry; an absent field leaves it alone.
type UpdateCouponRequest struct {
	Discount  *decimal.Decimal `json:"discount"`
	ExpiresAt json.RawMessage  `json:"expires_at"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error("admin login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.admin.ListCoupons(r.Context())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupons)
}

func (h *Handler) ListAvailableCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.admin.AvailableCoupons(r.Context())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupons)
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coupon, err := h.admin.CreateCoupon(r.Context(), domain.NewCoupon{
		Code:      req.Code,
		Discount:  req.Discount,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	h.log.Info("coupon created",
		zap.String("admin", AdminFromContext(r.Context())),
		zap.String("code", coupon.Code),
	)
	writeJSON(w, http.StatusCreated, coupon)
}

func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}

	var req UpdateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := domain.CouponUpdate{Discount: req.Discount}
	switch string(req.ExpiresAt) {
	case "":
	case "null":
		update.ClearExpiry = true
	default:
		var at time.Time
		if err := json.Unmarshal(req.ExpiresAt, &at); err != nil {
			writeError(w, http.StatusBadRequest, "expires_at must be an RFC 3339 timestamp")
			return
		}
		update.ExpiresAt = &at
	}

	coupon, err := h.admin.UpdateCoupon(r.Context(), id, update)
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteCoupon(r.Context(), id); err != nil {
		h.writeAdminError(w, err)
		return
	}
	h.log.Info("coupon deleted",
		zap.String("admin", AdminFromContext(r.Context())),
		zap.Int64("id", id),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.admin.History(r.Context())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.admin.Stats(r.Context())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCoupon):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "coupon not found")
	case errors.Is(err, domain.ErrDuplicateCoupon):
		writeError(w, http.StatusConflict, "coupon already exists")
	default:
		h.log.Error("admin request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func couponID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return 0, false
	}
	return id, true
}
