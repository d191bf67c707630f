package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/logger"
	"github.com/azizikri/round-robin-coupon/internal/stats"
	"github.com/azizikri/round-robin-coupon/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ClaimResponse struct {
	Message    string          `json:"message"`
	CouponCode string          `json:"coupon_code"`
	Discount   decimal.Decimal `json:"discount"`
	ClaimedAt  time.Time       `json:"claimed_at"`
}

// CouponAdmin is the admin surface the handler serves.
type CouponAdmin interface {
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	AvailableCoupons(ctx context.Context) ([]domain.Coupon, error)
	CreateCoupon(ctx context.Context, arg domain.NewCoupon) (domain.Coupon, error)
	UpdateCoupon(ctx context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error)
	DeleteCoupon(ctx context.Context, id int64) error
	History(ctx context.Context) ([]domain.ClaimRecord, error)
	Stats(ctx context.Context) (stats.Snapshot, error)
}

type Authenticator interface {
	TokenParser
	Login(username, password string) (usecase.Token, error)
}

type Options struct {
	Gateway  usecase.ClaimGateway
	Admin    CouponAdmin
	Auth     Authenticator
	KeyFn    KeyFunc
	Throttle *ThrottleStore
	Logger   *zap.Logger
}

type Handler struct {
	gateway  usecase.ClaimGateway
	admin    CouponAdmin
	auth     Authenticator
	keyFn    KeyFunc
	throttle *ThrottleStore
	log      *zap.Logger
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		gateway:  opts.Gateway,
		admin:    opts.Admin,
		auth:     opts.Auth,
		keyFn:    opts.KeyFn,
		throttle: opts.Throttle,
		log:      opts.Logger,
	}
	if h.keyFn == nil {
		h.keyFn = DefaultKeyFunc("", false)
	}
	if h.log == nil {
		h.log = logger.Z()
	}
	return h
}

// NewRouter mounts the handler behind the service middleware. Client
// addresses are resolved by the handler's KeyFunc, not by rewriting
// RemoteAddr, so forwarded headers only count when the KeyFunc trusts them.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log.Named("access")))
	r.Use(middleware.Recoverer)

	h.Routes(r)
	return r
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.throttle != nil {
				r.Use(Throttle(h.throttle, h.keyFn))
			}
			r.Post("/coupons/claim", h.ClaimCoupon)
			r.Get("/coupons/claim", h.ClaimCoupon)
		})

		if h.admin == nil || h.auth == nil {
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Group(func(r chi.Router) {
				r.Use(AdminOnly(h.auth))
				r.Get("/coupons", h.ListCoupons)
				r.Get("/coupons/available", h.ListAvailableCoupons)
				r.Post("/coupons", h.CreateCoupon)
				r.Put("/coupons/{id}", h.UpdateCoupon)
				r.Delete("/coupons/{id}", h.DeleteCoupon)
				r.Get("/claims", h.ListClaims)
				r.Get("/stats", h.Stats)
			})
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ClaimCoupon(w http.ResponseWriter, r *http.Request) {
	alloc, err := h.gateway.Claim(r.Context(), h.keyFn(r))
	if err != nil {
		h.writeClaimError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ClaimResponse{
		Message:    "coupon claimed successfully",
		CouponCode: alloc.CouponCode,
		Discount:   alloc.Discount,
		ClaimedAt:  alloc.ClaimedAt,
	})
}

func (h *Handler) writeClaimError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		seconds := cooldown.RemainingSeconds()
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Message:          cooldown.Error(),
			RemainingSeconds: seconds,
		})
	case errors.Is(err, domain.ErrNoCouponsAvailable):
		writeError(w, http.StatusNotFound, "no coupons available")
	case errors.Is(err, domain.ErrConflictRetryExhausted):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "too much contention, please retry")
	case errors.Is(err, domain.ErrInvalidIdentity):
		writeError(w, http.StatusBadRequest, "could not determine client identity")
	case errors.Is(err, domain.ErrClaimTimeout), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusGatewayTimeout, "claim timed out, please retry")
	default:
		h.log.Error("claim failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
