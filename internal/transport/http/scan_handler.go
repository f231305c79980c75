package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/geo"
	"github.com/classtrack/attendance-api/internal/service"
	"github.com/classtrack/attendance-api/internal/util"
)

type ScanHandler struct {
	verification *service.VerificationService
}

type scanRequest struct {
	Payload        string   `json:"payload"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	AccuracyMeters *float64 `json:"accuracy_meters"`
}

type scanOutcomeResponse struct {
	State          string   `json:"state"`
	Reason         string   `json:"reason,omitempty"`
	Message        string   `json:"message"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	AlreadyMarked  bool     `json:"already_marked,omitempty"`
	Retryable      bool     `json:"retryable,omitempty"`
}

func RegisterScan(e *echo.Echo, auth *service.AuthService, verification *service.VerificationService) {
	handler := &ScanHandler{verification: verification}

	group := e.Group("/api/v1/attendance", RequireAuth(auth))
	group.POST("/scan", handler.scan)
}

// requestLocationSource hands the flow the sample the device attached to
// the request. A request without one reads as an acquisition failure, the
// same as a denied browser permission.
type requestLocationSource struct {
	req scanRequest
}

func (s requestLocationSource) Acquire(ctx context.Context) (geo.Sample, error) {
	if err := ctx.Err(); err != nil {
		return geo.Sample{}, err
	}
	if s.req.Lat == nil || s.req.Lng == nil || s.req.AccuracyMeters == nil {
		return geo.Sample{}, errors.New("no location sample in request")
	}
	return geo.Sample{
		Point:          geo.Point{Lat: *s.req.Lat, Lng: *s.req.Lng},
		AccuracyMeters: *s.req.AccuracyMeters,
	}, nil
}

// contextIdentity resolves the subject the auth middleware already
// established for this request.
type contextIdentity struct {
	user *domain.User
}

func (r contextIdentity) Resolve(context.Context) (*domain.User, error) {
	if r.user == nil {
		return nil, service.ErrNotAuthenticated
	}
	return r.user, nil
}

func (h *ScanHandler) scan(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if req.Payload == "" {
		return c.JSON(http.StatusBadRequest, util.Error("payload is required"))
	}

	outcome, err := h.verification.Verify(
		c.Request().Context(),
		user.ID.String(),
		req.Payload,
		requestLocationSource{req: req},
		contextIdentity{user: user},
	)
	if err != nil {
		if errors.Is(err, service.ErrAttemptInFlight) {
			return c.JSON(http.StatusTooManyRequests, util.Error("a scan is already being verified"))
		}
		return c.JSON(http.StatusInternalServerError, util.Error("verification failed"))
	}

	return c.JSON(scanStatus(outcome), util.Data("outcome", scanOutcomeResponse{
		State:          string(outcome.State),
		Reason:         string(outcome.Reason),
		Message:        outcome.Message,
		DistanceMeters: outcome.DistanceMeters,
		AlreadyMarked:  outcome.AlreadyRecorded,
		Retryable:      outcome.Retryable,
	}))
}

func scanStatus(outcome service.Outcome) int {
	if outcome.State == service.StateRecorded {
		if outcome.AlreadyRecorded {
			return http.StatusOK
		}
		return http.StatusCreated
	}
	switch outcome.Reason {
	case service.ReasonMalformedPayload:
		return http.StatusBadRequest
	case service.ReasonExpired:
		return http.StatusGone
	case service.ReasonNotAuthenticated:
		return http.StatusUnauthorized
	case service.ReasonPersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
