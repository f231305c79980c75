package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/geo"
	"github.com/classtrack/attendance-api/internal/service"
	"github.com/classtrack/attendance-api/internal/util"
)

type SessionHandler struct {
	sessions   *service.SessionService
	attendance *service.AttendanceService
	reports    *service.ReportService
}

type createSessionRequest struct {
	// Issuer's own location, required under the issuer-live anchor policy.
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func RegisterSessions(e *echo.Echo, auth *service.AuthService, sessions *service.SessionService, attendance *service.AttendanceService, reports *service.ReportService) {
	handler := &SessionHandler{sessions: sessions, attendance: attendance, reports: reports}

	group := e.Group("/api/v1/sessions", RequireAuth(auth), RequireTeacher())
	group.POST("", handler.create)
	group.GET("/:session_id/payload", handler.currentPayload)
	group.POST("/:session_id/end", handler.end)
	group.GET("/:session_id/attendance", handler.listAttendance)
	group.POST("/:session_id/report", handler.exportReport)
}

func (h *SessionHandler) create(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}

	var liveAnchor *geo.Point
	if req.Lat != nil && req.Lng != nil {
		liveAnchor = &geo.Point{Lat: *req.Lat, Lng: *req.Lng}
	}

	session, payload, err := h.sessions.Create(c.Request().Context(), user, liveAnchor)
	if err != nil {
		if errors.Is(err, service.ErrAnchorUnavailable) {
			return c.JSON(http.StatusUnprocessableEntity, util.Error("session anchor location is required"))
		}
		return c.JSON(http.StatusInternalServerError, util.Error("could not create session"))
	}

	return c.JSON(http.StatusCreated, util.Envelope{
		"session": session,
		"payload": payload,
	})
}

func (h *SessionHandler) currentPayload(c echo.Context) error {
	user, sessionID, errResp := h.sessionContext(c)
	if errResp != nil {
		return errResp
	}

	payload, err := h.sessions.CurrentPayload(c.Request().Context(), sessionID, user)
	if err != nil {
		return h.mapSessionError(c, err, "could not fetch payload")
	}
	return c.JSON(http.StatusOK, util.Data("payload", payload))
}

func (h *SessionHandler) end(c echo.Context) error {
	user, sessionID, errResp := h.sessionContext(c)
	if errResp != nil {
		return errResp
	}

	session, err := h.sessions.End(c.Request().Context(), sessionID, user)
	if err != nil {
		return h.mapSessionError(c, err, "could not end session")
	}
	return c.JSON(http.StatusOK, util.Data("session", session))
}

func (h *SessionHandler) listAttendance(c echo.Context) error {
	user, sessionID, errResp := h.sessionContext(c)
	if errResp != nil {
		return errResp
	}

	keys, err := h.sessions.Keys(c.Request().Context(), sessionID, user)
	if err != nil {
		return h.mapSessionError(c, err, "could not list attendance")
	}
	items, err := h.attendance.ListByKeys(c.Request().Context(), keys)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, util.Error("attendance store unavailable"))
	}
	return c.JSON(http.StatusOK, util.Envelope{
		"attendance": items,
		"total":      len(items),
	})
}

func (h *SessionHandler) exportReport(c echo.Context) error {
	user, sessionID, errResp := h.sessionContext(c)
	if errResp != nil {
		return errResp
	}
	if h.reports == nil {
		return c.JSON(http.StatusNotImplemented, util.Error("report storage is not configured"))
	}

	keys, err := h.sessions.Keys(c.Request().Context(), sessionID, user)
	if err != nil {
		return h.mapSessionError(c, err, "could not export report")
	}
	url, err := h.reports.ExportCSV(c.Request().Context(), sessionID, keys)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, util.Error("could not upload report"))
	}
	return c.JSON(http.StatusCreated, util.Data("report_url", url))
}

func (h *SessionHandler) sessionContext(c echo.Context) (user *domain.User, sessionID uuid.UUID, errResp error) {
	u, ok := CurrentUser(c)
	if !ok {
		return nil, uuid.Nil, c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		return nil, uuid.Nil, c.JSON(http.StatusBadRequest, util.Error("session_id must be a valid UUID"))
	}
	return u, id, nil
}

func (h *SessionHandler) mapSessionError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, util.Error("session not found"))
	case errors.Is(err, service.ErrNotSessionIssuer):
		return c.JSON(http.StatusForbidden, util.Error("session belongs to another issuer"))
	case errors.Is(err, service.ErrSessionInactive):
		return c.JSON(http.StatusGone, util.Error("session has ended or expired"))
	default:
		return c.JSON(http.StatusInternalServerError, util.Error(fallback))
	}
}
