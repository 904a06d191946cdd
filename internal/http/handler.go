package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-service/internal/domain/parking"
	"parking-service/internal/service"
)

type Handler struct {
	gate    *service.GateService
	spots   *service.SpotService
	ledger  *service.LedgerService
	barrier service.BarrierController
	log     zerolog.Logger
}

func NewHandler(
	gate *service.GateService,
	spots *service.SpotService,
	ledger *service.LedgerService,
	barrier service.BarrierController,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		gate:    gate,
		spots:   spots,
		ledger:  ledger,
		barrier: barrier,
		log:     log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(authMiddleware)
	{
		api.POST("/gate/entry", RequireCapability(CapGateOperate), h.gateEntry)
		api.POST("/gate/exit", RequireCapability(CapGateOperate), h.gateExit)
		api.GET("/barrier/status", RequireCapability(CapGateOperate), h.barrierStatus)
		api.POST("/barrier/open", RequireCapability(CapManageSpots), h.barrierOpen)
		api.POST("/barrier/close", RequireCapability(CapManageSpots), h.barrierClose)

		api.POST("/spots", RequireCapability(CapManageSpots), h.createSpot)
		api.GET("/spots", RequireCapability(CapViewSpots), h.listSpots)
		api.GET("/spots/available", RequireCapability(CapViewSpots), h.listAvailableSpots)
		api.POST("/spots/:label/reserve", RequireCapability(CapReserve), h.reserveSpot)
		api.POST("/spots/:label/cancel", RequireCapability(CapReserve), h.cancelReservation)
		api.POST("/spots/:label/check-timeout", RequireCapability(CapManageSpots), h.checkTimeout)
		api.POST("/spots/sweep-timeouts", RequireCapability(CapManageSpots), h.sweepTimeouts)

		api.POST("/vehicles", RequireCapability(CapManageVehicles), h.registerVehicle)
		api.GET("/vehicles", RequireCapability(CapManageVehicles), h.listVehicles)

		api.GET("/sessions/active", RequireCapability(CapViewLedger), h.listActiveSessions)
		api.GET("/sessions/reservations", RequireCapability(CapViewLedger), h.listReservations)

		api.POST("/payments", RequireCapability(CapManagePayments), h.createPayment)
		api.POST("/payments/:id/complete", RequireCapability(CapManagePayments), h.completePayment)

		api.GET("/events", RequireCapability(CapViewLedger), h.listEvents)
	}
}

func (h *Handler) gateEntry(c *gin.Context) {
	result := h.gate.ProcessVehicleEntry(c.Request.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (h *Handler) gateExit(c *gin.Context) {
	result := h.gate.ProcessVehicleExit(c.Request.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (h *Handler) barrierStatus(c *gin.Context) {
	status, err := h.barrier.Status(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("barrier status query failed")
		c.JSON(http.StatusBadGateway, errorResponse("barrier unavailable"))
		return
	}
	c.Data(http.StatusOK, "application/json", status)
}

// Manual barrier control, for operators clearing a stuck gate.
func (h *Handler) barrierOpen(c *gin.Context) {
	if err := h.barrier.Open(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("manual barrier open failed")
		c.JSON(http.StatusBadGateway, errorResponse("barrier unavailable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "open"})
}

func (h *Handler) barrierClose(c *gin.Context) {
	if err := h.barrier.Close(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("manual barrier close failed")
		c.JSON(http.StatusBadGateway, errorResponse("barrier unavailable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

type createSpotRequest struct {
	Label          string `json:"label" binding:"required"`
	TimeoutMinutes int    `json:"timeout_minutes"`
}

func (h *Handler) createSpot(c *gin.Context) {
	var req createSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	spot, err := h.spots.CreateSpot(c.Request.Context(), req.Label, req.TimeoutMinutes)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(spot))
}

func (h *Handler) listSpots(c *gin.Context) {
	spots, err := h.spots.ListSpots(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(spots))
}

func (h *Handler) listAvailableSpots(c *gin.Context) {
	spots, err := h.spots.ListAvailableSpots(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(spots))
}

type reserveRequest struct {
	Plate string    `json:"plate" binding:"required"`
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

func (h *Handler) reserveSpot(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	label := c.Param("label")
	if err := h.spots.Reserve(c.Request.Context(), label, req.Plate, req.Start, req.End); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reserved", "spot": label})
}

func (h *Handler) cancelReservation(c *gin.Context) {
	label := c.Param("label")
	if err := h.spots.CancelReservation(c.Request.Context(), label); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "spot": label})
}

func (h *Handler) checkTimeout(c *gin.Context) {
	label := c.Param("label")
	timedOut, err := h.spots.CheckTimeout(c.Request.Context(), label)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spot": label, "timed_out": timedOut})
}

func (h *Handler) sweepTimeouts(c *gin.Context) {
	expired, err := h.spots.SweepTimeouts(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

type registerVehicleRequest struct {
	Plate string `json:"plate" binding:"required"`
	Owner string `json:"owner"`
	Phone string `json:"phone"`
}

func (h *Handler) registerVehicle(c *gin.Context) {
	var req registerVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle, err := h.ledger.RegisterVehicle(c.Request.Context(), req.Plate, req.Owner, req.Phone)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(vehicle))
}

func (h *Handler) listVehicles(c *gin.Context) {
	vehicles, err := h.ledger.FindVehicles(c.Request.Context(), strings.TrimSpace(c.Query("plate")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicles))
}

func (h *Handler) listActiveSessions(c *gin.Context) {
	sessions, err := h.ledger.ActiveSessions(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) listReservations(c *gin.Context) {
	future := c.Query("future") == "true"
	sessions, err := h.ledger.Reservations(c.Request.Context(), future)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(sessions))
}

type createPaymentRequest struct {
	SessionID int64   `json:"session_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
}

func (h *Handler) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	payment, err := h.ledger.CreatePayment(c.Request.Context(), req.SessionID, req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(payment))
}

func (h *Handler) completePayment(c *gin.Context) {
	id, err := parseInt64(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid payment id"))
		return
	}

	payment, err := h.ledger.CompletePayment(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(payment))
}

func (h *Handler) listEvents(c *gin.Context) {
	var plateQuery *string
	if plate := strings.TrimSpace(c.Query("plate")); plate != "" {
		plateQuery = &plate
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.ledger.GateEvents(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, parking.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrVehicleNotRegistered):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNoAvailableSpot),
		errors.Is(err, service.ErrAlreadyParked),
		errors.Is(err, service.ErrReservationOverlap),
		errors.Is(err, service.ErrNoOpenSession),
		errors.Is(err, service.ErrPaymentCompleted),
		errors.Is(err, parking.ErrSpotUnavailable),
		errors.Is(err, parking.ErrNotReserved),
		errors.Is(err, parking.ErrNotOccupied):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
