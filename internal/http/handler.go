package http

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/http/middleware"
	"dispatch-service/internal/model"
	"dispatch-service/internal/service"
	"dispatch-service/internal/sheet"
)

type Handler struct {
	dispatchService *service.DispatchService
	stationService  *service.StationService
	retryAfter      time.Duration
	log             zerolog.Logger
}

func NewHandler(
	dispatchService *service.DispatchService,
	stationService *service.StationService,
	retryAfter time.Duration,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		dispatchService: dispatchService,
		stationService:  stationService,
		retryAfter:      retryAfter,
		log:             log,
	}
}

func (h *Handler) listStations(c *gin.Context) {
	stations, err := h.stationService.ListStations(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": stations}))
}

func (h *Handler) registerStation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		Name      string   `json:"name" binding:"required"`
		Brand     string   `json:"brand"`
		Latitude  *float64 `json:"lat" binding:"required"`
		Longitude *float64 `json:"lon" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	station, err := h.stationService.RegisterStation(c.Request.Context(), principal, service.RegisterStationInput{
		Name:      req.Name,
		Brand:     req.Brand,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(station))
}

func (h *Handler) stationSummary(c *gin.Context) {
	summary, err := h.stationService.Summary(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(summary))
}

func (h *Handler) mapMarkers(c *gin.Context) {
	markers, err := h.stationService.MapMarkers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": markers}))
}

func (h *Handler) listTechnicians(c *gin.Context) {
	technicians, err := h.stationService.ListTechnicians(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": technicians}))
}

func (h *Handler) registerTechnician(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	tech, err := h.stationService.RegisterTechnician(c.Request.Context(), principal, req.Name)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(tech))
}

func (h *Handler) listFaults(c *gin.Context) {
	opts := service.ListFaultsOptions{Station: strings.TrimSpace(c.Query("station"))}
	switch scope := strings.ToLower(strings.TrimSpace(c.DefaultQuery("scope", "active"))); scope {
	case "active":
	case "all":
		opts.IncludeDone = true
	default:
		c.JSON(http.StatusBadRequest, errorResponse("scope must be active or all"))
		return
	}

	faults, err := h.dispatchService.ListFaults(c.Request.Context(), opts)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": faults}))
}

func (h *Handler) reportFault(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		Station     string `json:"station" binding:"required"`
		Description string `json:"description" binding:"required"`
		Ticket      string `json:"ticket_number"`
		ReportedAt  string `json:"reported_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	input := service.ReportFaultInput{
		Station:     req.Station,
		Description: req.Description,
		Ticket:      req.Ticket,
	}
	if strings.TrimSpace(req.ReportedAt) != "" {
		ts, ok := model.ParseTimestamp(req.ReportedAt)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse("invalid reported_at"))
			return
		}
		input.ReportedAt = &ts
	}

	fault, err := h.dispatchService.ReportFault(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(fault))
}

func (h *Handler) getFault(c *gin.Context) {
	id, ok := faultID(c)
	if !ok {
		return
	}

	fault, err := h.dispatchService.GetFault(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(fault))
}

func (h *Handler) faultHistory(c *gin.Context) {
	id, ok := faultID(c)
	if !ok {
		return
	}

	entries, err := h.dispatchService.History(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": entries}))
}

func (h *Handler) recentHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		limit = n
	}

	entries, err := h.dispatchService.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": entries}))
}

type transitionRequest struct {
	Note string `json:"note"`
}

func (h *Handler) markDone(c *gin.Context) {
	h.transition(c, h.dispatchService.MarkDone)
}

func (h *Handler) markNeedsRevisit(c *gin.Context) {
	h.transition(c, h.dispatchService.MarkNeedsRevisit)
}

func (h *Handler) transition(c *gin.Context, apply func(ctx context.Context, principal model.Principal, id uuid.UUID, note string) error) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}
	id, ok := faultID(c)
	if !ok {
		return
	}

	// The note is optional, so an empty body (including a chunked one) is fine.
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := apply(c.Request.Context(), principal, id, strings.TrimSpace(req.Note)); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"id": id}))
}

func (h *Handler) deleteFault(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}
	id, ok := faultID(c)
	if !ok {
		return
	}

	if err := h.dispatchService.DeleteFault(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) cancelAssignment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}
	id, ok := faultID(c)
	if !ok {
		return
	}

	if err := h.dispatchService.CancelAssignment(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listAssignments(c *gin.Context) {
	assignments, err := h.dispatchService.ListAssignments(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": assignments}))
}

func (h *Handler) lookupAssignment(c *gin.Context) {
	station := strings.TrimSpace(c.Query("station"))
	task := strings.TrimSpace(c.Query("task"))
	if station == "" || task == "" {
		c.JSON(http.StatusBadRequest, errorResponse("station and task are required"))
		return
	}

	assignment, err := h.dispatchService.LookupAssignment(c.Request.Context(), station, task)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

func (h *Handler) createAssignment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		FaultID     string `json:"fault_id"`
		Station     string `json:"station"`
		Task        string `json:"task"`
		Technician  string `json:"technician" binding:"required"`
		ScheduledAt string `json:"scheduled_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	scheduledAt, ok := model.ParseTimestamp(req.ScheduledAt)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse("invalid scheduled_at, expected YYYY-MM-DD HH:MM"))
		return
	}

	input := service.AssignInput{
		Station:     req.Station,
		Task:        req.Task,
		Technician:  req.Technician,
		ScheduledAt: scheduledAt,
	}
	if raw := strings.TrimSpace(req.FaultID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid fault_id"))
			return
		}
		input.FaultID = &id
	}

	assignment, err := h.dispatchService.CreateOrReplaceAssignment(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

func faultID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid fault id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound), errors.Is(err, sheet.ErrRowNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, sheet.ErrRateLimited):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(h.retryAfter)))
		c.JSON(http.StatusTooManyRequests, errorResponse("spreadsheet is rate limited, wait and retry"))
	case errors.Is(err, sheet.ErrConnectivity):
		h.log.Error().Err(err).Msg("spreadsheet unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse("spreadsheet unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Data: data}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}
