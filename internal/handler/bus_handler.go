package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/dto"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/service"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/response"
)

// BusHandler exposes fleet and transport ledger endpoints.
type BusHandler struct {
	transport  *service.TransportService
	attendance *service.AttendanceService
}

// NewBusHandler constructs BusHandler.
func NewBusHandler(transport *service.TransportService, attendance *service.AttendanceService) *BusHandler {
	return &BusHandler{transport: transport, attendance: attendance}
}

// List godoc
// @Summary List buses
// @Tags Transport
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /buses [get]
func (h *BusHandler) List(c *gin.Context) {
	buses, err := h.transport.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, buses, nil)
}

// Get godoc
// @Summary Get bus detail
// @Tags Transport
// @Produce json
// @Param id path string true "Bus ID"
// @Success 200 {object} response.Envelope
// @Router /buses/{id} [get]
func (h *BusHandler) Get(c *gin.Context) {
	bus, err := h.transport.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bus, nil)
}

// Mine godoc
// @Summary Get the bus assigned to the authenticated crew member
// @Tags Transport
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /buses/mine [get]
func (h *BusHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	bus, err := h.transport.GetForCrew(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bus, nil)
}

// Create godoc
// @Summary Register a bus
// @Tags Transport
// @Accept json
// @Produce json
// @Param payload body dto.CreateBusRequest true "Bus payload"
// @Success 201 {object} response.Envelope
// @Router /buses [post]
func (h *BusHandler) Create(c *gin.Context) {
	var req dto.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bus, err := h.transport.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bus)
}

// Update godoc
// @Summary Update a bus
// @Tags Transport
// @Accept json
// @Produce json
// @Param id path string true "Bus ID"
// @Param payload body dto.UpdateBusRequest true "Bus payload"
// @Success 200 {object} response.Envelope
// @Router /buses/{id} [put]
func (h *BusHandler) Update(c *gin.Context) {
	var req dto.UpdateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bus, err := h.transport.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bus, nil)
}

// Delete godoc
// @Summary Delete a bus
// @Tags Transport
// @Param id path string true "Bus ID"
// @Success 204
// @Router /buses/{id} [delete]
func (h *BusHandler) Delete(c *gin.Context) {
	if err := h.transport.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdatePosition godoc
// @Summary Report a bus's current position
// @Tags Transport
// @Accept json
// @Produce json
// @Param id path string true "Bus ID"
// @Param payload body dto.UpdatePositionRequest true "Position payload"
// @Success 200 {object} response.Envelope
// @Router /buses/{id}/position [put]
func (h *BusHandler) UpdatePosition(c *gin.Context) {
	var req dto.UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bus, err := h.transport.UpdatePosition(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bus, nil)
}

// Day godoc
// @Summary One bus session ledger for a day
// @Tags Transport
// @Produce json
// @Param id path string true "Bus ID"
// @Param day query string false "Day (YYYY-MM-DD), defaults to today"
// @Param session query string false "morning or evening"
// @Success 200 {object} response.Envelope
// @Router /buses/{id}/attendance [get]
func (h *BusHandler) Day(c *gin.Context) {
	day := time.Now()
	if value := c.Query("day"); value != "" {
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day must be formatted YYYY-MM-DD"))
			return
		}
		day = parsed
	}
	session := models.TransportSession(c.Query("session"))
	ledger, err := h.attendance.TransportDay(c.Request.Context(), c.Param("id"), day, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// Ledgers godoc
// @Summary List a bus's transport ledgers
// @Tags Transport
// @Produce json
// @Param id path string true "Bus ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /buses/{id}/attendance/history [get]
func (h *BusHandler) Ledgers(c *gin.Context) {
	from, err := optionalDay(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := optionalDay(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	ledgers, err := h.attendance.ListTransportLedgers(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledgers, nil)
}
