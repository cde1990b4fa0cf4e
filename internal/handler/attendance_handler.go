package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/dto"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/service"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/response"
)

// AttendanceHandler exposes ledger, scan, and reporting endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Mark godoc
// @Summary Mark a class's attendance for one day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkClassRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req dto.MarkClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	ledger, err := h.attendance.MarkClass(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ledger)
}

// UpdateLedger godoc
// @Summary Replace a ledger's records
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Ledger ID"
// @Param payload body dto.UpdateLedgerRequest true "Replacement records"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) UpdateLedger(c *gin.Context) {
	var req dto.UpdateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	ledger, err := h.attendance.UpdateLedger(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// GetLedger godoc
// @Summary Get one attendance ledger
// @Tags Attendance
// @Produce json
// @Param id path string true "Ledger ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) GetLedger(c *gin.Context) {
	ledger, err := h.attendance.GetLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// ListLedgers godoc
// @Summary List a class's attendance ledgers
// @Tags Attendance
// @Produce json
// @Param classId query string true "Class ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) ListLedgers(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId is required"))
		return
	}
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
	ledgers, err := h.attendance.ListClassLedgers(c.Request.Context(), dto.LedgerFilter{ClassID: classID, From: from, To: to})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledgers, nil)
}

// Scan godoc
// @Summary Record one credential scan
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ScanRequest true "Scanned credential"
// @Success 200 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.RecordScan(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Report godoc
// @Summary Class attendance report over a date range
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param format query string false "json, csv, or pdf"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance/report [get]
func (h *AttendanceHandler) Report(c *gin.Context) {
	from, to, err := reportRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	classID := c.Param("id")

	format := c.DefaultQuery("format", "json")
	if format == "json" {
		report, err := h.attendance.ClassReport(c.Request.Context(), classID, from, to)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
		return
	}

	payload, contentType, filename, err := h.attendance.ExportClassReport(c.Request.Context(), classID, from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// Events godoc
// @Summary List scan audit events
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param scannerId query string false "Filter by scanner"
// @Param kind query string false "Filter by kind"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance/events [get]
func (h *AttendanceHandler) Events(c *gin.Context) {
	var filter models.ScanEventFilter
	filter.StudentID = c.Query("studentId")
	filter.ScannerID = c.Query("scannerId")
	filter.Kind = models.ScanKind(c.Query("kind"))
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
	filter.From = from
	filter.To = to
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	events, total, err := h.attendance.ListScanEvents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, events, pagination)
}

func reportRange(c *gin.Context) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from must be formatted YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must be formatted YYYY-MM-DD")
	}
	return from, to, nil
}

func optionalDay(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dates must be formatted YYYY-MM-DD")
	}
	key := models.DayKey(day)
	return &key, nil
}
