package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	GetWeek(ctx context.Context, query dto.WeekQuery) (*models.WeekView, error)
	WeekConflicts(ctx context.Context, query dto.WeekQuery) ([]models.Conflict, error)
	PublishWeek(ctx context.Context, req dto.PublishWeekRequest) (*dto.PublishWeekResponse, error)
	CreateEntry(ctx context.Context, req dto.CreateEntryRequest) (*models.ScheduleEntry, []models.Conflict, error)
	UpdateEntry(ctx context.Context, id string, req dto.UpdateEntryRequest) (*models.ScheduleEntry, []models.Conflict, error)
	DeleteEntry(ctx context.Context, id string) error
	SwapEntries(ctx context.Context, req dto.SwapEntriesRequest) (*dto.SwapEntriesResult, error)
	ListPeriods(ctx context.Context, classID string) ([]models.Period, error)
	SetPeriods(ctx context.Context, classID string, req dto.SetPeriodsRequest) ([]models.Period, error)
}

// TimetableHandler exposes week grids and manual entry editing.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// GetWeek godoc
// @Summary Get a class-section week grid
// @Description Returns periods, entries, conflicts touching the week and substitute overlays dated inside it.
// @Tags Timetable
// @Produce json
// @Param classId query string true "Class ID"
// @Param section query string true "Section"
// @Param weekStart query string true "Monday of the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/weeks [get]
func (h *TimetableHandler) GetWeek(c *gin.Context) {
	var query dto.WeekQuery
	if !bindQuery(c, &query, "invalid week query") {
		return
	}
	week, err := h.service.GetWeek(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}

// Conflicts godoc
// @Summary List conflicts touching a week
// @Tags Timetable
// @Produce json
// @Param classId query string true "Class ID"
// @Param section query string true "Section"
// @Param weekStart query string true "Monday of the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	var query dto.WeekQuery
	if !bindQuery(c, &query, "invalid week query") {
		return
	}
	conflicts, err := h.service.WeekConflicts(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil, map[string]interface{}{"count": len(conflicts)})
}

// Publish godoc
// @Summary Publish or unpublish a week
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.PublishWeekRequest true "Publish payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/weeks/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	var req dto.PublishWeekRequest
	if !bindJSON(c, &req, "invalid publish payload") {
		return
	}
	result, err := h.service.PublishWeek(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CreateEntry godoc
// @Summary Create a timetable entry
// @Description Teacher or room double-bookings are returned in meta.conflicts and do not block the write.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.CreateEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/entries [post]
func (h *TimetableHandler) CreateEntry(c *gin.Context) {
	var req dto.CreateEntryRequest
	if !bindJSON(c, &req, "invalid entry payload") {
		return
	}
	entry, conflicts, err := h.service.CreateEntry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry, response.WithConflicts(conflicts))
}

// UpdateEntry godoc
// @Summary Patch a timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateEntryRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/entries/{id} [patch]
func (h *TimetableHandler) UpdateEntry(c *gin.Context) {
	var req dto.UpdateEntryRequest
	if !bindJSON(c, &req, "invalid entry patch") {
		return
	}
	entry, conflicts, err := h.service.UpdateEntry(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil, response.WithConflicts(conflicts))
}

// DeleteEntry godoc
// @Summary Delete a timetable entry
// @Tags Timetable
// @Param id path string true "Entry ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetable/entries/{id} [delete]
func (h *TimetableHandler) DeleteEntry(c *gin.Context) {
	if err := h.service.DeleteEntry(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SwapEntries godoc
// @Summary Swap the lessons of two entries
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.SwapEntriesRequest true "Swap payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/entries/swap [post]
func (h *TimetableHandler) SwapEntries(c *gin.Context) {
	var req dto.SwapEntriesRequest
	if !bindJSON(c, &req, "invalid swap payload") {
		return
	}
	result, err := h.service.SwapEntries(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Entries, nil, response.WithConflicts(result.Conflicts))
}

// ListPeriods godoc
// @Summary List periods configured for a class
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/classes/{classId}/periods [get]
func (h *TimetableHandler) ListPeriods(c *gin.Context) {
	periods, err := h.service.ListPeriods(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// SetPeriods godoc
// @Summary Replace the period table of a class
// @Tags Timetable
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.SetPeriodsRequest true "Periods"
// @Success 200 {object} response.Envelope
// @Router /timetable/classes/{classId}/periods [put]
func (h *TimetableHandler) SetPeriods(c *gin.Context) {
	var req dto.SetPeriodsRequest
	if !bindJSON(c, &req, "invalid periods payload") {
		return
	}
	periods, err := h.service.SetPeriods(c.Request.Context(), c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}
