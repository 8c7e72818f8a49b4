package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type substituteService interface {
	FindAvailable(ctx context.Context, query dto.AvailableTeachersQuery) ([]models.AvailableTeacher, error)
	Assign(ctx context.Context, req dto.AssignSubstituteRequest) (*models.SubstituteAssignment, error)
	Lookup(ctx context.Context, query dto.SubstituteLookupQuery) (*models.SubstituteAssignment, error)
	ListByDate(ctx context.Context, date string) ([]models.SubstituteAssignment, error)
	Remove(ctx context.Context, entryID, date string) error
}

// SubstituteHandler exposes substitute teacher endpoints.
type SubstituteHandler struct {
	service substituteService
}

// NewSubstituteHandler constructs the handler.
func NewSubstituteHandler(svc substituteService) *SubstituteHandler {
	return &SubstituteHandler{service: svc}
}

// Available godoc
// @Summary List teachers who could cover a lesson
// @Tags Substitutes
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param day query string true "Day (MON..SAT), must match date"
// @Param periodNo query int true "Period number"
// @Param excludeTeacherId query string false "Teacher to leave out, usually the absent one"
// @Success 200 {object} response.Envelope
// @Router /timetable/substitutes/available [get]
func (h *SubstituteHandler) Available(c *gin.Context) {
	var query dto.AvailableTeachersQuery
	if !bindQuery(c, &query, "invalid availability query") {
		return
	}
	teachers, err := h.service.FindAvailable(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// Assign godoc
// @Summary Assign a substitute for one lesson occurrence
// @Tags Substitutes
// @Accept json
// @Produce json
// @Param payload body dto.AssignSubstituteRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Router /timetable/substitutes [post]
func (h *SubstituteHandler) Assign(c *gin.Context) {
	var req dto.AssignSubstituteRequest
	if !bindJSON(c, &req, "invalid substitute payload") {
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Lookup godoc
// @Summary Resolve the substitute for an occurrence
// @Tags Substitutes
// @Produce json
// @Param entryId query string false "Entry ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param classId query string false "Class ID"
// @Param section query string false "Section"
// @Param day query string false "Day"
// @Param periodNo query int false "Period number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/substitutes/lookup [get]
func (h *SubstituteHandler) Lookup(c *gin.Context) {
	var query dto.SubstituteLookupQuery
	if !bindQuery(c, &query, "invalid lookup query") {
		return
	}
	assignment, err := h.service.Lookup(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// ListByDate godoc
// @Summary List substitutes on a date
// @Tags Substitutes
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /timetable/substitutes [get]
func (h *SubstituteHandler) ListByDate(c *gin.Context) {
	list, err := h.service.ListByDate(c.Request.Context(), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil, map[string]interface{}{"count": len(list)})
}

// Remove godoc
// @Summary Remove a substitute assignment
// @Tags Substitutes
// @Param entryId path string true "Entry ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 204
// @Router /timetable/substitutes/{entryId}/{date} [delete]
func (h *SubstituteHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("entryId"), c.Param("date")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
