package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResult, error)
	ApplyProposal(ctx context.Context, proposalID string, req dto.ApplyProposalRequest) (*dto.GenerateTimetableResult, error)
}

type generationJobs interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest, requestedBy string) (*models.GenerationJob, error)
	Get(ctx context.Context, id string) (*models.GenerationJob, error)
	Cancel(ctx context.Context, id string) (*models.GenerationJob, error)
}

// TimetableGeneratorHandler exposes bulk generation.
type TimetableGeneratorHandler struct {
	generator timetableGenerator
	jobs      generationJobs
}

// NewTimetableGeneratorHandler constructs the handler.
func NewTimetableGeneratorHandler(generator timetableGenerator, jobs generationJobs) *TimetableGeneratorHandler {
	return &TimetableGeneratorHandler{generator: generator, jobs: jobs}
}

// Generate godoc
// @Summary Generate a week timetable
// @Description Runs the generator synchronously. With commit=false the result is kept as a proposal that can be applied later.
// @Tags Generator
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, generationMeta(result))
}

// ApplyProposal godoc
// @Summary Commit a previewed proposal
// @Tags Generator
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ApplyProposalRequest false "Apply options"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/generate/proposals/{id}/apply [post]
func (h *TimetableGeneratorHandler) ApplyProposal(c *gin.Context) {
	var req dto.ApplyProposalRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid apply payload") {
		return
	}
	result, err := h.generator.ApplyProposal(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, generationMeta(result))
}

// SubmitJob godoc
// @Summary Queue a generation job
// @Tags Generator
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /timetable/generate/jobs [post]
func (h *TimetableGeneratorHandler) SubmitJob(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), req, requestedBy(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// GetJob godoc
// @Summary Get a generation job
// @Tags Generator
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/generate/jobs/{id} [get]
func (h *TimetableGeneratorHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// CancelJob godoc
// @Summary Cancel a generation job
// @Tags Generator
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/generate/jobs/{id} [delete]
func (h *TimetableGeneratorHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

func generationMeta(result *dto.GenerateTimetableResult) map[string]interface{} {
	mode := "preview"
	if result.Committed {
		mode = "committed"
	}
	return map[string]interface{}{
		"mode":        mode,
		"unresolved":  len(result.Unresolved),
		"hasWarnings": len(result.Unresolved)+len(result.SoftViolations) > 0,
	}
}
