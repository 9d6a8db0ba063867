package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
	"github.com/noah-isme/campus-clearance-api/pkg/response"
)

type clearanceService interface {
	CreateRequest(ctx context.Context, req dto.CreateClearanceRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error)
	Approve(ctx context.Context, requestID string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error)
	Reject(ctx context.Context, requestID string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error)
	Status(ctx context.Context, requestID string) (*dto.StatusSnapshot, error)
	List(ctx context.Context, query dto.ClearanceListQuery) ([]models.ClearanceRequest, *models.Pagination, error)
}

// ClearanceHandler exposes REST endpoints for the clearance workflow.
type ClearanceHandler struct {
	service clearanceService
}

// NewClearanceHandler constructs the handler.
func NewClearanceHandler(service clearanceService) *ClearanceHandler {
	return &ClearanceHandler{service: service}
}

// Create godoc
// @Summary Open a clearance request for a student
// @Tags Clearance
// @Accept json
// @Produce json
// @Param payload body dto.CreateClearanceRequest true "Clearance payload"
// @Success 201 {object} response.Envelope
// @Router /clearance/requests [post]
func (h *ClearanceHandler) Create(c *gin.Context) {
	var req dto.CreateClearanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid clearance payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	snapshot, err := h.service.CreateRequest(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, snapshot, nil)
}

// Approve godoc
// @Summary Approve one checkpoint of a clearance request
// @Tags Clearance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests/{id}/approve [post]
func (h *ClearanceHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject one checkpoint of a clearance request
// @Tags Clearance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests/{id}/reject [post]
func (h *ClearanceHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.Reject)
}

func (h *ClearanceHandler) decide(c *gin.Context, op func(context.Context, string, dto.DecisionRequest, *models.JWTClaims) (*dto.StatusSnapshot, error)) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	snapshot, err := op(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Status godoc
// @Summary Full status projection of a clearance request
// @Tags Clearance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests/{id} [get]
func (h *ClearanceHandler) Status(c *gin.Context) {
	snapshot, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// List godoc
// @Summary List clearance requests
// @Tags Clearance
// @Produce json
// @Param student_id query string false "Student ID"
// @Param status query string false "Comma separated overall statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests [get]
func (h *ClearanceHandler) List(c *gin.Context) {
	query := dto.ClearanceListQuery{
		StudentID: strings.TrimSpace(c.Query("student_id")),
		Page:      intQuery(c, "page"),
		PageSize:  intQuery(c, "page_size"),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.CheckpointStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.CheckpointStatus(part))
		}
		query.Status = statuses
	}
	requests, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

func intQuery(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
