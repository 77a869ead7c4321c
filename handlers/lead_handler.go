package handlers

import (
	"net/http"
	"strconv"

	"roofcrm-backend/models"
	"roofcrm-backend/repository"
	"roofcrm-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// LeadHandler handles HTTP requests for leads, notes and activity
type LeadHandler struct {
	leadService *service.LeadService
	logger      *zap.Logger
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadService *service.LeadService, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
		logger:      logger,
	}
}

// CreateLeadBody represents the request body for creating a lead
type CreateLeadBody struct {
	Name       string  `json:"name" binding:"required"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	Status     string  `json:"status"`
	AssignedTo *string `json:"assignedTo"`
}

// AddNoteBody represents a note with optional mentions
type AddNoteBody struct {
	Text     string   `json:"text" binding:"required"`
	Mentions []string `json:"mentions"`
}

// CreateLead handles POST /api/leads
func (h *LeadHandler) CreateLead(c *gin.Context) {
	var body CreateLeadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	req := service.CreateLeadRequest{
		Name:    body.Name,
		Email:   body.Email,
		Phone:   body.Phone,
		Address: body.Address,
		Status:  models.LeadStatus(body.Status),
	}
	if body.AssignedTo != nil && *body.AssignedTo != "" {
		id, err := uuid.Parse(*body.AssignedTo)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid assignedTo format")
			return
		}
		req.AssignedTo = &id
	}
	if user := currentUser(c); user != nil {
		req.CreatedBy = &user.ID
	}

	lead, err := h.leadService.CreateLead(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.logger, err, "CREATE_FAILED")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    lead,
	})
}

// ListLeads handles GET /api/leads?status=&limit=&offset=
func (h *LeadHandler) ListLeads(c *gin.Context) {
	filter := repository.LeadFilter{
		Limit:  queryInt(c, "limit", defaultPageSize),
		Offset: queryInt(c, "offset", 0),
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = defaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if s := c.Query("status"); s != "" {
		status := models.LeadStatus(s)
		filter.Status = &status
	}

	leads, err := h.leadService.ListLeads(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, h.logger, err, "LIST_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    leads,
	})
}

// GetLead handles GET /api/leads/:id
func (h *LeadHandler) GetLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	lead, err := h.leadService.GetLead(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, err, "GET_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    lead,
	})
}

// DeleteLead handles DELETE /api/leads/:id. Admins delete directly; everyone else goes
// through a deletion request.
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	result, err := h.leadService.DeleteLead(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondServiceError(c, h.logger, err, "DELETE_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": "Lead deleted",
	})
}

// AddNote handles POST /api/leads/:id/notes
func (h *LeadHandler) AddNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	var body AddNoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	mentions := make([]uuid.UUID, 0, len(body.Mentions))
	for _, m := range body.Mentions {
		uid, err := uuid.Parse(m)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid mention user ID: "+m)
			return
		}
		mentions = append(mentions, uid)
	}

	result, err := h.leadService.AddNote(c.Request.Context(), service.AddNoteRequest{
		LeadID:           id,
		Author:           currentUser(c),
		Text:             body.Text,
		MentionedUserIDs: mentions,
	})
	if err != nil {
		respondServiceError(c, h.logger, err, "NOTE_FAILED")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    result,
	})
}

// ListActivities handles GET /api/leads/:id/activities
func (h *LeadHandler) ListActivities(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	activities, err := h.leadService.ListActivities(c.Request.Context(), id, queryInt(c, "limit", defaultPageSize))
	if err != nil {
		respondServiceError(c, h.logger, err, "LIST_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    activities,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
