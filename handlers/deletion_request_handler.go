package handlers

import (
	"errors"
	"net/http"

	"roofcrm-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeletionRequestHandler handles the lead deletion approval workflow
type DeletionRequestHandler struct {
	deletionService     *service.DeletionService
	leadService         *service.LeadService
	notificationService *service.NotificationService
	logger              *zap.Logger
}

// NewDeletionRequestHandler creates a new deletion request handler
func NewDeletionRequestHandler(
	deletionService *service.DeletionService,
	leadService *service.LeadService,
	notificationService *service.NotificationService,
	logger *zap.Logger,
) *DeletionRequestHandler {
	return &DeletionRequestHandler{
		deletionService:     deletionService,
		leadService:         leadService,
		notificationService: notificationService,
		logger:              logger,
	}
}

// CreateDeletionRequestBody represents the request body for requesting a lead deletion
type CreateDeletionRequestBody struct {
	LeadID string `json:"leadId" binding:"required"`
	Reason string `json:"reason"`
}

// RejectDeletionRequestBody represents the request body for rejecting a deletion request
type RejectDeletionRequestBody struct {
	RejectionReason string `json:"rejectionReason"`
}

// ListPending handles GET /api/deletion-requests
func (h *DeletionRequestHandler) ListPending(c *gin.Context) {
	requests, err := h.deletionService.GetPendingDeletionRequests(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, err, "LIST_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    requests,
	})
}

// Create handles POST /api/deletion-requests
func (h *DeletionRequestHandler) Create(c *gin.Context) {
	var body CreateDeletionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	leadID, err := uuid.Parse(body.LeadID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_LEAD_ID", "Invalid leadId format")
		return
	}

	req, err := h.deletionService.CreateDeletionRequest(c.Request.Context(), service.CreateDeletionRequestInput{
		LeadID:    leadID,
		Requester: currentUser(c),
		Reason:    body.Reason,
	})
	if err != nil {
		respondServiceError(c, h.logger, err, "CREATE_FAILED")
		return
	}

	results := h.notificationService.SendDeletionRequestedNotification(c.Request.Context(), req)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"request":       req,
			"notifications": results,
		},
		"message": "Deletion request submitted for admin approval",
	})
}

// Approve handles POST /api/deletion-requests/:id/approve. The request is approved first,
// then the lead is deleted, then admins are notified. A failed notification never undoes
// the deletion.
func (h *DeletionRequestHandler) Approve(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Authorization required")
		return
	}
	id, ok := parseIDParam(c, "id", "deletion request")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	req, err := h.deletionService.ApproveDeletionRequest(ctx, id, user.ID)
	if err != nil {
		respondServiceError(c, h.logger, err, "APPROVAL_FAILED")
		return
	}
	log := h.logger.With(
		zap.String("deletion_request_id", req.ID.String()),
		zap.String("approved_by", user.ID.String()),
	)

	var deleted *service.DeleteLeadResult
	message := "Deletion request approved and lead deleted"
	if req.LeadID == nil {
		message = "Deletion request approved; the lead had already been removed"
	} else {
		deleted, err = h.leadService.DeleteLead(ctx, *req.LeadID, user)
		switch {
		case errors.Is(err, service.ErrNotFound):
			message = "Deletion request approved; the lead had already been removed"
		case err != nil:
			log.Error("Lead delete failed after approval", zap.String("lead_id", req.LeadID.String()), zap.Error(err))
			reportError(c, err)
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"data":    gin.H{"request": req},
				"error": gin.H{
					"code":    "LEAD_DELETE_FAILED",
					"message": "Deletion request was approved but the lead could not be deleted: " + err.Error(),
				},
			})
			return
		}
	}

	results := h.notificationService.SendDeletionApprovedNotification(ctx, req, user)
	failed := countFailed(results)
	if failed > 0 {
		log.Warn("Some deletion notifications were not delivered", zap.Int("failed", failed))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"data": gin.H{
			"request":             req,
			"deletion":            deleted,
			"notifications":       results,
			"notificationsFailed": failed,
		},
	})
}

// Reject handles POST /api/deletion-requests/:id/reject
func (h *DeletionRequestHandler) Reject(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Authorization required")
		return
	}
	id, ok := parseIDParam(c, "id", "deletion request")
	if !ok {
		return
	}

	// A missing or unreadable body leaves the reason empty; the service checks the role
	// before it rejects the empty reason.
	var body RejectDeletionRequestBody
	_ = c.ShouldBindJSON(&body)

	req, err := h.deletionService.RejectDeletionRequest(c.Request.Context(), id, user.ID, body.RejectionReason)
	if err != nil {
		respondServiceError(c, h.logger, err, "REJECTION_FAILED")
		return
	}

	results := h.notificationService.SendDeletionRejectedNotification(c.Request.Context(), req, user)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Deletion request rejected",
		"data": gin.H{
			"request":       req,
			"notifications": results,
		},
	})
}
