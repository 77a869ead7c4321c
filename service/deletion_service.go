package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"roofcrm-backend/metrics"
	"roofcrm-backend/models"
	"roofcrm-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeletionService runs the lead deletion approval workflow. Approving a request only
// changes its state; deleting the lead and notifying admins is left to the caller.
type DeletionService struct {
	requests   DeletionRequestStore
	leads      LeadStore
	users      UserStore
	activities ActivityStore
	logger     *zap.Logger
}

// DeletionServiceOption is a functional option for DeletionService
type DeletionServiceOption func(*DeletionService)

// DeletionWithRequestRepository sets the deletion request store
func DeletionWithRequestRepository(repo DeletionRequestStore) DeletionServiceOption {
	return func(s *DeletionService) {
		s.requests = repo
	}
}

// DeletionWithLeadRepository sets the lead store
func DeletionWithLeadRepository(repo LeadStore) DeletionServiceOption {
	return func(s *DeletionService) {
		s.leads = repo
	}
}

// DeletionWithUserRepository sets the user store used for role checks
func DeletionWithUserRepository(repo UserStore) DeletionServiceOption {
	return func(s *DeletionService) {
		s.users = repo
	}
}

// DeletionWithActivityRepository sets the activity log
func DeletionWithActivityRepository(repo ActivityStore) DeletionServiceOption {
	return func(s *DeletionService) {
		s.activities = repo
	}
}

// DeletionWithLogger sets the logger
func DeletionWithLogger(logger *zap.Logger) DeletionServiceOption {
	return func(s *DeletionService) {
		s.logger = logger
	}
}

// NewDeletionService creates a new deletion service
func NewDeletionService(opts ...DeletionServiceOption) *DeletionService {
	s := &DeletionService{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDeletionRequestInput represents a request to delete a lead
type CreateDeletionRequestInput struct {
	LeadID    uuid.UUID
	Requester *models.User
	Reason    string
}

// CreateDeletionRequest opens a PENDING request with a snapshot of the lead
func (s *DeletionService) CreateDeletionRequest(ctx context.Context, in CreateDeletionRequestInput) (*models.DeletionRequest, error) {
	if in.LeadID == uuid.Nil {
		return nil, validationError("leadId is required")
	}
	if in.Requester == nil {
		return nil, ErrUnauthorized
	}

	lead, err := s.leads.GetByID(ctx, in.LeadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, in.LeadID)
		}
		return nil, err
	}

	req := &models.DeletionRequest{
		LeadID:        uuidPtr(lead.ID),
		LeadName:      lead.Name,
		LeadEmail:     lead.Email,
		LeadAddress:   lead.Address,
		LeadStatus:    lead.Status,
		RequestedBy:   in.Requester.ID,
		RequesterName: in.Requester.Name,
	}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		req.Reason = &reason
	}

	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: a deletion request for this lead is already pending", ErrConflict)
		}
		return nil, err
	}
	metrics.DeletionRequestTransitions.WithLabelValues(string(models.DeletionPending)).Inc()

	recordActivity(ctx, s.activities, s.logger, &models.Activity{
		LeadID:      uuidPtr(lead.ID),
		UserID:      uuidPtr(in.Requester.ID),
		Type:        models.ActivityDeletionRequested,
		Description: in.Requester.Name + " requested deletion of this lead",
		Metadata:    map[string]any{"deletion_request_id": req.ID.String(), "reason": in.Reason},
	})

	s.logger.Info("Deletion request created",
		zap.String("deletion_request_id", req.ID.String()),
		zap.String("lead_id", lead.ID.String()),
		zap.String("requested_by", in.Requester.ID.String()),
	)
	return req, nil
}

// CanApproveDeletions reports whether the user may approve or reject deletion requests.
// Unknown and inactive users cannot.
func (s *DeletionService) CanApproveDeletions(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Active && user.IsAdmin(), nil
}

// ApproveDeletionRequest moves a PENDING request to APPROVED
func (s *DeletionService) ApproveDeletionRequest(ctx context.Context, requestID, approverID uuid.UUID) (*models.DeletionRequest, error) {
	if err := s.authorize(ctx, approverID); err != nil {
		return nil, err
	}
	return s.transition(ctx, repository.TransitionParams{
		ID:         requestID,
		To:         models.DeletionApproved,
		ResolvedBy: approverID,
	})
}

// RejectDeletionRequest moves a PENDING request to REJECTED. A reason is required.
func (s *DeletionService) RejectDeletionRequest(ctx context.Context, requestID, approverID uuid.UUID, reason string) (*models.DeletionRequest, error) {
	if err := s.authorize(ctx, approverID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("rejectionReason is required")
	}
	return s.transition(ctx, repository.TransitionParams{
		ID:              requestID,
		To:              models.DeletionRejected,
		ResolvedBy:      approverID,
		RejectionReason: &reason,
	})
}

// GetPendingDeletionRequests lists PENDING requests, newest first
func (s *DeletionService) GetPendingDeletionRequests(ctx context.Context) ([]*models.DeletionRequest, error) {
	reqs, err := s.requests.ListByStatus(ctx, models.DeletionPending)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []*models.DeletionRequest{}
	}
	return reqs, nil
}

// GetDeletionRequest retrieves a request by ID
func (s *DeletionService) GetDeletionRequest(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: deletion request %s", ErrNotFound, id)
		}
		return nil, err
	}
	return req, nil
}

func (s *DeletionService) authorize(ctx context.Context, userID uuid.UUID) error {
	ok, err := s.CanApproveDeletions(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("Unauthorized deletion request resolution attempt", zap.String("user_id", userID.String()))
		return fmt.Errorf("%w: only admins can approve or reject deletion requests", ErrUnauthorized)
	}
	return nil
}

func (s *DeletionService) transition(ctx context.Context, p repository.TransitionParams) (*models.DeletionRequest, error) {
	req, err := s.requests.Transition(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotPending):
			return nil, fmt.Errorf("%w: %s", ErrAlreadyResolved, p.ID)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: deletion request %s", ErrNotFound, p.ID)
		default:
			return nil, err
		}
	}
	metrics.DeletionRequestTransitions.WithLabelValues(string(p.To)).Inc()

	activityType := models.ActivityDeletionApproved
	description := "Deletion request approved"
	if p.To == models.DeletionRejected {
		activityType = models.ActivityDeletionRejected
		description = "Deletion request rejected: " + deref(p.RejectionReason)
	}
	recordActivity(ctx, s.activities, s.logger, &models.Activity{
		LeadID:      req.LeadID,
		UserID:      uuidPtr(p.ResolvedBy),
		Type:        activityType,
		Description: description,
		Metadata:    map[string]any{"deletion_request_id": req.ID.String()},
	})

	s.logger.Info("Deletion request resolved",
		zap.String("deletion_request_id", req.ID.String()),
		zap.String("status", string(req.Status)),
		zap.String("resolved_by", p.ResolvedBy.String()),
	)
	return req, nil
}
