package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"roofcrm-backend/models"
	"roofcrm-backend/repository"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LeadService handles lead records, notes and the lead-deletion primitive
type LeadService struct {
	leads         LeadStore
	activities    ActivityStore
	files         *FileService
	notifications *NotificationService
	logger        *zap.Logger
}

// LeadServiceOption is a functional option for LeadService
type LeadServiceOption func(*LeadService)

// LeadWithLeadRepository sets the lead store
func LeadWithLeadRepository(repo LeadStore) LeadServiceOption {
	return func(s *LeadService) {
		s.leads = repo
	}
}

// LeadWithActivityRepository sets the activity log
func LeadWithActivityRepository(repo ActivityStore) LeadServiceOption {
	return func(s *LeadService) {
		s.activities = repo
	}
}

// LeadWithFileService sets the file coordinator used to clean up a deleted lead's files
func LeadWithFileService(files *FileService) LeadServiceOption {
	return func(s *LeadService) {
		s.files = files
	}
}

// LeadWithNotificationService sets the notifier used for mentions
func LeadWithNotificationService(n *NotificationService) LeadServiceOption {
	return func(s *LeadService) {
		s.notifications = n
	}
}

// LeadWithLogger sets the logger
func LeadWithLogger(logger *zap.Logger) LeadServiceOption {
	return func(s *LeadService) {
		s.logger = logger
	}
}

// NewLeadService creates a new lead service
func NewLeadService(opts ...LeadServiceOption) *LeadService {
	s := &LeadService{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLeadRequest represents a request to create a lead
type CreateLeadRequest struct {
	Name       string
	Email      *string
	Phone      *string
	Address    *string
	Status     models.LeadStatus
	AssignedTo *uuid.UUID
	CreatedBy  *uuid.UUID
}

// CreateLead creates a lead with status "new" unless one is given
func (s *LeadService) CreateLead(ctx context.Context, req CreateLeadRequest) (*models.Lead, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if req.Email != nil && *req.Email != "" {
		if err := checkmail.ValidateFormat(*req.Email); err != nil {
			return nil, validationError("invalid email: %v", err)
		}
	}
	status := req.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	if !status.Valid() {
		return nil, validationError("unknown status %q", status)
	}

	lead := &models.Lead{
		Name:       name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		Status:     status,
		AssignedTo: req.AssignedTo,
		CreatedBy:  req.CreatedBy,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activities, s.logger, &models.Activity{
		LeadID:      uuidPtr(lead.ID),
		UserID:      req.CreatedBy,
		Type:        models.ActivityLeadCreated,
		Description: "Lead created",
	})
	return lead, nil
}

// GetLead retrieves a lead by ID
func (s *LeadService) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, id)
		}
		return nil, err
	}
	return lead, nil
}

// ListLeads returns leads newest first
func (s *LeadService) ListLeads(ctx context.Context, filter repository.LeadFilter) ([]*models.Lead, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationError("unknown status %q", *filter.Status)
	}
	leads, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	return leads, nil
}

// DeleteLeadResult represents the result of deleting a lead
type DeleteLeadResult struct {
	Lead            *models.Lead   `json:"lead"`
	FilesNotRemoved int            `json:"files_not_removed"`
	OrphanedFiles   []OrphanedFile `json:"orphaned_files,omitempty"`
}

// DeleteLead removes a lead's stored files (best effort) and then the lead itself.
// Callers enforce who may delete.
func (s *LeadService) DeleteLead(ctx context.Context, leadID uuid.UUID, actor *models.User) (*DeleteLeadResult, error) {
	lead, err := s.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	result := &DeleteLeadResult{Lead: lead}
	if s.files != nil {
		orphaned, err := s.files.DeleteLeadFiles(ctx, leadID)
		if err != nil {
			s.logger.Warn("Failed to list lead files for cleanup", zap.String("lead_id", leadID.String()), zap.Error(err))
		}
		result.OrphanedFiles = orphaned
		result.FilesNotRemoved = len(orphaned)
	}

	if err := s.leads.Delete(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, leadID)
		}
		return nil, fmt.Errorf("failed to delete lead: %w", err)
	}

	activity := &models.Activity{
		Type:        models.ActivityLeadDeleted,
		Description: "Lead deleted: " + lead.Name,
		Metadata: map[string]any{
			"lead_id":           lead.ID.String(),
			"lead_name":         lead.Name,
			"files_not_removed": result.FilesNotRemoved,
		},
	}
	if len(result.OrphanedFiles) > 0 {
		// Cleanup reads the leftover object locations from here once the file records cascade away.
		activity.Metadata["orphaned_files"] = result.OrphanedFiles
	}
	if actor != nil {
		activity.UserID = uuidPtr(actor.ID)
	}
	recordActivity(ctx, s.activities, s.logger, activity)

	s.logger.Info("Lead deleted",
		zap.String("lead_id", lead.ID.String()),
		zap.Int("files_not_removed", result.FilesNotRemoved),
	)
	return result, nil
}

// AddNoteRequest represents a note on a lead, optionally tagging users
type AddNoteRequest struct {
	LeadID           uuid.UUID
	Author           *models.User
	Text             string
	MentionedUserIDs []uuid.UUID
}

// AddNoteResult carries the stored note and the mention deliveries
type AddNoteResult struct {
	Activity      *models.Activity        `json:"activity"`
	Notifications []models.DispatchResult `json:"notifications"`
}

// AddNote records a note on the lead's activity log and notifies mentioned users
func (s *LeadService) AddNote(ctx context.Context, req AddNoteRequest) (*AddNoteResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, validationError("note text is required")
	}
	lead, err := s.GetLead(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}

	mentioned := dedupe(req.MentionedUserIDs)
	mentionIDs := make([]string, len(mentioned))
	for i, id := range mentioned {
		mentionIDs[i] = id.String()
	}

	activity := &models.Activity{
		LeadID:      uuidPtr(lead.ID),
		Type:        models.ActivityNoteAdded,
		Description: text,
		Metadata:    map[string]any{"mentions": mentionIDs},
	}
	if req.Author != nil {
		activity.UserID = uuidPtr(req.Author.ID)
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}

	result := &AddNoteResult{Activity: activity, Notifications: []models.DispatchResult{}}
	if len(mentioned) > 0 && s.notifications != nil {
		result.Notifications = s.notifications.SendMentionNotification(ctx, MentionEvent{
			LeadID:           lead.ID,
			LeadName:         lead.Name,
			Author:           req.Author,
			Note:             text,
			MentionedUserIDs: mentioned,
		})
	}
	return result, nil
}

// ListActivities returns a lead's activity log, newest first
func (s *LeadService) ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]*models.Activity, error) {
	if _, err := s.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	activities, err := s.activities.ListByLeadID(ctx, leadID, limit)
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []*models.Activity{}
	}
	return activities, nil
}
