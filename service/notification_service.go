package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"roofcrm-backend/metrics"
	"roofcrm-backend/models"
	"roofcrm-backend/notify"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NotificationService resolves recipients for CRM events and fans messages out to the
// configured channels. Delivery problems are logged and reported in the returned
// results; they never surface as errors to the caller.
type NotificationService struct {
	users        UserStore
	activities   ActivityStore
	channels     []notify.Channel
	broadcasters []notify.Broadcaster
	appBaseURL   string
	sendTimeout  time.Duration
	concurrency  int
	logger       *zap.Logger
}

// NotificationServiceOption is a functional option for NotificationService
type NotificationServiceOption func(*NotificationService)

// NotificationWithUserRepository sets the user store used to resolve recipients
func NotificationWithUserRepository(repo UserStore) NotificationServiceOption {
	return func(s *NotificationService) {
		s.users = repo
	}
}

// NotificationWithActivityRepository sets the activity log
func NotificationWithActivityRepository(repo ActivityStore) NotificationServiceOption {
	return func(s *NotificationService) {
		s.activities = repo
	}
}

// NotificationWithChannel adds a per-recipient delivery channel
func NotificationWithChannel(ch notify.Channel) NotificationServiceOption {
	return func(s *NotificationService) {
		s.channels = append(s.channels, ch)
	}
}

// NotificationWithBroadcaster adds a team channel that gets one post per event
func NotificationWithBroadcaster(b notify.Broadcaster) NotificationServiceOption {
	return func(s *NotificationService) {
		s.broadcasters = append(s.broadcasters, b)
	}
}

// NotificationWithAppBaseURL sets the CRM URL used for links in messages
func NotificationWithAppBaseURL(url string) NotificationServiceOption {
	return func(s *NotificationService) {
		s.appBaseURL = strings.TrimSuffix(url, "/")
	}
}

// NotificationWithDelivery sets the per-send timeout and the dispatch concurrency
func NotificationWithDelivery(timeout time.Duration, concurrency int) NotificationServiceOption {
	return func(s *NotificationService) {
		s.sendTimeout = timeout
		s.concurrency = concurrency
	}
}

// NotificationWithLogger sets the logger
func NotificationWithLogger(logger *zap.Logger) NotificationServiceOption {
	return func(s *NotificationService) {
		s.logger = logger
	}
}

// NewNotificationService creates a new notification service
func NewNotificationService(opts ...NotificationServiceOption) *NotificationService {
	s := &NotificationService{
		sendTimeout: 15 * time.Second,
		concurrency: 8,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendDeletionRequestedNotification tells every admin that a deletion awaits review
func (s *NotificationService) SendDeletionRequestedNotification(ctx context.Context, req *models.DeletionRequest) []models.DispatchResult {
	msg := composeMessage(models.EventDeletionRequested, map[string]string{
		"leadName":      req.LeadName,
		"leadEmail":     deref(req.LeadEmail),
		"leadAddress":   deref(req.LeadAddress),
		"leadStatus":    string(req.LeadStatus),
		"requesterName": req.RequesterName,
		"reason":        deref(req.Reason),
	}, s.link("/deletion-requests"))

	return s.dispatch(ctx, msg, s.admins(ctx, msg.Event))
}

// SendDeletionApprovedNotification tells every admin that a lead was deleted
func (s *NotificationService) SendDeletionApprovedNotification(ctx context.Context, req *models.DeletionRequest, approver *models.User) []models.DispatchResult {
	msg := composeMessage(models.EventDeletionApproved, map[string]string{
		"leadName":      req.LeadName,
		"leadAddress":   deref(req.LeadAddress),
		"requesterName": req.RequesterName,
		"approverName":  userName(approver),
	}, s.link("/deletion-requests"))

	return s.dispatch(ctx, msg, s.admins(ctx, msg.Event))
}

// SendDeletionRejectedNotification tells the requester their request was turned down
func (s *NotificationService) SendDeletionRejectedNotification(ctx context.Context, req *models.DeletionRequest, approver *models.User) []models.DispatchResult {
	link := ""
	if req.LeadID != nil {
		link = s.link("/leads/" + req.LeadID.String())
	}
	msg := composeMessage(models.EventDeletionRejected, map[string]string{
		"leadName":        req.LeadName,
		"approverName":    userName(approver),
		"rejectionReason": deref(req.RejectionReason),
	}, link)

	return s.dispatch(ctx, msg, s.usersByID(ctx, msg.Event, []uuid.UUID{req.RequestedBy}))
}

// MentionEvent describes a note that tags other users
type MentionEvent struct {
	LeadID           uuid.UUID
	LeadName         string
	Author           *models.User
	Note             string
	MentionedUserIDs []uuid.UUID
}

// SendMentionNotification notifies only the tagged users
func (s *NotificationService) SendMentionNotification(ctx context.Context, ev MentionEvent) []models.DispatchResult {
	msg := composeMessage(models.EventMention, map[string]string{
		"leadName":   ev.LeadName,
		"authorName": userName(ev.Author),
		"note":       ev.Note,
	}, s.link("/leads/"+ev.LeadID.String()))

	return s.dispatch(ctx, msg, s.usersByID(ctx, msg.Event, ev.MentionedUserIDs))
}

// FileUploadedEvent describes a file that arrived on a lead
type FileUploadedEvent struct {
	LeadID   uuid.UUID
	LeadName string
	FileID   uuid.UUID
	FileName string
	Uploader *models.User
	Source   string
}

// SendFileUploadedNotification notifies nobody. It records an activity on the lead instead.
func (s *NotificationService) SendFileUploadedNotification(ctx context.Context, ev FileUploadedEvent) []models.DispatchResult {
	source := ev.Source
	if source == "" {
		source = "upload"
	}
	msg := composeMessage(models.EventFileUploaded, map[string]string{
		"leadName":     ev.LeadName,
		"fileName":     ev.FileName,
		"uploaderName": userName(ev.Uploader),
		"source":       source,
	}, "")

	activity := &models.Activity{
		LeadID:      uuidPtr(ev.LeadID),
		Type:        models.ActivityFileUploaded,
		Description: msg.Body,
		Metadata: map[string]any{
			"file_id":   ev.FileID.String(),
			"file_name": ev.FileName,
			"source":    source,
		},
	}
	if ev.Uploader != nil {
		activity.UserID = uuidPtr(ev.Uploader.ID)
	}
	recordActivity(ctx, s.activities, s.logger, activity)
	return []models.DispatchResult{}
}

func (s *NotificationService) admins(ctx context.Context, event models.NotificationEvent) []*models.User {
	if s.users == nil {
		return nil
	}
	admins, err := s.users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.logger.Warn("Failed to resolve admin recipients",
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return nil
	}
	return admins
}

func (s *NotificationService) usersByID(ctx context.Context, event models.NotificationEvent, ids []uuid.UUID) []*models.User {
	if s.users == nil || len(ids) == 0 {
		return nil
	}
	users, err := s.users.ListByIDs(ctx, dedupe(ids))
	if err != nil {
		s.logger.Warn("Failed to resolve recipients",
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return nil
	}
	return users
}

// dispatch makes one attempt per recipient per channel, plus one post per broadcaster.
// Attempts are independent; results are ordered recipient by recipient, then broadcasts.
func (s *NotificationService) dispatch(ctx context.Context, msg models.Message, recipients []*models.User) []models.DispatchResult {
	results := make([]models.DispatchResult, len(recipients)*len(s.channels)+len(s.broadcasters))

	var g errgroup.Group
	g.SetLimit(max(s.concurrency, 1))

	i := 0
	for _, user := range recipients {
		to := models.Recipient{UserID: user.ID, Name: user.Name, Email: strings.TrimSpace(user.Email)}
		for _, ch := range s.channels {
			slot := &results[i]
			i++
			g.Go(func() error {
				*slot = s.sendOne(ctx, ch, to, msg)
				return nil
			})
		}
	}
	for _, b := range s.broadcasters {
		slot := &results[i]
		i++
		g.Go(func() error {
			*slot = s.broadcastOne(ctx, b, msg)
			return nil
		})
	}
	_ = g.Wait()

	if len(results) > 0 {
		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}
		s.logger.Info("Notification dispatched",
			zap.String("event", string(msg.Event)),
			zap.Int("attempts", len(results)),
			zap.Int("failed", failed),
		)
	}
	return results
}

func (s *NotificationService) sendOne(ctx context.Context, ch notify.Channel, to models.Recipient, msg models.Message) models.DispatchResult {
	result := models.DispatchResult{
		RecipientID: uuidPtr(to.UserID),
		Recipient:   to.Email,
		Channel:     ch.Name(),
	}

	err := checkmail.ValidateFormat(to.Email)
	if err == nil {
		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		err = ch.Send(sendCtx, to, msg)
		cancel()
	} else {
		err = errors.New("invalid recipient address: " + err.Error())
	}

	metrics.NotificationDispatch.WithLabelValues(string(msg.Event), ch.Name(), metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("Notification delivery failed",
			zap.String("event", string(msg.Event)),
			zap.String("channel", ch.Name()),
			zap.String("recipient_id", to.UserID.String()),
			zap.String("recipient", to.Email),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

func (s *NotificationService) broadcastOne(ctx context.Context, b notify.Broadcaster, msg models.Message) models.DispatchResult {
	result := models.DispatchResult{Recipient: "team:" + b.Name(), Channel: b.Name()}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	err := b.Broadcast(sendCtx, msg)
	cancel()

	metrics.NotificationDispatch.WithLabelValues(string(msg.Event), b.Name(), metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("Team notification failed",
			zap.String("event", string(msg.Event)),
			zap.String("channel", b.Name()),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

func (s *NotificationService) link(path string) string {
	if s.appBaseURL == "" {
		return ""
	}
	return s.appBaseURL + path
}

func userName(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Name
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
