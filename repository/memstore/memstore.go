// Package memstore provides in-memory implementations of the repository contracts.
// It backs service and handler tests and mirrors the Postgres semantics that matter
// to callers: ErrNotFound, ErrConflict, ErrNotPending and newest-first ordering.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"roofcrm-backend/models"
	"roofcrm-backend/repository"

	"github.com/google/uuid"
)

// Store groups the in-memory repositories behind one lock so cascades stay consistent.
type Store struct {
	mu sync.Mutex
	// clock is advanced on every insert so ordering by CreatedAt is deterministic.
	clock time.Time

	users      map[uuid.UUID]*models.User
	leads      map[uuid.UUID]*models.Lead
	files      map[uuid.UUID]*models.File
	requests   map[uuid.UUID]*models.DeletionRequest
	activities []*models.Activity

	Users            *Users
	Leads            *Leads
	Files            *Files
	DeletionRequests *DeletionRequests
	Activities       *Activities
}

// New returns an empty store
func New() *Store {
	s := &Store{
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    make(map[uuid.UUID]*models.User),
		leads:    make(map[uuid.UUID]*models.Lead),
		files:    make(map[uuid.UUID]*models.File),
		requests: make(map[uuid.UUID]*models.DeletionRequest),
	}
	s.Users = &Users{s: s}
	s.Leads = &Leads{s: s}
	s.Files = &Files{s: s}
	s.DeletionRequests = &DeletionRequests{s: s}
	s.Activities = &Activities{s: s}
	return s
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Users is the in-memory user repository
type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = r.s.tick()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) ListByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	for _, u := range r.s.users {
		if u.Role == role && u.Active {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Users) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		u, ok := r.s.users[id]
		if !ok || !u.Active || seen[id] {
			continue
		}
		seen[id] = true
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Leads is the in-memory lead repository
type Leads struct{ s *Store }

func (r *Leads) Create(_ context.Context, lead *models.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	lead.CreatedAt = r.s.tick()
	lead.UpdatedAt = lead.CreatedAt
	cp := *lead
	r.s.leads[lead.ID] = &cp
	return nil
}

func (r *Leads) GetByID(_ context.Context, id uuid.UUID) (*models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *Leads) List(_ context.Context, filter repository.LeadFilter) ([]*models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Lead
	for _, l := range r.s.leads {
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Leads) SetDriveFolderID(_ context.Context, id uuid.UUID, folderID string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	if l.GoogleDriveFolderID == nil || *l.GoogleDriveFolderID == "" {
		l.GoogleDriveFolderID = &folderID
	}
	return *l.GoogleDriveFolderID, nil
}

// Delete removes the lead, cascades its files and nulls lead references like the SQL schema does.
func (r *Leads) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.leads, id)
	for fid, f := range r.s.files {
		if f.LeadID == id {
			delete(r.s.files, fid)
		}
	}
	for _, req := range r.s.requests {
		if req.LeadID != nil && *req.LeadID == id {
			req.LeadID = nil
		}
	}
	for _, a := range r.s.activities {
		if a.LeadID != nil && *a.LeadID == id {
			a.LeadID = nil
		}
	}
	return nil
}

// Files is the in-memory file repository
type Files struct{ s *Store }

func (r *Files) Create(_ context.Context, file *models.File) error {
	if err := file.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[file.LeadID]; !ok {
		return repository.ErrNotFound
	}
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	file.CreatedAt = r.s.tick()
	cp := *file
	r.s.files[file.ID] = &cp
	return nil
}

func (r *Files) GetByID(_ context.Context, id uuid.UUID) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *Files) ListByLeadID(_ context.Context, leadID uuid.UUID) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.File
	for _, f := range r.s.files {
		if f.LeadID == leadID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Files) UpdateLocations(_ context.Context, file *models.File) error {
	if err := file.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[file.ID]
	if !ok {
		return repository.ErrNotFound
	}
	f.BlobPath, f.BlobURL = file.BlobPath, file.BlobURL
	f.DriveFileID, f.DriveURL = file.DriveFileID, file.DriveURL
	f.StorageLocation = file.StorageLocation
	return nil
}

func (r *Files) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.files, id)
	return nil
}

// Count returns the number of stored file records
func (r *Files) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.files)
}

// DeletionRequests is the in-memory deletion request repository
type DeletionRequests struct{ s *Store }

func (r *DeletionRequests) Create(_ context.Context, req *models.DeletionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.requests {
		if existing.Status == models.DeletionPending && existing.LeadID != nil && req.LeadID != nil &&
			*existing.LeadID == *req.LeadID {
			return repository.ErrConflict
		}
	}
	req.ID = uuid.New()
	req.Status = models.DeletionPending
	req.CreatedAt = r.s.tick()
	cp := *req
	r.s.requests[req.ID] = &cp
	return nil
}

func (r *DeletionRequests) GetByID(_ context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *DeletionRequests) ListByStatus(_ context.Context, status models.DeletionRequestStatus) ([]*models.DeletionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.DeletionRequest
	for _, req := range r.s.requests {
		if req.Status == status {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Transition is the compare-and-set equivalent of the conditional UPDATE.
func (r *DeletionRequests) Transition(_ context.Context, p repository.TransitionParams) (*models.DeletionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[p.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Status != models.DeletionPending {
		return nil, repository.ErrNotPending
	}
	now := r.s.tick()
	resolvedBy := p.ResolvedBy
	req.Status = p.To
	req.ResolvedBy = &resolvedBy
	req.ResolvedAt = &now
	req.RejectionReason = p.RejectionReason
	cp := *req
	return &cp, nil
}

// Activities is the in-memory activity repository
type Activities struct{ s *Store }

func (r *Activities) Create(_ context.Context, activity *models.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	activity.ID = uuid.New()
	activity.CreatedAt = r.s.tick()
	cp := *activity
	r.s.activities = append(r.s.activities, &cp)
	return nil
}

func (r *Activities) ListByLeadID(_ context.Context, leadID uuid.UUID, limit int) ([]*models.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Activity
	for i := len(r.s.activities) - 1; i >= 0; i-- {
		a := r.s.activities[i]
		if a.LeadID != nil && *a.LeadID == leadID {
			cp := *a
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every recorded activity in insertion order
func (r *Activities) All() []*models.Activity {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Activity, len(r.s.activities))
	for i, a := range r.s.activities {
		cp := *a
		out[i] = &cp
	}
	return out
}
