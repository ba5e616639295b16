package service

import (
	"context"
	"strings"
	"time"

	"github.com/taskhub/backend/internal/db"
	"github.com/taskhub/backend/internal/model"
)

type projectRepository interface {
	ListProjects(ctx context.Context, ownerID int64) ([]model.Project, error)
	GetProject(ctx context.Context, id, ownerID int64) (*model.Project, error)
	CreateProject(ctx context.Context, ownerID int64, req model.ProjectRequest, now time.Time) (*model.Project, error)
	UpdateProject(ctx context.Context, id, ownerID int64, req model.ProjectRequest, now time.Time) error
	DeleteProject(ctx context.Context, id, ownerID int64) error
}

type ProjectService struct {
	repo projectRepository
	now  func() time.Time
}

func NewProjectService(repo projectRepository) *ProjectService {
	return &ProjectService{repo: repo, now: time.Now}
}

func (s *ProjectService) List(ctx context.Context, ownerID int64) ([]model.Project, error) {
	return s.repo.ListProjects(ctx, ownerID)
}

func (s *ProjectService) Get(ctx context.Context, ownerID, id int64) (*model.Project, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	project, err := s.repo.GetProject(ctx, id, ownerID)
	if err != nil {
		return nil, notFound(err)
	}
	return project, nil
}

func (s *ProjectService) Create(ctx context.Context, ownerID int64, req model.ProjectRequest) (*model.Project, error) {
	req, err := normalizeProject(req)
	if err != nil {
		return nil, err
	}
	project, err := s.repo.CreateProject(ctx, ownerID, req, s.now())
	if err != nil {
		return nil, ownerGone(err)
	}
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, ownerID, id int64, req model.ProjectRequest) (*model.Project, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	req, err := normalizeProject(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProject(ctx, id, ownerID, req, s.now()); err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, ownerID, id)
}

// Delete removes the project. Its tasks stay and lose their project link.
func (s *ProjectService) Delete(ctx context.Context, ownerID, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return notFound(s.repo.DeleteProject(ctx, id, ownerID))
}

func normalizeProject(req model.ProjectRequest) (model.ProjectRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, invalidf("project name is required")
	}

	req.Status = strings.TrimSpace(req.Status)
	switch req.Status {
	case "":
		req.Status = model.ProjectStatusActive
	case model.ProjectStatusActive, model.ProjectStatusCompleted, model.ProjectStatusArchived:
	default:
		return req, invalidf("invalid project status %q", req.Status)
	}
	return req, nil
}

// notFound maps a no-rows result, including a conditional write that matched
// nothing, onto ErrNotFound.
// ownerGone reports a write for an account deleted while the request was in
// flight as a revoked session.
func ownerGone(err error) error {
	if err != nil && db.IsForeignKeyViolation(err) {
		return ErrRevokedToken
	}
	return err
}

func notFound(err error) error {
	if err != nil && db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}
