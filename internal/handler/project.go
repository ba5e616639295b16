package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/backend/internal/model"
	"github.com/taskhub/backend/internal/service"
)

type ProjectHandler struct {
	svc *service.ProjectService
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// ListProjects godoc
// @Summary List the caller's projects
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Project
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	projects, err := h.svc.List(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GetProject godoc
// @Summary Get a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} model.Project
// @Failure 404 {object} model.ErrorResponse
// @Router /api/projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	project, err := h.svc.Get(c.Request.Context(), owner, id)
	if err != nil {
		writeError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, project)
}

// CreateProject godoc
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ProjectRequest true "Project"
// @Success 201 {object} model.Project
// @Failure 400 {object} model.ErrorResponse
// @Router /api/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req model.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.svc.Create(c.Request.Context(), owner, req)
	if err != nil {
		writeError(c, err, "project")
		return
	}
	c.JSON(http.StatusCreated, project)
}

// UpdateProject godoc
// @Summary Update a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param request body model.ProjectRequest true "Project"
// @Success 200 {object} model.Project
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	var req model.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.svc.Update(c.Request.Context(), owner, id, req)
	if err != nil {
		writeError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Delete a project
// @Description Tasks of the project are kept and unlinked.
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} model.MessageResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), owner, id); err != nil {
		writeError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "project deleted"})
}
