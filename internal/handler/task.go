package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/backend/internal/model"
	"github.com/taskhub/backend/internal/service"
)

type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

func taskFilter(c *gin.Context) (model.TaskFilter, error) {
	return service.ParseTaskFilter(service.TaskQuery{
		Status:    c.Query("status"),
		Priority:  c.Query("priority"),
		ProjectID: c.Query("project_id"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Search:    c.Query("search"),
	})
}

// ListTasks godoc
// @Summary List the caller's tasks
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, in_progress, completed or all"
// @Param priority query string false "low, medium, high or all"
// @Param project_id query string false "Project ID or all"
// @Param start_date query string false "YYYY-MM-DD, created on or after"
// @Param end_date query string false "YYYY-MM-DD, created on or before"
// @Param search query string false "Substring of title or description"
// @Success 200 {array} model.Task
// @Failure 400 {object} model.ErrorResponse
// @Router /api/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	filter, err := taskFilter(c)
	if err != nil {
		writeError(c, err, "task")
		return
	}
	tasks, err := h.svc.List(c.Request.Context(), owner, filter)
	if err != nil {
		writeError(c, err, "task")
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// CountTasks godoc
// @Summary Count the caller's tasks
// @Description Accepts the same filters as the task list.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.CountResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/tasks/count [get]
func (h *TaskHandler) CountTasks(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	filter, err := taskFilter(c)
	if err != nil {
		writeError(c, err, "task")
		return
	}
	count, err := h.svc.Count(c.Request.Context(), owner, filter)
	if err != nil {
		writeError(c, err, "task")
		return
	}
	c.JSON(http.StatusOK, model.CountResponse{Count: count})
}

// GetTask godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 404 {object} model.ErrorResponse
// @Router /api/tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "task")
	if !ok {
		return
	}
	task, err := h.svc.Get(c.Request.Context(), owner, id)
	if err != nil {
		writeError(c, err, "task")
		return
	}
	c.JSON(http.StatusOK, task)
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.TaskRequest true "Task"
// @Success 201 {object} model.Task
// @Failure 400 {object} model.ErrorResponse
// @Router /api/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req model.TaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.svc.Create(c.Request.Context(), owner, req)
	if err != nil {
		writeError(c, err, "task")
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body model.TaskRequest true "Task"
// @Success 200 {object} model.Task
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "task")
	if !ok {
		return
	}
	var req model.TaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.svc.Update(c.Request.Context(), owner, id, req)
	if err != nil {
		writeError(c, err, "task")
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.MessageResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	owner, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "task")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), owner, id); err != nil {
		writeError(c, err, "task")
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "task deleted"})
}
