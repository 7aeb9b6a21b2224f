package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/middleware"
	"github.com/huangang/projecthub/internal/services"
	"github.com/huangang/projecthub/pkg/response"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// GET /api/projects/:id/tasks
func (h *TaskHandler) List(c *gin.Context) {
	var req services.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.taskService.List(c.Request.Context(), middleware.GetProjectID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/projects/:id/tasks/:taskId
func (h *TaskHandler) Get(c *gin.Context) {
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), middleware.GetProjectID(c), taskID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, task)
}

// POST /api/projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), middleware.GetProjectID(c), middleware.GetUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, task)
}

// PUT /api/projects/:id/tasks/:taskId
func (h *TaskHandler) Update(c *gin.Context) {
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return
	}

	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), middleware.GetProjectID(c), taskID, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, task)
}

// DELETE /api/projects/:id/tasks/:taskId
func (h *TaskHandler) Delete(c *gin.Context) {
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), middleware.GetProjectID(c), taskID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "task deleted"})
}
