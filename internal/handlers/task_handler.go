package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
)

type TaskHandler struct {
	db *gorm.DB
}

func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{db: db}
}

type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required"`
	Description string              `json:"description"`
	AssignedTo  string              `json:"assigned_to" validate:"required"`
	DueDate     string              `json:"due_date"`
	Priority    models.TaskPriority `json:"priority" validate:"omitempty,oneof=niskie normalne wysokie pilne"`
}

// UpdateTaskRequest uses pointers so that absent fields can be told apart
// from zero values.
type UpdateTaskRequest struct {
	Title            *string   `json:"title"`
	Description      *string   `json:"description"`
	AssignedTo       *string   `json:"assigned_to"`
	DueDate          *string   `json:"due_date"`
	Status           *string   `json:"status"`
	Priority         *string   `json:"priority"`
	CompletionPhotos *[]string `json:"completion_photos"`
}

// Create adds a planner task (admin only). A missing or unparsable due date
// silently falls back to now; the update path is stricter.
func (h *TaskHandler) Create(c echo.Context) error {
	admin := middleware.GetUser(c)

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Tytuł i przypisany pracownik są wymagane"})
	}

	dueDate := time.Now().UTC()
	if req.DueDate != "" {
		if parsed, err := time.Parse(time.RFC3339, req.DueDate); err == nil {
			dueDate = parsed
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = models.TaskPriorityNormal
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		AssignedBy:  admin.UserID,
		DueDate:     dueDate,
		Status:      models.TaskStatusPending,
		Priority:    priority,
	}
	if err := h.db.Create(&task).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	return c.JSON(http.StatusCreated, task)
}

// List returns tasks sorted by due date; non-admins only see their own.
func (h *TaskHandler) List(c echo.Context) error {
	user := middleware.GetUser(c)

	query := h.db.Model(&models.Task{})
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if user.Role != models.UserRoleAdmin {
		query = query.Where("assigned_to = ?", user.UserID)
	} else if assignedTo := c.QueryParam("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to = ?", assignedTo)
	}

	var tasks []models.Task
	if err := query.Order("due_date").Find(&tasks).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, tasks)
}

// Get returns one task, visible to the assignee, the assigner and admins.
func (h *TaskHandler) Get(c echo.Context) error {
	user := middleware.GetUser(c)

	var task models.Task
	if err := h.db.Where("task_id = ?", c.Param("id")).First(&task).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono zadania"})
	}

	if user.Role != models.UserRoleAdmin && task.AssignedTo != user.UserID && task.AssignedBy != user.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Brak dostępu do zadania"})
	}
	return c.JSON(http.StatusOK, task)
}

// Update edits a task. The assignee may only change status and completion
// photos; everything else requires the admin role. Unlike Create, a
// malformed due date here is rejected.
func (h *TaskHandler) Update(c echo.Context) error {
	user := middleware.GetUser(c)

	var task models.Task
	if err := h.db.Where("task_id = ?", c.Param("id")).First(&task).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono zadania"})
	}

	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}

	isAdmin := user.Role == models.UserRoleAdmin
	isAssignee := task.AssignedTo == user.UserID
	if !isAdmin && !isAssignee {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Brak dostępu do zadania"})
	}

	adminOnly := req.Title != nil || req.Description != nil || req.AssignedTo != nil ||
		req.DueDate != nil || req.Priority != nil
	if adminOnly && !isAdmin {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Brak uprawnień administratora"})
	}

	changed := false
	if req.Status != nil {
		task.Status = models.TaskStatus(*req.Status)
		changed = true
	}
	if req.Title != nil {
		task.Title = *req.Title
		changed = true
	}
	if req.Description != nil {
		task.Description = *req.Description
		changed = true
	}
	if req.AssignedTo != nil {
		task.AssignedTo = *req.AssignedTo
		changed = true
	}
	if req.Priority != nil {
		task.Priority = models.TaskPriority(*req.Priority)
		changed = true
	}
	if req.DueDate != nil {
		parsed, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowa data"})
		}
		task.DueDate = parsed
		changed = true
	}
	if req.CompletionPhotos != nil {
		now := time.Now().UTC()
		task.CompletionPhotos = *req.CompletionPhotos
		task.CompletedAt = &now
		task.CompletedBy = user.UserID
		changed = true
	}

	if !changed {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Brak danych do aktualizacji"})
	}

	if err := h.db.Save(&task).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Zadanie zaktualizowane"})
}

// Delete removes a task (admin only).
func (h *TaskHandler) Delete(c echo.Context) error {
	result := h.db.Where("task_id = ?", c.Param("id")).Delete(&models.Task{})
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono zadania"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Zadanie usunięte"})
}

// Reminders returns unfinished tasks due within the next two hours, scoped
// to the caller unless they are an admin.
func (h *TaskHandler) Reminders(c echo.Context) error {
	user := middleware.GetUser(c)

	now := time.Now().UTC()
	horizon := now.Add(2 * time.Hour)

	query := h.db.Model(&models.Task{}).
		Where("status <> ?", models.TaskStatusDone).
		Where("due_date >= ? AND due_date <= ?", now, horizon)
	if user.Role != models.UserRoleAdmin {
		query = query.Where("assigned_to = ?", user.UserID)
	}

	var tasks []models.Task
	if err := query.Order("due_date").Find(&tasks).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, tasks)
}
