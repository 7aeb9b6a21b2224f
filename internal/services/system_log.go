package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangang/projecthub/internal/config"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

func LogInfo(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	writeLog(models.LogLevelInfo, module, action, message, userID, nil, ip, userAgent, extra)
}

func LogWarning(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	writeLog(models.LogLevelWarning, module, action, message, userID, nil, ip, userAgent, extra)
}

func LogError(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	writeLog(models.LogLevelError, module, action, message, userID, nil, ip, userAgent, extra)
}

// LogAudit records a request against a project-scoped route.
func LogAudit(level, module, action, message string, userID, projectID *uint, ip, userAgent string, extra interface{}) {
	writeLog(level, module, action, message, userID, projectID, ip, userAgent, extra)
}

func writeLog(level, module, action, message string, userID, projectID *uint, ip, userAgent string, extra interface{}) {
	if globalDB == nil {
		return
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		ProjectID: projectID,
		IP:        ip,
		UserAgent: userAgent,
		Extra:     encodeExtra(extra),
		CreatedAt: time.Now(),
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("[SystemLog] write failed")
	}
}

func encodeExtra(extra interface{}) string {
	if extra == nil {
		return ""
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return ""
	}
	return string(b)
}

type SystemLogService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db, now: time.Now}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	ProjectID uint   `form:"project_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(ctx context.Context, req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.ProjectID != 0 {
		query = query.Where("project_id = ?", req.ProjectID)
	}
	if req.StartDate != "" {
		if start, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			query = query.Where("created_at >= ?", start)
		}
	}
	if req.EndDate != "" {
		if end, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
		}
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, dbError(err, nil)
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, dbError(err, nil)
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules(ctx context.Context) ([]string, error) {
	var modules []string
	if err := s.db.WithContext(ctx).Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, dbError(err, nil)
	}
	return modules, nil
}

// RecordEvent writes one audit row per membership event. It is the
// processor behind both event queue flavours; a redelivered event is a
// no-op.
func (s *SystemLogService) RecordEvent(ctx context.Context, event *MembershipEvent) error {
	module := "Contributors"
	if event.Type == EventProjectCreated || event.Type == EventProjectDeleted {
		module = "Projects"
	}

	projectID := event.ProjectID
	entry := &models.SystemLog{
		Level:     models.LogLevelInfo,
		Module:    module,
		Action:    string(event.Type),
		Message:   describeEvent(event),
		ProjectID: &projectID,
		Extra:     encodeExtra(event),
		CreatedAt: event.OccurredAt,
	}
	if event.ID != "" {
		eventID := event.ID
		entry.EventID = &eventID
	}
	if event.ActorID != 0 {
		actorID := event.ActorID
		entry.UserID = &actorID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(entry).Error
}

func describeEvent(e *MembershipEvent) string {
	switch e.Type {
	case EventProjectCreated:
		return fmt.Sprintf("project %d created by user %d", e.ProjectID, e.UserID)
	case EventProjectDeleted:
		return fmt.Sprintf("project %d deleted by user %d", e.ProjectID, e.ActorID)
	case EventContributorAdded:
		return fmt.Sprintf("user %d joined project %d as %s", e.UserID, e.ProjectID, e.Role)
	case EventRoleUpdated:
		return fmt.Sprintf("user %d role in project %d changed from %s to %s", e.UserID, e.ProjectID, e.PreviousRole, e.Role)
	case EventContributorLeft:
		return fmt.Sprintf("user %d (%s) removed from project %d", e.UserID, e.PreviousRole, e.ProjectID)
	}
	return fmt.Sprintf("%s on project %d", e.Type, e.ProjectID)
}

// CleanupOldLogs deletes logs older than retentionDays and returns the
// number of deleted rows. A non-positive retention disables cleanup.
func (s *SystemLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// StartLogCleanupScheduler registers the retention job on a new cron
// scheduler and starts it. Callers stop the returned scheduler on shutdown.
func StartLogCleanupScheduler(service *SystemLogService, cfg *config.AuditConfig) (*cron.Cron, error) {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CleanupCron, func() {
		runCleanup(service, cfg.RetentionDays)
	}); err != nil {
		return nil, fmt.Errorf("invalid audit cleanup schedule %q: %w", cfg.CleanupCron, err)
	}

	scheduler.Start()
	logger.Infof("[SystemLog] Cleanup scheduled (cron: %s, retention: %d days)", cfg.CleanupCron, cfg.RetentionDays)
	return scheduler, nil
}

func runCleanup(service *SystemLogService, retentionDays int) {
	if retentionDays <= 0 {
		logger.Infof("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return
	}

	deleted, err := service.CleanupOldLogs(context.Background(), retentionDays)
	if err != nil {
		logger.Errorf("[SystemLog] Failed to cleanup old logs: %v", err)
		return
	}
	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d old log entries (older than %d days)", deleted, retentionDays)
	}
}
