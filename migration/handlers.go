package migration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ConnectRequest struct {
	AuthType         string            `json:"auth_type" binding:"required,oneof=api_token soap"`
	SecretRef        string            `json:"secret_ref" binding:"required,envname"`
	AdministrationId string            `json:"administration_id"`
	Settings         map[string]string `json:"settings"`
}

type TriggerRunRequest struct {
	Modules               []string `json:"modules"`
	DryRun                bool     `json:"dry_run"`
	ClearExistingAccounts bool     `json:"clear_existing_accounts"`
}

type ResolvePendingRequestInput struct {
	Status string `json:"status" binding:"required,oneof=done failed abandoned"`
	Note   string `json:"note"`
}

type ConnectionResponse struct {
	Status           string `json:"status"`
	AdministrationId string `json:"administration_id,omitempty"`
}

type StatusResponse struct {
	Connection       ConnectionResponse `json:"connection"`
	LastRunAt        string             `json:"last_run_at,omitempty"`
	LastSuccessRunAt string             `json:"last_success_run_at,omitempty"`
}

type RunResponse struct {
	ID           uint            `json:"id"`
	Status       string          `json:"status"`
	TriggeredBy  string          `json:"triggered_by"`
	DryRun       bool            `json:"dry_run"`
	RecordsBuilt int             `json:"records_built"`
	ErrorCount   int             `json:"error_count"`
	StartedAt    string          `json:"started_at,omitempty"`
	FinishedAt   string          `json:"finished_at,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	Stats        json.RawMessage `json:"stats,omitempty"`
}

type RunDetailResponse struct {
	RunResponse
	Errors []models.MigrationError `json:"errors"`
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, companyId, ok := companyContext(c)
		if !ok {
			return
		}
		db := config.GetDB().WithContext(ctx)

		var conn models.SourceConnection
		err := db.Where("company_id = ? AND provider = ?", companyId, models.SourceProviderEBoekhouden).
			Take(&conn).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, StatusResponse{
				Connection: ConnectionResponse{Status: models.SourceStatusDisconnected},
			})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, StatusResponse{
			Connection: ConnectionResponse{
				Status:           conn.Status,
				AdministrationId: conn.AdministrationId,
			},
			LastRunAt:        formatTime(conn.LastRunAt),
			LastSuccessRunAt: formatTime(conn.LastSuccessRunAt),
		})
	}
}

func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, companyId, ok := companyContext(c)
		if !ok {
			return
		}

		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		settingsJSON, err := utils.MarshalToJSON(req.Settings)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings"})
			return
		}

		db := config.GetDB().WithContext(ctx)
		now := time.Now()

		var conn models.SourceConnection
		err = db.Where("company_id = ? AND provider = ?", companyId, models.SourceProviderEBoekhouden).
			Take(&conn).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			conn = models.SourceConnection{
				CompanyId:        companyId,
				Provider:         models.SourceProviderEBoekhouden,
				Status:           models.SourceStatusConnected,
				AuthType:         req.AuthType,
				AuthSecretRef:    req.SecretRef,
				AdministrationId: req.AdministrationId,
				SettingsJSON:     []byte(settingsJSON),
			}
			if err := db.Create(&conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if err := db.Model(&conn).Updates(map[string]interface{}{
				"status":            models.SourceStatusConnected,
				"auth_type":         req.AuthType,
				"auth_secret_ref":   req.SecretRef,
				"administration_id": req.AdministrationId,
				"settings_json":     []byte(settingsJSON),
				"updated_at":        now,
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "id": conn.ID})
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, companyId, ok := companyContext(c)
		if !ok {
			return
		}
		db := config.GetDB().WithContext(ctx)

		var conn models.SourceConnection
		err := db.Where("company_id = ? AND provider = ?", companyId, models.SourceProviderEBoekhouden).
			Take(&conn).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := db.Model(&conn).Updates(map[string]interface{}{
			"status":          models.SourceStatusDisconnected,
			"auth_secret_ref": "",
			"updated_at":      time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, companyId, ok := companyContext(c)
		if !ok {
			return
		}

		var req TriggerRunRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		conn, err := models.GetActiveSourceConnection(ctx, models.SourceProviderEBoekhouden)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "e-boekhouden is not connected"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		run, err := models.CreateMigrationRun(ctx, &models.NewMigrationRun{
			ConnectionId:          conn.ID,
			TriggeredBy:           models.MigrationTriggeredManual,
			Modules:               req.Modules,
			DryRun:                req.DryRun,
			ClearExistingAccounts: req.ClearExistingAccounts,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		payload := RunPayload{RunId: run.ID, CompanyId: companyId, ConnectionId: conn.ID}
		if envBoolDefault("MIGRATION_INLINE_RUN", false) {
			_ = ProcessMigrationRun(ctx, payload)
		} else {
			_ = PublishMigrationRun(ctx, payload)
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func RunHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := companyContext(c)
		if !ok {
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		runs, err := models.ListMigrationRuns(ctx, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]RunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := companyContext(c)
		if !ok {
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, err := models.GetMigrationRun(ctx, uint(id))
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		errs, err := models.ListMigrationErrors(ctx, run.ID, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, RunDetailResponse{
			RunResponse: mapRunToResponse(*run),
			Errors:      errs,
		})
	}
}

func RetryRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, companyId, ok := companyContext(c)
		if !ok {
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, err := models.GetMigrationRun(ctx, uint(id))
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var modules []string
		if len(run.ModulesJSON) > 0 {
			_ = json.Unmarshal(run.ModulesJSON, &modules)
		}

		// Retries of a dry run stay dry; promoting to a real run is an
		// explicit new trigger.
		newRun, err := models.CreateMigrationRun(ctx, &models.NewMigrationRun{
			ConnectionId: run.ConnectionId,
			TriggeredBy:  models.MigrationTriggeredRetry,
			Modules:      modules,
			ParentRunId:  &run.ID,
			DryRun:       run.DryRun,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		payload := RunPayload{RunId: newRun.ID, CompanyId: companyId, ConnectionId: run.ConnectionId}
		if envBoolDefault("MIGRATION_INLINE_RUN", false) {
			_ = ProcessMigrationRun(ctx, payload)
		} else {
			_ = PublishMigrationRun(ctx, payload)
		}

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

func PendingRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := companyContext(c)
		if !ok {
			return
		}

		kind := strings.TrimSpace(c.Query("kind"))
		requests, err := models.ListOpenPendingRequests(ctx, kind, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": requests})
	}
}

func ResolvePendingRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := companyContext(c)
		if !ok {
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
			return
		}

		var input ResolvePendingRequestInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		if err := models.ResolvePendingRequest(ctx, uint(id), input.Status, input.Note); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// companyContext reads the tenant from the X-Company-Id header, falling back
// to the company_id query parameter for internal tooling. Writes the error
// response itself when the header is missing.
func companyContext(c *gin.Context) (ctx context.Context, companyId string, ok bool) {
	companyId = strings.TrimSpace(c.GetHeader("X-Company-Id"))
	if companyId == "" {
		companyId = strings.TrimSpace(c.Query("company_id"))
	}
	if companyId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "company id is required"})
		return nil, "", false
	}
	return utils.SetCompanyIdInContext(c.Request.Context(), companyId), companyId, true
}

func mapRunToResponse(run models.MigrationRun) RunResponse {
	resp := RunResponse{
		ID:           run.ID,
		Status:       run.Status,
		TriggeredBy:  run.TriggeredBy,
		DryRun:       run.DryRun,
		RecordsBuilt: run.RecordsBuilt,
		ErrorCount:   run.ErrorCount,
		StartedAt:    formatTime(run.StartedAt),
		FinishedAt:   formatTime(run.FinishedAt),
		DurationMs:   run.DurationMs,
	}
	if len(run.StatsJSON) > 0 {
		resp.Stats = json.RawMessage(run.StatsJSON)
	}
	return resp
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
