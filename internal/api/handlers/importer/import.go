package importer

import (
	"context"
	"errors"
	"net/http"

	"recipe-importer/internal/core/catalog"
	coreimporter "recipe-importer/internal/core/importer"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 匯入管理處理器
type Handler struct {
	orchestrator *coreimporter.Orchestrator
	store        coreimporter.RecipeStore
}

// NewHandler 創建匯入管理處理器
func NewHandler(orchestrator *coreimporter.Orchestrator, store coreimporter.RecipeStore) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		store:        store,
	}
}

// HandleStatus 回報活動進度、儲存層累計數與排程器狀態
func (h *Handler) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.CurrentStatus(c.Request.Context()))
}

// HandleRunDaily 觸發當日排程匯入。場次在背景執行，
// 已有場次執行中時回傳 409。
func (h *Handler) HandleRunDaily(c *gin.Context) {
	if h.orchestrator.Running() {
		c.JSON(http.StatusConflict, gin.H{
			"error": common.ErrImportRunning.Message,
			"code":  common.ErrCodeConflict,
		})
		return
	}

	go func() {
		report, err := h.orchestrator.ExecuteDailyImport(context.Background())
		if err != nil {
			common.LogError("背景每日匯入失敗", zap.Error(err))
			return
		}
		common.LogInfo("背景每日匯入完成",
			zap.String("session_id", report.Session.ID),
			zap.Int("imported", report.Session.Imported),
		)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status": "started",
	})
}

// ManualImportRequest 手動匯入請求
type ManualImportRequest struct {
	Strategy string `json:"strategy" binding:"required"`
	Count    int    `json:"count"`
}

// HandleManualImport 以指定策略觸發手動匯入，同步執行並回傳報告
func (h *Handler) HandleManualImport(c *gin.Context) {
	var req ManualImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "strategy is required",
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}

	report, err := h.orchestrator.ExecuteManualImport(c.Request.Context(), req.Strategy, req.Count)
	if err != nil {
		h.writeImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// HandleLatestReport 最近一次場次報告。format=text 時輸出文字版。
func (h *Handler) HandleLatestReport(c *gin.Context) {
	report := h.orchestrator.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no completed session yet",
			"code":  common.ErrCodeNotFound,
		})
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, report.Render())
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleStrategies 列出可用匯入策略
func (h *Handler) HandleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategies": catalog.AllStrategyNames(),
	})
}

// HandleStats 儲存層各餐別累計數
func (h *Handler) HandleStats(c *gin.Context) {
	counts, err := h.store.GetCountByCategory(c.Request.Context())
	if err != nil {
		common.LogError("讀取儲存層統計失敗", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read store stats",
			"code":  common.ErrCodePersistenceError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"counts": counts,
	})
}

// writeImportError 將匯入錯誤映射為 HTTP 響應
func (h *Handler) writeImportError(c *gin.Context, err error) {
	if common.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}
	if errors.Is(err, coreimporter.ErrCampaignInactive) {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"code":  common.ErrCodeConflict,
		})
		return
	}

	var ce *common.CustomError
	if errors.As(err, &ce) {
		status := ce.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"error": ce.Message,
			"code":  ce.Code,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": err.Error(),
		"code":  common.ErrCodeInternalError,
	})
}
