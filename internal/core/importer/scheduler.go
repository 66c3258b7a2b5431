package importer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"recipe-importer/internal/core/catalog"
	"recipe-importer/internal/core/categorize"
	"recipe-importer/internal/core/dedup"
	"recipe-importer/internal/core/quality"
	"recipe-importer/internal/core/source"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrCampaignInactive 活動尚未開始或已結束
var ErrCampaignInactive = errors.New("campaign is not active")

// 來源暫時性失敗的重試退避基準
const retryBackoff = 5 * time.Second

// SourceClient 食譜來源的讀取介面
type SourceClient interface {
	Search(ctx context.Context, filters source.SearchFilters) (*source.SearchPage, error)
	GetDetail(ctx context.Context, externalID int64) (*common.RecipeCandidate, error)
}

// RecipeStore 食譜儲存層介面。排程器在場次開始時讀取既有食譜預載
// 去重索引，場次結束時一次性批次寫入。
type RecipeStore interface {
	GetAllIDs(ctx context.Context) ([]int64, error)
	GetByCategory(ctx context.Context, category common.MealCategory, limit int) ([]common.ImportedRecipe, error)
	BatchSave(ctx context.Context, recipes []common.ImportedRecipe) error
	GetCount(ctx context.Context) (int, error)
	GetCountByCategory(ctx context.Context) (map[common.MealCategory]int, error)
}

// Orchestrator 匯入排程器：串起來源、去重、品質驗證、分類與儲存的
// 單執行緒循序管線。時鐘、延遲與亂數來源皆可注入。
type Orchestrator struct {
	cfg         *config.Config
	source      SourceClient
	store       RecipeStore
	dedup       *dedup.Deduplicator
	validator   *quality.Validator
	categorizer *categorize.Categorizer

	rng   *rand.Rand
	now   func() time.Time
	sleep func(time.Duration)

	mu         sync.Mutex
	running    bool
	lastReport *ImportReport
}

// NewOrchestrator 創建匯入排程器
func NewOrchestrator(cfg *config.Config, src SourceClient, store RecipeStore, dd *dedup.Deduplicator, rng *rand.Rand) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		source:      src,
		store:       store,
		dedup:       dd,
		validator:   quality.NewValidator(cfg.Campaign.MinQualityScore),
		categorizer: categorize.NewCategorizer(),
		rng:         rng,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// SetClock 注入時鐘與延遲實作
func (o *Orchestrator) SetClock(now func() time.Time, sleep func(time.Duration)) {
	o.now = now
	o.sleep = sleep
}

// ExecuteDailyImport 執行當日排程匯入：依活動日序決定循環日計畫與階段,
// 逐一執行當日策略直到日配額滿或策略用盡。
func (o *Orchestrator) ExecuteDailyImport(ctx context.Context) (*ImportReport, error) {
	session, err := NewSession(o.cfg.Campaign, o.now())
	if err != nil {
		return nil, err
	}

	plan, err := catalog.PlanForCycleDay(session.CycleDay)
	if err != nil {
		return nil, common.NewError(common.ErrCodeConfigError, "循環日計畫不存在", http.StatusInternalServerError, err)
	}
	strategies := catalog.StrategiesForDay(plan)

	common.LogInfo("開始每日匯入場次",
		zap.String("session_id", session.ID),
		zap.Int("campaign_day", session.CampaignDay),
		zap.Int("cycle_day", session.CycleDay),
		zap.Int("phase", session.Phase),
		zap.String("plan", plan.Description),
	)

	return o.run(ctx, session, strategies, o.cfg.Campaign.DailyQuota)
}

// ExecuteManualImport 以單一策略執行手動匯入，quota 為本次接受上限
func (o *Orchestrator) ExecuteManualImport(ctx context.Context, strategyName string, quota int) (*ImportReport, error) {
	strategy, err := catalog.StrategyByName(strategyName)
	if err != nil {
		return nil, common.NewValidationError(err.Error())
	}
	if quota <= 0 {
		quota = strategy.TargetCount
	}

	session, err := NewSession(o.cfg.Campaign, o.now())
	if err != nil {
		return nil, err
	}
	session.ID = common.GenerateSessionID("manual")
	// 手動匯入不套用活動階段調整，固定以第一階段條件送出請求
	session.Phase = 1

	common.LogInfo("開始手動匯入場次",
		zap.String("session_id", session.ID),
		zap.String("strategy", strategyName),
		zap.Int("quota", quota),
	)

	return o.run(ctx, session, []common.ImportStrategy{strategy}, quota)
}

// run 場次主流程。同一時間只允許一個場次執行。
func (o *Orchestrator) run(ctx context.Context, session *common.ImportSession, strategies []common.ImportStrategy, quota int) (*ImportReport, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, common.ErrImportRunning
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	if err := o.seedDedup(ctx, strategies); err != nil {
		session.Status = common.SessionFailed
		return nil, err
	}

	var accepted []common.ImportedRecipe
	rejections := make(map[string]int)

	for _, strategy := range strategies {
		if len(accepted) >= quota {
			break
		}
		o.runStrategy(ctx, session, strategy, quota, &accepted, rejections)
		if ctx.Err() != nil {
			break
		}
	}

	// 單一批次寫入。寫入失敗屬於致命錯誤，場次標記失敗。
	if len(accepted) > 0 {
		if err := o.store.BatchSave(ctx, accepted); err != nil {
			session.Status = common.SessionFailed
			session.EndedAt = o.now()
			common.LogError("批次寫入失敗",
				zap.String("session_id", session.ID),
				zap.Int("pending", len(accepted)),
				zap.Error(err),
			)
			return nil, common.NewError(common.ErrCodePersistenceError, "批次寫入失敗", http.StatusInternalServerError, err)
		}
	}

	session.Imported = len(accepted)
	session.Status = common.SessionCompleted
	session.EndedAt = o.now()

	storeCounts, err := o.store.GetCountByCategory(ctx)
	if err != nil {
		// 覆蓋率統計失敗不影響場次結果
		common.LogWarn("讀取儲存層覆蓋率失敗", zap.Error(err))
		storeCounts = nil
	}

	report := BuildReport(session, accepted, rejections, storeCounts, quota)
	o.mu.Lock()
	o.lastReport = report
	o.mu.Unlock()

	common.LogInfo("匯入場次完成",
		zap.String("session_id", session.ID),
		zap.Int("processed", session.Processed),
		zap.Int("imported", session.Imported),
		zap.Int("rejected", session.Rejected),
		zap.Int("api_calls", session.APICalls),
	)

	return report, nil
}

// seedDedup 預載去重索引：先以儲存層全部 external id 建立精確比對集合，
// 再載入當日餐別的指紋做模糊比對
func (o *Orchestrator) seedDedup(ctx context.Context, strategies []common.ImportStrategy) error {
	ids, err := o.store.GetAllIDs(ctx)
	if err != nil {
		return common.NewError(common.ErrCodePersistenceError, "讀取既有食譜 id 失敗", http.StatusInternalServerError, err)
	}
	o.dedup.SeedIDs(ids)

	seeded := make(map[common.MealCategory]struct{})
	for _, strategy := range strategies {
		if _, ok := seeded[strategy.Category]; ok {
			continue
		}
		seeded[strategy.Category] = struct{}{}

		existing, err := o.store.GetByCategory(ctx, strategy.Category, o.cfg.Store.SeedLimit)
		if err != nil {
			return common.NewError(common.ErrCodePersistenceError, "讀取既有食譜失敗", http.StatusInternalServerError, err)
		}
		o.dedup.Seed(ctx, existing)
	}
	return nil
}

// runStrategy 執行單一策略：offset 分頁搜尋，逐筆處理候選，
// 直到策略目標、日配額或結果耗盡為止。
func (o *Orchestrator) runStrategy(ctx context.Context, session *common.ImportSession, strategy common.ImportStrategy, quota int, accepted *[]common.ImportedRecipe, rejections map[string]int) {
	pageSize := o.cfg.Source.PageSize
	offset := 0
	strategyAccepted := 0
	consecutiveFailures := 0

	common.LogInfo("執行匯入策略",
		zap.String("session_id", session.ID),
		zap.String("strategy", strategy.Name),
		zap.Int("target", strategy.TargetCount),
	)

	for {
		if ctx.Err() != nil {
			return
		}
		if strategyAccepted >= strategy.TargetCount || len(*accepted) >= quota {
			return
		}

		// 每次來源呼叫前的固定間隔
		o.sleep(o.cfg.Campaign.CallDelay)
		filters := o.buildFilters(strategy, session.Phase, offset, pageSize)
		session.APICalls++
		page, err := o.source.Search(ctx, filters)
		if err != nil {
			// 暫時性來源錯誤：退避重試，連續失敗達上限即放棄本策略
			consecutiveFailures++
			session.RecordError(fmt.Sprintf("strategy %s: %v", strategy.Name, err))
			common.LogWarn("來源搜尋失敗",
				zap.String("strategy", strategy.Name),
				zap.Int("consecutive_failures", consecutiveFailures),
				zap.Error(err),
			)
			if consecutiveFailures >= o.cfg.Campaign.MaxRetries {
				common.LogWarn("連續失敗達上限，放棄策略",
					zap.String("strategy", strategy.Name),
				)
				return
			}
			o.sleep(retryBackoff * time.Duration(consecutiveFailures))
			continue
		}
		consecutiveFailures = 0

		// 空頁代表結果耗盡，是正常結束而非錯誤
		if len(page.Results) == 0 {
			return
		}

		for i := range page.Results {
			if strategyAccepted >= strategy.TargetCount || len(*accepted) >= quota {
				return
			}
			if o.processCandidate(ctx, session, strategy, &page.Results[i], accepted, rejections) {
				strategyAccepted++
			}
		}

		offset += pageSize
		if page.TotalResults > 0 && offset >= page.TotalResults {
			return
		}
	}
}

// processCandidate 單筆候選管線：去重 → 品質驗證 → 餐別分類 → 接受。
// 回傳是否被接受。被接受的候選立即納入去重索引，讓同場次後續候選
// 看得到它。
func (o *Orchestrator) processCandidate(ctx context.Context, session *common.ImportSession, strategy common.ImportStrategy, candidate *common.RecipeCandidate, accepted *[]common.ImportedRecipe, rejections map[string]int) bool {
	session.Processed++

	// 搜尋結果缺少做法或營養時補打 detail，欄位齊全則省一次呼叫
	if len(candidate.Instructions) == 0 || candidate.Nutrition == nil {
		o.sleep(o.cfg.Campaign.CallDelay)
		session.APICalls++
		detailed, err := o.source.GetDetail(ctx, candidate.ExternalID)
		if err != nil {
			session.RecordError(fmt.Sprintf("detail fetch failed for %d: %v", candidate.ExternalID, err))
			session.Rejected++
			rejections["detail fetch failed"]++
			common.LogWarn("候選詳情取得失敗",
				zap.Int64("external_id", candidate.ExternalID),
				zap.Error(err),
			)
			return false
		}
		candidate = detailed
	}

	dupResult, err := o.dedup.CheckDuplicate(ctx, candidate)
	if err != nil {
		session.RecordError(fmt.Sprintf("dedup check failed for %d: %v", candidate.ExternalID, err))
		session.Rejected++
		rejections["dedup check error"]++
		return false
	}
	if dupResult.IsDuplicate {
		session.Rejected++
		rejections[fmt.Sprintf("duplicate (%s)", dupResult.Type)]++
		common.LogDebug("候選為重複食譜",
			zap.Int64("external_id", candidate.ExternalID),
			zap.String("type", string(dupResult.Type)),
			zap.Int64("matching_id", dupResult.MatchingID),
		)
		return false
	}

	validation := o.validator.Validate(candidate, strategy.Category)
	if !validation.IsValid {
		session.Rejected++
		for _, reason := range validation.RejectionReasons {
			rejections[reason]++
		}
		return false
	}

	categorization := o.categorizer.Categorize(candidate)

	fp := dedup.BuildFingerprint(candidate)
	recipe := common.ImportedRecipe{
		Candidate:      *candidate,
		Fingerprint:    fp,
		Quality:        validation.Score,
		Categorization: *categorization,
		SessionID:      session.ID,
		StrategyName:   strategy.Name,
		ImportedAt:     o.now(),
	}

	o.dedup.AddRecipe(ctx, candidate, fp)
	*accepted = append(*accepted, recipe)

	common.LogInfo("接受候選食譜",
		zap.Int64("external_id", candidate.ExternalID),
		zap.String("title", candidate.Title),
		zap.String("category", string(categorization.Category)),
		zap.Float64("score", validation.Score.Total),
	)
	return true
}

// buildFilters 由策略組出搜尋條件，並依活動階段調整請求參數。
// 階段調整只作用於送出的請求，策略設定本身不變：
// 第一階段人氣排序，第二階段五五輪替素食與無麩質偏好，第三階段隨機排序。
func (o *Orchestrator) buildFilters(strategy common.ImportStrategy, phase, offset, pageSize int) source.SearchFilters {
	filters := source.SearchFilters{
		Query:              strategy.Query,
		MinCarbs:           strategy.MinCarbs,
		MaxCarbs:           strategy.MaxCarbs,
		MinProtein:         strategy.MinProtein,
		MaxReadyTime:       strategy.MaxReadyTime,
		ExcludeIngredients: strategy.ExcludeIngredients,
		Type:               string(strategy.Category),
		Offset:             offset,
		Number:             pageSize,
	}

	switch phase {
	case 1:
		filters.Sort = "popularity"
	case 2:
		if o.rng.Intn(2) == 0 {
			filters.Diet = "vegetarian"
		} else {
			filters.Diet = "gluten free"
		}
	default:
		filters.Sort = "random"
	}

	return filters
}

// Status 目前排程器狀態（管理介面用）
type Status struct {
	Running     bool                        `json:"running"`
	CampaignDay int                         `json:"campaign_day"`
	CycleDay    int                         `json:"cycle_day"`
	Phase       int                         `json:"phase"`
	StoredTotal int                         `json:"stored_total"`
	StoreCounts map[common.MealCategory]int `json:"store_counts,omitempty"`
	LastReport  *ImportReport               `json:"last_report,omitempty"`
}

// Running 是否有場次執行中
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// CurrentStatus 回報活動進度、儲存層累計數與最近一次場次報告
func (o *Orchestrator) CurrentStatus(ctx context.Context) Status {
	o.mu.Lock()
	status := Status{
		Running:    o.running,
		LastReport: o.lastReport,
	}
	o.mu.Unlock()

	if start, err := o.cfg.Campaign.Start(); err == nil {
		day := CampaignDay(start, o.now())
		status.CampaignDay = day
		status.CycleDay = CycleDay(day)
		status.Phase = PhaseFor(day)
	}

	total, err := o.store.GetCount(ctx)
	if err != nil {
		common.LogWarn("讀取儲存層總數失敗", zap.Error(err))
		return status
	}
	status.StoredTotal = total

	counts, err := o.store.GetCountByCategory(ctx)
	if err != nil {
		common.LogWarn("讀取儲存層覆蓋率失敗", zap.Error(err))
		return status
	}
	status.StoreCounts = counts
	return status
}

// LastReport 最近一次完成場次的報告，尚無場次時回傳 nil
func (o *Orchestrator) LastReport() *ImportReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReport
}
