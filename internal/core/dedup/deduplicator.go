package dedup

import (
	"context"
	"fmt"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// DuplicateType 重複類型
type DuplicateType string

const (
	DuplicateExact   DuplicateType = "exact"
	DuplicateSimilar DuplicateType = "similar"
	DuplicateVariant DuplicateType = "variant"
)

// 相似度混合權重（標題/食材/時間/份量/營養）
const (
	weightTitle      = 0.3
	weightIngredient = 0.4
	weightTime       = 0.1
	weightServings   = 0.1
	weightNutrition  = 0.1
)

// Result 重複檢查結果
type Result struct {
	IsDuplicate bool          `json:"is_duplicate"`
	Type        DuplicateType `json:"type,omitempty"`
	Confidence  float64       `json:"confidence,omitempty"`
	MatchingID  int64         `json:"matching_id,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// Deduplicator 去重引擎：維護已接受食譜的記憶體索引。
// 單一場次內只有排程器這一個寫入者，不需要鎖。
type Deduplicator struct {
	cfg config.DedupConfig

	entries     map[int64]common.RecipeFingerprint
	byTitleHash map[string]int64
	// 儲存層全部 external id，涵蓋種子範圍之外的既有食譜
	knownIDs map[int64]struct{}
	// 倒排索引：標題字 / 主要食材 → 食譜 ID 集合，
	// 把逐筆比對限制在至少共享一個 token 的候選上
	titleIndex      map[string]map[int64]struct{}
	ingredientIndex map[string]map[int64]struct{}

	idCache *RedisIDSet // 跨場次 external id 快速通道，可為 nil
}

// NewDeduplicator 創建去重引擎
func NewDeduplicator(cfg config.DedupConfig, idCache *RedisIDSet) *Deduplicator {
	return &Deduplicator{
		cfg:             cfg,
		entries:         make(map[int64]common.RecipeFingerprint),
		byTitleHash:     make(map[string]int64),
		knownIDs:        make(map[int64]struct{}),
		titleIndex:      make(map[string]map[int64]struct{}),
		ingredientIndex: make(map[string]map[int64]struct{}),
		idCache:         idCache,
	}
}

// Size 索引中的食譜數
func (d *Deduplicator) Size() int {
	return len(d.entries)
}

// Seed 以既有食譜預載索引（場次開始前由儲存層餵入）
func (d *Deduplicator) Seed(ctx context.Context, recipes []common.ImportedRecipe) {
	for i := range recipes {
		d.index(recipes[i].Candidate.ExternalID, recipes[i].Fingerprint)
	}
	common.LogInfo("去重索引預載完成",
		zap.Int("載入筆數", len(recipes)),
	)
}

// SeedIDs 以儲存層的完整 external id 清單預載精確比對集合。
// 指紋種子只涵蓋當日餐別，這裡把其他餐別的既有食譜也擋在階梯第一階。
func (d *Deduplicator) SeedIDs(ids []int64) {
	for _, id := range ids {
		d.knownIDs[id] = struct{}{}
	}
	common.LogInfo("external id 集合預載完成",
		zap.Int("載入筆數", len(ids)),
	)
}

// CheckDuplicate 判斷候選是否實質重複既有食譜。判定階梯，先中先贏：
// external id → exact/100；標題雜湊 → exact/95；模糊相似 ≥ 門檻 → similar；
// 營養雜湊相同且食材重疊 ≥ 門檻 → variant/75；否則 unique。
func (d *Deduplicator) CheckDuplicate(ctx context.Context, candidate *common.RecipeCandidate) (*Result, error) {
	fp := BuildFingerprint(candidate)
	return d.checkFingerprint(ctx, candidate.ExternalID, fp)
}

func (d *Deduplicator) checkFingerprint(ctx context.Context, externalID int64, fp common.RecipeFingerprint) (*Result, error) {
	// (a) external id 完全一致
	if _, ok := d.entries[externalID]; ok {
		return &Result{
			IsDuplicate: true,
			Type:        DuplicateExact,
			Confidence:  100,
			MatchingID:  externalID,
			Reason:      "external id already imported",
		}, nil
	}
	if _, ok := d.knownIDs[externalID]; ok {
		return &Result{
			IsDuplicate: true,
			Type:        DuplicateExact,
			Confidence:  100,
			MatchingID:  externalID,
			Reason:      "external id already imported",
		}, nil
	}

	// 跨場次快速通道：redis 中記錄過的 external id 直接視為 exact
	if d.idCache != nil {
		exists, err := d.idCache.Contains(ctx, externalID)
		if err != nil {
			// 快速通道失敗只降級，不中斷比對
			common.LogWarn("external id 快取查詢失敗",
				zap.Int64("external_id", externalID),
				zap.Error(err),
			)
		} else if exists {
			return &Result{
				IsDuplicate: true,
				Type:        DuplicateExact,
				Confidence:  100,
				MatchingID:  externalID,
				Reason:      "external id found in cross-session cache",
			}, nil
		}
	}

	// (b) 正規化標題雜湊一致
	if fp.TitleHash != "" {
		if matchID, ok := d.byTitleHash[fp.TitleHash]; ok {
			return &Result{
				IsDuplicate: true,
				Type:        DuplicateExact,
				Confidence:  95,
				MatchingID:  matchID,
				Reason:      "normalized title hash match",
			}, nil
		}
	}

	// (c)(d) 只比對至少共享一個標題字或主要食材的候選
	candidates := d.lookupCandidates(fp)

	var bestID int64
	var bestScore float64
	for id := range candidates {
		existing := d.entries[id]
		score := d.similarity(fp, existing)
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}

	if bestScore >= d.cfg.SimilarityThreshold {
		return &Result{
			IsDuplicate: true,
			Type:        DuplicateSimilar,
			Confidence:  bestScore,
			MatchingID:  bestID,
			Reason:      fmt.Sprintf("fuzzy similarity %.1f", bestScore),
		}, nil
	}

	// variant：營養雜湊一致且食材集合重疊達門檻
	if fp.NutritionHash != "" {
		for id := range candidates {
			existing := d.entries[id]
			if existing.NutritionHash != fp.NutritionHash {
				continue
			}
			if jaccard(fp.MainIngredients, existing.MainIngredients) >= d.cfg.VariantOverlap {
				return &Result{
					IsDuplicate: true,
					Type:        DuplicateVariant,
					Confidence:  75,
					MatchingID:  id,
					Reason:      "same nutrition bucket with overlapping ingredients",
				}, nil
			}
		}
	}

	return &Result{IsDuplicate: false}, nil
}

// AddRecipe 將新接受的食譜納入索引。必須在接受當下立刻執行，
// 讓同場次後續候選看得到它。
func (d *Deduplicator) AddRecipe(ctx context.Context, candidate *common.RecipeCandidate, fp common.RecipeFingerprint) {
	d.index(candidate.ExternalID, fp)

	if d.idCache != nil {
		if err := d.idCache.Add(ctx, candidate.ExternalID); err != nil {
			common.LogWarn("external id 快取寫入失敗",
				zap.Int64("external_id", candidate.ExternalID),
				zap.Error(err),
			)
		}
	}
}

func (d *Deduplicator) index(externalID int64, fp common.RecipeFingerprint) {
	d.entries[externalID] = fp
	if fp.TitleHash != "" {
		d.byTitleHash[fp.TitleHash] = externalID
	}
	for _, w := range fp.TitleWords {
		if d.titleIndex[w] == nil {
			d.titleIndex[w] = make(map[int64]struct{})
		}
		d.titleIndex[w][externalID] = struct{}{}
	}
	for _, ing := range fp.MainIngredients {
		if d.ingredientIndex[ing] == nil {
			d.ingredientIndex[ing] = make(map[int64]struct{})
		}
		d.ingredientIndex[ing][externalID] = struct{}{}
	}
}

// lookupCandidates 透過倒排索引收集候選比對對象
func (d *Deduplicator) lookupCandidates(fp common.RecipeFingerprint) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, w := range fp.TitleWords {
		for id := range d.titleIndex[w] {
			out[id] = struct{}{}
		}
	}
	for _, ing := range fp.MainIngredients {
		for id := range d.ingredientIndex[ing] {
			out[id] = struct{}{}
		}
	}
	return out
}

// similarity 加權相似度（0-100）：標題 Jaccard .3、食材 Jaccard .4、
// 時間接近度 .1、份量接近度 .1、營養雜湊一致 0/1 .1
func (d *Deduplicator) similarity(a, b common.RecipeFingerprint) float64 {
	titleSim := jaccard(a.TitleWords, b.TitleWords)
	ingredientSim := jaccard(a.MainIngredients, b.MainIngredients)
	timeSim := closeness(a.CookingTime, b.CookingTime)
	servingsSim := closeness(a.Servings, b.Servings)

	nutritionSim := 0.0
	if a.NutritionHash != "" && a.NutritionHash == b.NutritionHash {
		nutritionSim = 1.0
	}

	score := titleSim*weightTitle +
		ingredientSim*weightIngredient +
		timeSim*weightTime +
		servingsSim*weightServings +
		nutritionSim*weightNutrition

	return score * 100
}

// jaccard 集合 Jaccard 相似度
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	intersection := 0
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, dup := setB[s]; dup {
			continue
		}
		setB[s] = struct{}{}
		if _, ok := setA[s]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// closeness 數值接近度：1 - 相對差
func closeness(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	max := a
	if b > max {
		max = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(max)
}
