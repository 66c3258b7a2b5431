package common

import (
	"strings"
	"time"
)

// MealCategory 餐別分類
type MealCategory string

const (
	CategoryBreakfast MealCategory = "breakfast"
	CategoryLunch     MealCategory = "lunch"
	CategoryDinner    MealCategory = "dinner"
	CategorySnack     MealCategory = "snack"
)

// AllCategories 回傳所有餐別（固定順序）
func AllCategories() []MealCategory {
	return []MealCategory{CategoryBreakfast, CategoryLunch, CategoryDinner, CategorySnack}
}

// Valid 檢查餐別是否合法
func (c MealCategory) Valid() bool {
	switch c {
	case CategoryBreakfast, CategoryLunch, CategoryDinner, CategorySnack:
		return true
	}
	return false
}

// Nutrition 營養成分（克；熱量為 kcal）
type Nutrition struct {
	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
}

// CandidateIngredient 候選食譜的食材
type CandidateIngredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	Aisle  string  `json:"aisle,omitempty"`
}

// RecipeCandidate 來源 API 回傳的原始食譜記錄，取得後唯讀
type RecipeCandidate struct {
	ExternalID     int64                 `json:"external_id"`
	Title          string                `json:"title"`
	Summary        string                `json:"summary,omitempty"`
	ReadyInMinutes int                   `json:"ready_in_minutes"`
	Servings       int                   `json:"servings"`
	Ingredients    []CandidateIngredient `json:"ingredients"`
	Instructions   []string              `json:"instructions"`
	Nutrition      *Nutrition            `json:"nutrition,omitempty"`
	DishTypes      []string              `json:"dish_types,omitempty"`
	Diets          []string              `json:"diets,omitempty"`
	Cuisines       []string              `json:"cuisines,omitempty"`
	Rating         float64               `json:"rating"`
	AggregateLikes int                   `json:"aggregate_likes"`
	SourceURL      string                `json:"source_url,omitempty"`
}

// HasDishType 檢查是否帶有指定 dish type 標籤（不分大小寫）
func (r *RecipeCandidate) HasDishType(t string) bool {
	for _, dt := range r.DishTypes {
		if strings.EqualFold(dt, t) {
			return true
		}
	}
	return false
}

// ImportStrategy 匯入策略：針對單一餐別的搜尋過濾模板，屬於不可變設定值
type ImportStrategy struct {
	Name               string       `json:"name"`
	Description        string       `json:"description,omitempty"`
	Category           MealCategory `json:"category"`
	Query              string       `json:"query"`
	MinCarbs           float64      `json:"min_carbs,omitempty"`
	MaxCarbs           float64      `json:"max_carbs,omitempty"`
	MinProtein         float64      `json:"min_protein,omitempty"`
	MaxReadyTime       int          `json:"max_ready_time,omitempty"`
	ExcludeIngredients []string     `json:"exclude_ingredients,omitempty"`
	TargetCount        int          `json:"target_count"`
	Priority           int          `json:"priority"`
}

// SessionStatus 匯入場次狀態
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// ImportSession 一次匯入流程的明確狀態值；由排程器持有並在各階段間傳遞，
// 不使用任何全域指標。狀態到達 completed/failed 後不再變動。
type ImportSession struct {
	ID          string        `json:"id"`
	Date        time.Time     `json:"date"`
	CampaignDay int           `json:"campaign_day"`
	CycleDay    int           `json:"cycle_day"`
	Phase       int           `json:"phase"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at,omitempty"`
	Status      SessionStatus `json:"status"`
	Processed   int           `json:"processed"`
	Rejected    int           `json:"rejected"`
	Imported    int           `json:"imported"`
	APICalls    int           `json:"api_calls"`
	Errors      []string      `json:"errors,omitempty"`
}

// RecordError 紀錄非致命錯誤到場次錯誤清單
func (s *ImportSession) RecordError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// RecipeFingerprint 食譜指紋：僅供重複比對使用的摘要，不作為獨立實體持久化
type RecipeFingerprint struct {
	TitleHash       string   `json:"title_hash"`
	IngredientHash  string   `json:"ingredient_hash"`
	NutritionHash   string   `json:"nutrition_hash"`
	CookingTime     int      `json:"cooking_time"`
	Servings        int      `json:"servings"`
	TitleWords      []string `json:"title_words"`
	MainIngredients []string `json:"main_ingredients"`
}

// QualityScore 品質評分：三個加權子分數加總即為總分
type QualityScore struct {
	Total           float64            `json:"total"`
	Compliance      float64            `json:"compliance"`
	Practicality    float64            `json:"practicality"`
	Popularity      float64            `json:"popularity"`
	Breakdown       map[string]float64 `json:"breakdown,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

// CategoryScore 單一餐別的正規化分數
type CategoryScore struct {
	Category MealCategory `json:"category"`
	Score    float64      `json:"score"`
}

// CategorizationResult 餐別分類結果
type CategorizationResult struct {
	Category     MealCategory             `json:"category"`
	Confidence   float64                  `json:"confidence"`
	Scores       map[MealCategory]float64 `json:"scores"`
	Alternatives []CategoryScore          `json:"alternatives,omitempty"`
	Reasoning    []string                 `json:"reasoning,omitempty"`
	Tags         []string                 `json:"tags,omitempty"`
}

// ImportedRecipe 通過全部關卡後被接受的食譜，寫入儲存層後不再變動
type ImportedRecipe struct {
	Candidate      RecipeCandidate      `json:"candidate"`
	Fingerprint    RecipeFingerprint    `json:"fingerprint"`
	Quality        QualityScore         `json:"quality"`
	Categorization CategorizationResult `json:"categorization"`
	SessionID      string               `json:"session_id"`
	StrategyName   string               `json:"strategy_name"`
	ImportedAt     time.Time            `json:"imported_at"`
}
