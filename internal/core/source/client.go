package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SearchFilters 來源搜尋過濾條件。排程器每次分頁請求前會依活動階段調整
// Sort / Diet，這些調整只作用於送出的請求，不回寫策略設定。
type SearchFilters struct {
	Query              string
	MinCarbs           float64
	MaxCarbs           float64
	MinProtein         float64
	MaxReadyTime       int
	ExcludeIngredients []string
	Sort               string
	Diet               string
	Type               string
	Offset             int
	Number             int
}

// SearchPage 一頁搜尋結果
type SearchPage struct {
	Results      []common.RecipeCandidate
	Offset       int
	Number       int
	TotalResults int
}

// Client 第三方食譜目錄客戶端（Spoonacular 風格 API）
type Client struct {
	config *config.Config
	client *resty.Client
}

// NewClient 創建來源客戶端
func NewClient(cfg *config.Config) *Client {
	client := resty.New().
		SetBaseURL(cfg.Source.BaseURL).
		SetTimeout(cfg.Source.Timeout).
		SetQueryParam("apiKey", cfg.Source.APIKey).
		SetHeader("Accept", "application/json")

	return &Client{
		config: cfg,
		client: client,
	}
}

// ---- wire 結構：只在本包內使用，對外一律轉成 common.RecipeCandidate ----

type searchResponse struct {
	Results      []recipePayload `json:"results"`
	Offset       int             `json:"offset"`
	Number       int             `json:"number"`
	TotalResults int             `json:"totalResults"`
}

type recipePayload struct {
	ID                   int64                `json:"id"`
	Title                string               `json:"title"`
	Summary              string               `json:"summary"`
	ReadyInMinutes       int                  `json:"readyInMinutes"`
	Servings             int                  `json:"servings"`
	SourceURL            string               `json:"sourceUrl"`
	SpoonacularScore     float64              `json:"spoonacularScore"`
	AggregateLikes       int                  `json:"aggregateLikes"`
	DishTypes            []string             `json:"dishTypes"`
	Diets                []string             `json:"diets"`
	Cuisines             []string             `json:"cuisines"`
	ExtendedIngredients  []ingredientPayload  `json:"extendedIngredients"`
	AnalyzedInstructions []instructionPayload `json:"analyzedInstructions"`
	Nutrition            *nutritionPayload    `json:"nutrition"`
}

type ingredientPayload struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	Aisle  string  `json:"aisle"`
}

type instructionPayload struct {
	Steps []struct {
		Number int    `json:"number"`
		Step   string `json:"step"`
	} `json:"steps"`
}

type nutritionPayload struct {
	Nutrients []struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
		Unit   string  `json:"unit"`
	} `json:"nutrients"`
}

// Search 依過濾條件搜尋食譜，支援 offset 分頁
func (c *Client) Search(ctx context.Context, filters SearchFilters) (*SearchPage, error) {
	params := map[string]string{
		"query":                filters.Query,
		"offset":               strconv.Itoa(filters.Offset),
		"number":               strconv.Itoa(filters.Number),
		"addRecipeNutrition":   "true",
		"fillIngredients":      "true",
		"instructionsRequired": "true",
	}
	if filters.MinCarbs > 0 {
		params["minCarbs"] = strconv.FormatFloat(filters.MinCarbs, 'f', -1, 64)
	}
	if filters.MaxCarbs > 0 {
		params["maxCarbs"] = strconv.FormatFloat(filters.MaxCarbs, 'f', -1, 64)
	}
	if filters.MinProtein > 0 {
		params["minProtein"] = strconv.FormatFloat(filters.MinProtein, 'f', -1, 64)
	}
	if filters.MaxReadyTime > 0 {
		params["maxReadyTime"] = strconv.Itoa(filters.MaxReadyTime)
	}
	if len(filters.ExcludeIngredients) > 0 {
		params["excludeIngredients"] = strings.Join(filters.ExcludeIngredients, ",")
	}
	if filters.Sort != "" {
		params["sort"] = filters.Sort
	}
	if filters.Diet != "" {
		params["diet"] = filters.Diet
	}
	if filters.Type != "" {
		params["type"] = filters.Type
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&searchResponse{}).
		Get("/recipes/complexSearch")
	common.LogSourceCall("/recipes/complexSearch", time.Since(start), err)

	if err != nil {
		return nil, common.NewError(common.ErrCodeSourceError, "搜尋請求失敗", http.StatusServiceUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewError(common.ErrCodeSourceError,
			fmt.Sprintf("搜尋回應狀態異常: %d", resp.StatusCode()),
			resp.StatusCode(), fmt.Errorf("source search returned status %d: %s", resp.StatusCode(), resp.String()))
	}

	body, ok := resp.Result().(*searchResponse)
	if !ok || body == nil {
		return nil, common.NewError(common.ErrCodeSourceError, "搜尋回應解析失敗", http.StatusBadGateway, fmt.Errorf("unexpected search response shape"))
	}

	page := &SearchPage{
		Offset:       body.Offset,
		Number:       body.Number,
		TotalResults: body.TotalResults,
	}
	for i := range body.Results {
		page.Results = append(page.Results, toCandidate(&body.Results[i]))
	}

	common.LogDebug("搜尋完成",
		zap.String("query", filters.Query),
		zap.Int("offset", filters.Offset),
		zap.Int("results", len(page.Results)),
		zap.Int("total", page.TotalResults),
	)

	return page, nil
}

// GetDetail 取得單筆食譜完整內容（含營養成分）
func (c *Client) GetDetail(ctx context.Context, externalID int64) (*common.RecipeCandidate, error) {
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("includeNutrition", "true").
		SetResult(&recipePayload{}).
		Get(fmt.Sprintf("/recipes/%d/information", externalID))
	common.LogSourceCall("/recipes/information", time.Since(start), err)

	if err != nil {
		return nil, common.NewError(common.ErrCodeSourceError, "明細請求失敗", http.StatusServiceUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewError(common.ErrCodeSourceError,
			fmt.Sprintf("明細回應狀態異常: %d", resp.StatusCode()),
			resp.StatusCode(), fmt.Errorf("source detail returned status %d", resp.StatusCode()))
	}

	body, ok := resp.Result().(*recipePayload)
	if !ok || body == nil {
		return nil, common.NewError(common.ErrCodeSourceError, "明細回應解析失敗", http.StatusBadGateway, fmt.Errorf("unexpected detail response shape"))
	}

	candidate := toCandidate(body)
	return &candidate, nil
}

// toCandidate 將 wire 結構轉為領域候選記錄
func toCandidate(p *recipePayload) common.RecipeCandidate {
	c := common.RecipeCandidate{
		ExternalID:     p.ID,
		Title:          p.Title,
		Summary:        stripHTML(p.Summary),
		ReadyInMinutes: p.ReadyInMinutes,
		Servings:       p.Servings,
		DishTypes:      p.DishTypes,
		Diets:          p.Diets,
		Cuisines:       p.Cuisines,
		// Spoonacular 評分為 0-100，轉成 0-5 星
		Rating:         p.SpoonacularScore / 20,
		AggregateLikes: p.AggregateLikes,
		SourceURL:      p.SourceURL,
	}

	for _, ing := range p.ExtendedIngredients {
		c.Ingredients = append(c.Ingredients, common.CandidateIngredient{
			Name:   ing.Name,
			Amount: ing.Amount,
			Unit:   ing.Unit,
			Aisle:  ing.Aisle,
		})
	}

	for _, inst := range p.AnalyzedInstructions {
		for _, step := range inst.Steps {
			if strings.TrimSpace(step.Step) != "" {
				c.Instructions = append(c.Instructions, step.Step)
			}
		}
	}

	if p.Nutrition != nil {
		n := &common.Nutrition{}
		for _, nutrient := range p.Nutrition.Nutrients {
			switch strings.ToLower(nutrient.Name) {
			case "calories":
				n.Calories = nutrient.Amount
			case "carbohydrates":
				n.Carbs = nutrient.Amount
			case "protein":
				n.Protein = nutrient.Amount
			case "fat":
				n.Fat = nutrient.Amount
			case "fiber":
				n.Fiber = nutrient.Amount
			case "sugar":
				n.Sugar = nutrient.Amount
			}
		}
		c.Nutrition = n
	}

	return c
}

// stripHTML 去除摘要中的 HTML 標籤
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
