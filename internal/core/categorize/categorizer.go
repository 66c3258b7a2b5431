package categorize

import (
	"fmt"
	"sort"
	"strings"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// 候補門檻：正規化分數高於此值的非首選餐別列入候補
const alternativeThreshold = 0.30

// Categorizer 餐別分類器：以營養輪廓、時段關鍵字、食材、備料特徵與
// 來源標籤的加權混合決定餐別。純函數式計算，無內部狀態。
type Categorizer struct{}

// NewCategorizer 創建餐別分類器
func NewCategorizer() *Categorizer {
	return &Categorizer{}
}

// Categorize 計算候選食譜的餐別歸屬。回傳的 Scores 已正規化為總和 1，
// Category 為最高分餐別，Confidence 為其分數乘上 100。
func (c *Categorizer) Categorize(candidate *common.RecipeCandidate) *common.CategorizationResult {
	raw := make(map[common.MealCategory]float64)
	var reasoning []string

	title := strings.ToLower(candidate.Title)
	// 時段關鍵字掃描標題、摘要與作法全文
	bodyText := title + " " + strings.ToLower(candidate.Summary) + " " +
		strings.ToLower(strings.Join(candidate.Instructions, " "))
	ingredientText := ""
	for _, ing := range candidate.Ingredients {
		ingredientText += " " + strings.ToLower(ing.Name)
	}

	for _, category := range common.AllCategories() {
		nutritionScore := scoreNutritionFit(candidate.Nutrition, category)
		timeScore := scoreTimeKeywords(bodyText, category)
		ingScore := scoreIngredients(ingredientText, category)
		prepScore := scorePreparation(candidate, category)
		tagScore := scoreTags(candidate.DishTypes, category)

		raw[category] = nutritionScore*weightNutrition +
			timeScore*weightTimeKeyword +
			ingScore*weightIngredient +
			prepScore*weightPreparation +
			tagScore*weightTags

		if timeScore >= 0.5 {
			reasoning = append(reasoning, fmt.Sprintf("time-of-day keywords suggest %s", category))
		}
		if tagScore >= 1.0 {
			reasoning = append(reasoning, fmt.Sprintf("source tags point to %s", category))
		}
	}

	c.applySpecialCases(candidate, title, raw, &reasoning)
	scores := normalize(raw)

	best := common.CategoryLunch
	bestScore := -1.0
	for _, category := range common.AllCategories() {
		if scores[category] > bestScore {
			bestScore = scores[category]
			best = category
		}
	}

	var alternatives []common.CategoryScore
	for _, category := range common.AllCategories() {
		if category == best {
			continue
		}
		if scores[category] > alternativeThreshold {
			alternatives = append(alternatives, common.CategoryScore{
				Category: category,
				Score:    scores[category],
			})
		}
	}
	sort.Slice(alternatives, func(i, j int) bool {
		return alternatives[i].Score > alternatives[j].Score
	})

	result := &common.CategorizationResult{
		Category:     best,
		Confidence:   bestScore * 100,
		Scores:       scores,
		Alternatives: alternatives,
		Reasoning:    reasoning,
		Tags:         c.buildTags(candidate, ingredientText, best),
	}

	common.LogDebug("餐別分類完成",
		zap.Int64("external_id", candidate.ExternalID),
		zap.String("category", string(best)),
		zap.Float64("confidence", result.Confidence),
	)
	return result
}

// scoreNutritionFit 營養輪廓吻合度（0-1）：熱量與碳水落在餐別典型區間
// 各得一半分數
func scoreNutritionFit(n *common.Nutrition, category common.MealCategory) float64 {
	if n == nil {
		return 0
	}

	var calMin, calMax, carbMin, carbMax float64
	switch category {
	case common.CategoryBreakfast:
		calMin, calMax, carbMin, carbMax = 250, 450, 15, 35
	case common.CategoryLunch:
		calMin, calMax, carbMin, carbMax = 400, 650, 30, 45
	case common.CategoryDinner:
		calMin, calMax, carbMin, carbMax = 450, 700, 30, 45
	case common.CategorySnack:
		calMin, calMax, carbMin, carbMax = 100, 250, 15, 30
	}

	score := 0.0
	if n.Calories >= calMin && n.Calories <= calMax {
		score += 0.5
	} else if n.Calories >= calMin*0.8 && n.Calories <= calMax*1.2 {
		score += 0.25
	}
	if n.Carbs >= carbMin && n.Carbs <= carbMax {
		score += 0.5
	} else if n.Carbs >= carbMin*0.8 && n.Carbs <= carbMax*1.2 {
		score += 0.25
	}
	return score
}

// scoreTimeKeywords 時段關鍵字（0-1）：強關鍵字 0.5、弱關鍵字 0.3，
// 合計封頂 1.0
func scoreTimeKeywords(text string, category common.MealCategory) float64 {
	score := 0.0
	for _, kw := range strongTimeKeywords[category] {
		if strings.Contains(text, kw) {
			score += 0.5
		}
	}
	for _, kw := range moderateTimeKeywords[category] {
		if strings.Contains(text, kw) {
			score += 0.3
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// scoreIngredients 食材關鍵字命中比例（0-1），三個以上命中視為滿分
func scoreIngredients(ingredientText string, category common.MealCategory) float64 {
	hits := 0
	for _, kw := range ingredientKeywords[category] {
		if strings.Contains(ingredientText, kw) {
			hits++
		}
	}
	score := float64(hits) / 3.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// scorePreparation 備料特徵（0-1），規則依餐別調整：早餐與點心偏好短時間
// 少步驟，晚餐偏好多步驟大份量，午餐取中間值。欄位缺漏時不給分。
func scorePreparation(candidate *common.RecipeCandidate, category common.MealCategory) float64 {
	minutes := candidate.ReadyInMinutes
	steps := len(candidate.Instructions)

	score := 0.0
	switch category {
	case common.CategoryBreakfast:
		if minutes > 0 && minutes <= 20 {
			score += 0.6
		}
		if steps > 0 && steps <= 5 {
			score += 0.4
		}
	case common.CategoryLunch:
		if minutes > 0 && minutes <= 45 {
			score += 0.5
		}
		if steps >= 3 && steps <= 8 {
			score += 0.5
		}
	case common.CategoryDinner:
		if steps >= 6 {
			score += 0.5
		}
		if candidate.Servings >= 4 {
			score += 0.5
		}
	case common.CategorySnack:
		if minutes > 0 && minutes <= 15 {
			score += 0.6
		}
		if steps > 0 && steps <= 3 {
			score += 0.4
		}
	}
	return score
}

// scoreTags 來源標籤直接映射（0-1）
func scoreTags(dishTypes []string, category common.MealCategory) float64 {
	for _, dt := range dishTypes {
		if mapped, ok := dishTypeMap[strings.ToLower(dt)]; ok && mapped == category {
			return 1.0
		}
	}
	return 0
}

// applySpecialCases 特例調整：以乘法係數放大或縮小原始分數，
// 順序不影響結果
func (c *Categorizer) applySpecialCases(candidate *common.RecipeCandidate, title string, raw map[common.MealCategory]float64, reasoning *[]string) {
	if strings.Contains(title, "smoothie") {
		raw[common.CategoryBreakfast] *= 1.3
		raw[common.CategorySnack] *= 1.3
		raw[common.CategoryDinner] *= 0.5
		*reasoning = append(*reasoning, "smoothie leans breakfast or snack")
	}
	if strings.Contains(title, "soup") {
		raw[common.CategoryLunch] *= 1.3
		raw[common.CategoryDinner] *= 1.2
		raw[common.CategoryBreakfast] *= 0.4
		*reasoning = append(*reasoning, "soup leans lunch or dinner")
	}
	// 水果沙拉偏向點心，不套用沙拉特例
	if strings.Contains(title, "salad") && !strings.Contains(title, "fruit salad") {
		raw[common.CategoryLunch] *= 1.3
		raw[common.CategoryBreakfast] *= 0.5
		*reasoning = append(*reasoning, "salad leans lunch")
	}
	if strings.Contains(title, "casserole") {
		raw[common.CategoryDinner] *= 1.4
		raw[common.CategorySnack] *= 0.4
		*reasoning = append(*reasoning, "casserole leans dinner")
	}
	if candidate.Nutrition != nil && candidate.Nutrition.Calories > 0 && candidate.Nutrition.Calories < 200 {
		raw[common.CategorySnack] *= 1.5
		raw[common.CategoryDinner] *= 0.6
		*reasoning = append(*reasoning, "low calorie portion leans snack")
	}
}

// normalize 把原始分數正規化為總和 1。全部為零時回傳均勻分布，
// 呼叫端以 Confidence 低於門檻辨識這類低信心結果。
func normalize(raw map[common.MealCategory]float64) map[common.MealCategory]float64 {
	sum := 0.0
	for _, v := range raw {
		sum += v
	}
	out := make(map[common.MealCategory]float64, len(raw))
	if sum <= 0 {
		uniform := 1.0 / float64(len(common.AllCategories()))
		for _, category := range common.AllCategories() {
			out[category] = uniform
		}
		return out
	}
	for category, v := range raw {
		out[category] = v / sum
	}
	return out
}

// buildTags 產生去重後的描述標籤
func (c *Categorizer) buildTags(candidate *common.RecipeCandidate, ingredientText string, category common.MealCategory) []string {
	var tags []string
	tags = append(tags, string(category))

	for _, kw := range proteinTagKeywords {
		if strings.Contains(ingredientText, kw) {
			tags = append(tags, "protein-rich")
			break
		}
	}
	for _, kw := range wholeGrainTagKeywords {
		if strings.Contains(ingredientText, kw) {
			tags = append(tags, "whole-grain")
			break
		}
	}
	if candidate.ReadyInMinutes > 0 && candidate.ReadyInMinutes <= 20 {
		tags = append(tags, "quick")
	}
	for _, diet := range candidate.Diets {
		tags = append(tags, strings.ToLower(diet))
	}
	for _, cuisine := range candidate.Cuisines {
		tags = append(tags, strings.ToLower(cuisine))
	}
	if candidate.Nutrition != nil && candidate.Nutrition.Fiber >= 5 {
		tags = append(tags, "high-fiber")
	}

	return common.DedupStrings(tags)
}
