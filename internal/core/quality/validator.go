package quality

import (
	"fmt"
	"strings"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// ValidationResult 驗證結果：被拒絕的候選帶拒絕原因，被接受的候選帶完整評分
type ValidationResult struct {
	IsValid          bool                `json:"is_valid"`
	Category         common.MealCategory `json:"category,omitempty"`
	Score            common.QualityScore `json:"score"`
	RejectionReasons []string            `json:"rejection_reasons,omitempty"`
	EstimatedGI      string              `json:"estimated_gi,omitempty"`
	Allergens        []string            `json:"allergens,omitempty"`
}

// Validator 品質驗證器：對候選食譜打 0-100 分並套用淘汰規則。
// 子分數上限固定：GD 合規 40、實用性 30、人氣 30。
type Validator struct {
	minScore float64
}

// NewValidator 創建品質驗證器
func NewValidator(minScore float64) *Validator {
	return &Validator{minScore: minScore}
}

// Validate 驗證候選食譜。category 為策略預指定的餐別，可為空字串，
// 為空時依序走備援偵測路徑；四條路徑都失敗就拒絕。
func (v *Validator) Validate(candidate *common.RecipeCandidate, category common.MealCategory) *ValidationResult {
	result := &ValidationResult{}

	// 必填欄位缺漏直接拒絕，不進入評分
	if reasons := v.checkRequiredFields(candidate); len(reasons) > 0 {
		result.RejectionReasons = reasons
		return result
	}

	if unsafe, reason := v.checkSafety(candidate); unsafe {
		result.RejectionReasons = append(result.RejectionReasons, reason)
		return result
	}

	if !category.Valid() {
		category = v.detectCategory(candidate)
	}
	if !category.Valid() {
		result.RejectionReasons = append(result.RejectionReasons, "unable to determine meal category")
		return result
	}
	result.Category = category

	band := BandFor(category)
	score := common.QualityScore{
		Breakdown: make(map[string]float64),
	}

	compliance, complianceFailed := v.scoreCompliance(candidate, band, &score)
	practicality := v.scorePracticality(candidate, &score)
	popularity := v.scorePopularity(candidate, &score)

	score.Compliance = compliance
	score.Practicality = practicality
	score.Popularity = popularity
	score.Total = compliance + practicality + popularity

	result.EstimatedGI = v.estimateGI(candidate)
	result.Allergens = v.detectAllergens(candidate)
	if result.EstimatedGI == "high" {
		score.Warnings = append(score.Warnings, "estimated glycemic index is high")
		score.Recommendations = append(score.Recommendations, "pair with protein or fat to slow glucose absorption")
	}
	for _, allergen := range result.Allergens {
		score.Warnings = append(score.Warnings, fmt.Sprintf("contains common allergen: %s", allergen))
	}

	result.Score = score

	if complianceFailed {
		result.RejectionReasons = append(result.RejectionReasons,
			fmt.Sprintf("carbs outside acceptable range for %s", category))
		return result
	}
	if score.Total < v.minScore {
		result.RejectionReasons = append(result.RejectionReasons,
			fmt.Sprintf("quality score %.1f below minimum %.1f", score.Total, v.minScore))
		return result
	}

	result.IsValid = true
	common.LogDebug("品質驗證通過",
		zap.Int64("external_id", candidate.ExternalID),
		zap.String("category", string(category)),
		zap.Float64("total", score.Total),
	)
	return result
}

// checkRequiredFields 必填欄位檢查，回傳所有缺漏原因
func (v *Validator) checkRequiredFields(candidate *common.RecipeCandidate) []string {
	var reasons []string
	if candidate.ExternalID <= 0 {
		reasons = append(reasons, "missing external id")
	}
	if strings.TrimSpace(candidate.Title) == "" {
		reasons = append(reasons, "missing title")
	}
	if len(candidate.Ingredients) == 0 {
		reasons = append(reasons, "missing ingredients")
	}
	if len(candidate.Instructions) == 0 {
		reasons = append(reasons, "missing instructions")
	}
	if candidate.Nutrition == nil {
		reasons = append(reasons, "missing nutrition data")
	} else if candidate.Nutrition.Calories <= 0 && candidate.Nutrition.Carbs <= 0 {
		reasons = append(reasons, "nutrition data is empty")
	}
	return reasons
}

// checkSafety 內容安全過濾：酒精、生食、高汞魚類、未殺菌乳製品。
// 標題與食材任一命中即拒絕。
func (v *Validator) checkSafety(candidate *common.RecipeCandidate) (bool, string) {
	haystack := strings.ToLower(candidate.Title)
	for _, ing := range candidate.Ingredients {
		haystack += " " + strings.ToLower(ing.Name)
	}

	for group, keywords := range safetyKeywords {
		for _, kw := range keywords {
			if containsKeyword(haystack, kw) {
				return true, fmt.Sprintf("safety filter: %s (%s)", group, kw)
			}
		}
	}
	return false, ""
}

// containsKeyword 單字關鍵字以完整單字比對，避免 rum 誤中 crumble 這類
// 子字串命中；片語退回子字串比對
func containsKeyword(text, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == 'é')
	}) {
		if w == keyword {
			return true
		}
	}
	return false
}

// IsFullyCompliant 碳水分項拿到完整 20 分，代表落在理想帶內且糖分未超標。
// 報表以此統計合規率。
func IsFullyCompliant(score common.QualityScore) bool {
	return score.Breakdown["carb_range"] >= 20
}

// scoreCompliance GD 合規子分數，上限 40：碳水帶 20、蛋白質 10、纖維 10。
// 碳水超出帶寬 20% 以上視為合規失敗，分數再高也淘汰。
func (v *Validator) scoreCompliance(candidate *common.RecipeCandidate, band NutrientBand, score *common.QualityScore) (float64, bool) {
	n := candidate.Nutrition

	carbScore := 0.0
	complianceFailed := false
	switch {
	case n.Carbs >= band.CarbMin && n.Carbs <= band.CarbMax:
		carbScore = 20
	case n.Carbs >= band.CarbMin*0.8 && n.Carbs <= band.CarbMax*1.2:
		carbScore = 10
		score.Warnings = append(score.Warnings,
			fmt.Sprintf("carbs %.1fg near the edge of the %.0f-%.0fg range", n.Carbs, band.CarbMin, band.CarbMax))
	default:
		complianceFailed = true
		score.Warnings = append(score.Warnings,
			fmt.Sprintf("carbs %.1fg outside the %.0f-%.0fg range", n.Carbs, band.CarbMin, band.CarbMax))
	}

	// 糖佔碳水比例過高扣 5 分，下限 0
	if n.Carbs > 0 && n.Sugar > n.Carbs*band.MaxSugarRatio {
		carbScore -= 5
		if carbScore < 0 {
			carbScore = 0
		}
		score.Warnings = append(score.Warnings, "sugar makes up a large share of total carbs")
		score.Recommendations = append(score.Recommendations, "prefer recipes where carbs come from whole grains or vegetables")
	}
	score.Breakdown["carb_range"] = carbScore

	proteinScore := 0.0
	switch {
	case n.Protein >= band.ProteinMin:
		proteinScore = 10
	case n.Protein >= band.ProteinMin*0.8:
		proteinScore = 5
	default:
		score.Recommendations = append(score.Recommendations,
			fmt.Sprintf("add a protein source to reach %.0fg", band.ProteinMin))
	}
	score.Breakdown["protein"] = proteinScore

	fiberScore := 0.0
	switch {
	case n.Fiber >= band.FiberMin:
		fiberScore = 10
	case n.Fiber >= band.FiberMin*0.8:
		fiberScore = 5
	default:
		score.Recommendations = append(score.Recommendations,
			fmt.Sprintf("add vegetables or whole grains to reach %.0fg fiber", band.FiberMin))
	}
	score.Breakdown["fiber"] = fiberScore

	return carbScore + proteinScore + fiberScore, complianceFailed
}

// scorePracticality 實用性子分數，上限 30：時間 10、可得性 10、難度 10
func (v *Validator) scorePracticality(candidate *common.RecipeCandidate, score *common.QualityScore) float64 {
	timeScore := 0.0
	switch {
	case candidate.ReadyInMinutes <= 0:
		timeScore = 5 // 未知時間給中間值
	case candidate.ReadyInMinutes <= 30:
		timeScore = 10
	case candidate.ReadyInMinutes <= 45:
		timeScore = 7
	case candidate.ReadyInMinutes <= 60:
		timeScore = 4
	default:
		timeScore = 1
		score.Warnings = append(score.Warnings,
			fmt.Sprintf("long preparation time: %d minutes", candidate.ReadyInMinutes))
	}
	score.Breakdown["time"] = timeScore

	availability := 10.0
	for _, ing := range candidate.Ingredients {
		aisle := strings.ToLower(ing.Aisle)
		for _, specialty := range specialtyAisles {
			if strings.Contains(aisle, specialty) {
				availability -= 2
				break
			}
		}
	}
	if len(candidate.Ingredients) > 15 {
		availability -= 4
	} else if len(candidate.Ingredients) > 12 {
		availability -= 2
	}
	if availability < 0 {
		availability = 0
	}
	score.Breakdown["availability"] = availability

	difficulty := 10.0
	steps := len(candidate.Instructions)
	switch {
	case steps > 12:
		difficulty -= 4
	case steps > 8:
		difficulty -= 2
	case steps < 2:
		// 步驟過少通常是抓取不完整而非真的簡單
		difficulty -= 4
		score.Warnings = append(score.Warnings, "instructions look incomplete")
	}
	instructionText := strings.ToLower(strings.Join(candidate.Instructions, " "))
	for _, technique := range advancedTechniques {
		if containsKeyword(instructionText, technique) {
			difficulty -= 2
		}
	}
	if difficulty < 0 {
		difficulty = 0
	}
	score.Breakdown["difficulty"] = difficulty

	return timeScore + availability + difficulty
}

// scorePopularity 人氣子分數，上限 30：評分 15、收藏數 15，皆階梯式給分
func (v *Validator) scorePopularity(candidate *common.RecipeCandidate, score *common.QualityScore) float64 {
	ratingScore := 0.0
	switch {
	case candidate.Rating >= 4.5:
		ratingScore = 15
	case candidate.Rating >= 4.0:
		ratingScore = 12
	case candidate.Rating >= 3.5:
		ratingScore = 9
	case candidate.Rating >= 3.0:
		ratingScore = 6
	case candidate.Rating > 0:
		ratingScore = 3
	}
	score.Breakdown["rating"] = ratingScore

	likesScore := 0.0
	switch {
	case candidate.AggregateLikes >= 1000:
		likesScore = 15
	case candidate.AggregateLikes >= 500:
		likesScore = 12
	case candidate.AggregateLikes >= 100:
		likesScore = 9
	case candidate.AggregateLikes >= 25:
		likesScore = 6
	case candidate.AggregateLikes > 0:
		likesScore = 3
	}
	score.Breakdown["likes"] = likesScore

	return ratingScore + likesScore
}

// detectCategory 餐別備援偵測，依序嘗試：
// dish type 標籤 → 標題關鍵字 → 食材關鍵字 → 時間與份量啟發 → 碳水量啟發。
// 全部落空回傳午餐（帶寬最寬，誤判代價最低）。
func (v *Validator) detectCategory(candidate *common.RecipeCandidate) common.MealCategory {
	for _, category := range common.AllCategories() {
		if candidate.HasDishType(string(category)) {
			return category
		}
	}
	if candidate.HasDishType("main course") || candidate.HasDishType("main dish") {
		return common.CategoryDinner
	}
	if candidate.HasDishType("morning meal") || candidate.HasDishType("brunch") {
		return common.CategoryBreakfast
	}
	if candidate.HasDishType("appetizer") || candidate.HasDishType("fingerfood") {
		return common.CategorySnack
	}

	title := strings.ToLower(candidate.Title)
	for _, category := range common.AllCategories() {
		for _, kw := range fallbackTitleKeywords[category] {
			if strings.Contains(title, kw) {
				return category
			}
		}
	}

	ingredientText := ""
	for _, ing := range candidate.Ingredients {
		ingredientText += " " + strings.ToLower(ing.Name)
	}
	for _, category := range common.AllCategories() {
		for _, kw := range fallbackIngredientKeywords[category] {
			if strings.Contains(ingredientText, kw) {
				return category
			}
		}
	}

	// 時間與份量啟發：快速小份量像點心，久煮大份量像晚餐
	if candidate.ReadyInMinutes > 0 && candidate.ReadyInMinutes <= 15 &&
		candidate.Servings > 0 && candidate.Servings <= 2 {
		return common.CategorySnack
	}
	if candidate.ReadyInMinutes >= 40 && candidate.Servings >= 4 {
		return common.CategoryDinner
	}

	// 碳水量啟發：低碳小份量像點心，其餘歸午餐
	if candidate.Nutrition != nil && candidate.Nutrition.Carbs > 0 && candidate.Nutrition.Carbs <= 20 &&
		candidate.Nutrition.Calories > 0 && candidate.Nutrition.Calories < 250 {
		return common.CategorySnack
	}
	return common.CategoryLunch
}

// estimateGI 依食材關鍵字粗估升糖等級：高 GI 關鍵字任一命中即 high，
// 其次 medium，只有低 GI 命中為 low，皆未命中回傳空字串
func (v *Validator) estimateGI(candidate *common.RecipeCandidate) string {
	text := strings.ToLower(candidate.Title)
	for _, ing := range candidate.Ingredients {
		text += " " + strings.ToLower(ing.Name)
	}

	for _, kw := range giKeywords["high"] {
		if containsKeyword(text, kw) {
			return "high"
		}
	}
	for _, kw := range giKeywords["medium"] {
		if containsKeyword(text, kw) {
			return "medium"
		}
	}
	for _, kw := range giKeywords["low"] {
		if containsKeyword(text, kw) {
			return "low"
		}
	}
	return ""
}

// detectAllergens 偵測常見過敏原（僅標示，不影響分數）
func (v *Validator) detectAllergens(candidate *common.RecipeCandidate) []string {
	text := ""
	for _, ing := range candidate.Ingredients {
		text += " " + strings.ToLower(ing.Name)
	}

	var found []string
	for _, allergen := range []string{"dairy", "eggs", "tree nuts", "peanuts", "soy", "wheat", "shellfish", "fish"} {
		for _, kw := range allergenKeywords[allergen] {
			if containsKeyword(text, kw) {
				found = append(found, allergen)
				break
			}
		}
	}
	return found
}
