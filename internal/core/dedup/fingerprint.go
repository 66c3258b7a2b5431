package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"recipe-importer/internal/pkg/common"
)

// 標題正規化時剔除的填充詞
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "with": {}, "for": {}, "from": {},
	"easy": {}, "quick": {}, "simple": {}, "best": {},
	"homemade": {}, "recipe": {}, "healthy": {}, "delicious": {},
}

// 常見調味料：不納入主要食材
var commonSeasonings = map[string]struct{}{
	"salt": {}, "pepper": {}, "black pepper": {}, "water": {}, "oil": {},
	"olive oil": {}, "vegetable oil": {}, "butter": {}, "sugar": {},
	"vinegar": {}, "garlic powder": {}, "onion powder": {}, "paprika": {},
	"cumin": {}, "oregano": {}, "basil": {}, "thyme": {}, "parsley": {},
	"cinnamon": {}, "nutmeg": {}, "vanilla": {}, "vanilla extract": {},
	"soy sauce": {}, "lemon juice": {}, "lime juice": {},
}

// 食材描述詞：比對前剝除
var ingredientDescriptors = map[string]struct{}{
	"fresh": {}, "frozen": {}, "canned": {}, "dried": {}, "chopped": {},
	"diced": {}, "sliced": {}, "minced": {}, "ground": {}, "whole": {},
	"large": {}, "small": {}, "medium": {}, "organic": {}, "low-fat": {},
	"fat-free": {}, "boneless": {}, "skinless": {}, "cooked": {}, "raw": {},
	"unsalted": {}, "salted": {}, "shredded": {}, "grated": {}, "crushed": {},
}

// 以「份量極小」視為點綴而非主要食材的單位
var minorUnits = map[string]struct{}{
	"tsp": {}, "teaspoon": {}, "teaspoons": {}, "pinch": {}, "dash": {}, "sprig": {}, "sprigs": {},
}

const maxMainIngredients = 10

// BuildFingerprint 由候選食譜建立比對用指紋
func BuildFingerprint(candidate *common.RecipeCandidate) common.RecipeFingerprint {
	titleWords := normalizeTitle(candidate.Title)
	mainIngredients := extractMainIngredients(candidate.Ingredients)

	return common.RecipeFingerprint{
		TitleHash:       hashStrings(titleWords),
		IngredientHash:  hashStrings(mainIngredients),
		NutritionHash:   hashNutrition(candidate.Nutrition),
		CookingTime:     candidate.ReadyInMinutes,
		Servings:        candidate.Servings,
		TitleWords:      titleWords,
		MainIngredients: mainIngredients,
	}
}

// normalizeTitle 標題正規化：小寫、去標點、去填充詞與過短字、排序。
// 這讓字序差異與贅字無法繞過比對。
func normalizeTitle(title string) []string {
	lower := strings.ToLower(title)
	var b strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	seen := make(map[string]struct{})
	var words []string
	for _, w := range strings.Fields(b.String()) {
		if len(w) <= 2 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// extractMainIngredients 取出最多 10 項主要食材：排除調味料與微量食材，
// 剝除描述詞後排序
func extractMainIngredients(ingredients []common.CandidateIngredient) []string {
	seen := make(map[string]struct{})
	var names []string

	for _, ing := range ingredients {
		if isMinorAmount(ing) {
			continue
		}
		name := stripDescriptors(ing.Name)
		if name == "" {
			continue
		}
		if _, ok := commonSeasonings[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	sort.Strings(names)
	if len(names) > maxMainIngredients {
		names = names[:maxMainIngredients]
	}
	return names
}

// isMinorAmount 份量低於點綴門檻的食材不參與比對
func isMinorAmount(ing common.CandidateIngredient) bool {
	unit := strings.ToLower(strings.TrimSpace(ing.Unit))
	if _, ok := minorUnits[unit]; ok && ing.Amount <= 1 {
		return true
	}
	return ing.Amount > 0 && ing.Amount < 0.25 && unit != "cup" && unit != "cups"
}

// stripDescriptors 剝除食材名稱中的描述性形容詞
func stripDescriptors(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	// 括號附註不參與比對
	if idx := strings.Index(lower, "("); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}

	var kept []string
	for _, w := range strings.Fields(lower) {
		if _, ok := ingredientDescriptors[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// hashNutrition 營養雜湊：以粗粒度桶化吸收資料來源的微小誤差
// （碳水/蛋白/脂肪取最近 5，熱量取最近 50）
func hashNutrition(n *common.Nutrition) string {
	if n == nil {
		return ""
	}
	rounded := fmt.Sprintf("c%d:p%d:f%d:k%d",
		roundTo(n.Carbs, 5),
		roundTo(n.Protein, 5),
		roundTo(n.Fat, 5),
		roundTo(n.Calories, 50),
	)
	return hashString(rounded)
}

func roundTo(v float64, step float64) int {
	return int(math.Round(v/step) * step)
}

func hashStrings(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return hashString(strings.Join(parts, "|"))
}

// hashString 計算字符串的 SHA-256 哈希值
func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
