package categorize

import (
	"recipe-importer/internal/pkg/common"
)

// 特徵群組權重。加總略高於 1 沒有關係，最後一律正規化。
const (
	weightNutrition   = 0.30
	weightTimeKeyword = 0.25
	weightIngredient  = 0.25
	weightPreparation = 0.10
	weightTags        = 0.10
)

// 強時段關鍵字：單一命中即貢獻 0.5
var strongTimeKeywords = map[common.MealCategory][]string{
	common.CategoryBreakfast: {"breakfast", "brunch", "morning"},
	common.CategoryLunch:     {"lunch", "luncheon", "midday"},
	common.CategoryDinner:    {"dinner", "supper", "evening meal"},
	common.CategorySnack:     {"snack", "snacking", "appetizer"},
}

// 弱時段關鍵字：單一命中貢獻 0.3，與強關鍵字合計上限 1.0
var moderateTimeKeywords = map[common.MealCategory][]string{
	common.CategoryBreakfast: {"pancake", "waffle", "oatmeal", "omelet", "omelette", "scrambled", "granola", "toast", "cereal", "smoothie"},
	common.CategoryLunch:     {"sandwich", "wrap", "salad", "bowl", "soup", "panini"},
	common.CategoryDinner:    {"roast", "casserole", "stew", "curry", "braised", "baked", "grilled"},
	common.CategorySnack:     {"bites", "bar", "bars", "dip", "trail mix", "energy ball", "crackers", "chips"},
}

// 餐別食材關鍵字
var ingredientKeywords = map[common.MealCategory][]string{
	common.CategoryBreakfast: {"egg", "eggs", "oats", "yogurt", "granola", "maple syrup", "bacon", "sausage", "berries", "banana"},
	common.CategoryLunch:     {"lettuce", "turkey", "tortilla", "hummus", "tuna", "avocado", "deli"},
	common.CategoryDinner:    {"beef", "chicken breast", "salmon", "pork", "potato", "rice", "pasta", "lamb"},
	common.CategorySnack:     {"almonds", "peanut butter", "cheese stick", "popcorn", "dried fruit", "dark chocolate"},
}

// dish type 標籤對餐別的直接映射
var dishTypeMap = map[string]common.MealCategory{
	"breakfast":    common.CategoryBreakfast,
	"brunch":       common.CategoryBreakfast,
	"morning meal": common.CategoryBreakfast,
	"lunch":        common.CategoryLunch,
	"main course":  common.CategoryDinner,
	"main dish":    common.CategoryDinner,
	"dinner":       common.CategoryDinner,
	"snack":        common.CategorySnack,
	"appetizer":    common.CategorySnack,
	"fingerfood":   common.CategorySnack,
	"side dish":    common.CategorySnack,
}

// 蛋白質來源標籤詞
var proteinTagKeywords = []string{"chicken", "beef", "pork", "fish", "salmon", "tuna", "tofu", "egg", "turkey", "shrimp", "lentil", "bean"}

// 全穀類標籤詞
var wholeGrainTagKeywords = []string{"quinoa", "brown rice", "oats", "whole wheat", "whole grain", "barley", "bulgur"}
