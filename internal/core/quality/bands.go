package quality

import (
	"recipe-importer/internal/pkg/common"
)

// NutrientBand 單一餐別的 GD 營養指引帶。碳水帶寬對應妊娠糖尿病飲食
// 建議的每餐碳水範圍，蛋白質與纖維為穩定血糖的最低建議量。
type NutrientBand struct {
	CarbMin       float64
	CarbMax       float64
	CarbIdeal     float64
	ProteinMin    float64
	FiberMin      float64
	MaxSugarRatio float64 // 糖佔總碳水的上限比例
}

// 各餐別營養帶，集中成表避免評分邏輯裡散落魔術數字
var categoryBands = map[common.MealCategory]NutrientBand{
	common.CategoryBreakfast: {
		CarbMin: 15, CarbMax: 35, CarbIdeal: 25,
		ProteinMin: 7, FiberMin: 3, MaxSugarRatio: 0.4,
	},
	common.CategoryLunch: {
		CarbMin: 30, CarbMax: 45, CarbIdeal: 40,
		ProteinMin: 15, FiberMin: 5, MaxSugarRatio: 0.4,
	},
	common.CategoryDinner: {
		CarbMin: 30, CarbMax: 45, CarbIdeal: 40,
		ProteinMin: 18, FiberMin: 5, MaxSugarRatio: 0.4,
	},
	common.CategorySnack: {
		CarbMin: 15, CarbMax: 30, CarbIdeal: 20,
		ProteinMin: 5, FiberMin: 3, MaxSugarRatio: 0.4,
	},
}

// BandFor 取得餐別營養帶
func BandFor(category common.MealCategory) NutrientBand {
	if band, ok := categoryBands[category]; ok {
		return band
	}
	return categoryBands[common.CategoryLunch]
}

// 內容安全過濾關鍵字：命中即拒絕（標題或食材）
var safetyKeywords = map[string][]string{
	"alcohol": {
		"wine", "beer", "rum", "vodka", "brandy", "bourbon", "whiskey",
		"liqueur", "sake", "tequila", "cocktail",
	},
	"raw preparation": {
		"sashimi", "tartare", "carpaccio", "ceviche", "raw egg", "raw eggs",
	},
	"high-mercury fish": {
		"swordfish", "king mackerel", "tilefish", "shark", "marlin", "bigeye tuna",
	},
	"unpasteurized dairy": {
		"unpasteurized", "raw milk", "raw cheese",
	},
}

// 專門/異國食材貨架：可得性扣分依據
var specialtyAisles = []string{
	"ethnic foods", "specialty", "gourmet", "health foods", "international",
}

// 進階烹飪技法：難度扣分依據
var advancedTechniques = []string{
	"sous vide", "temper", "julienne", "flambe", "flambé", "confit",
	"emulsify", "proof the dough", "laminate", "spherification",
}

// 升糖指數關鍵字表（低/中/高），估計值只產生警告，不做淘汰
var giKeywords = map[string][]string{
	"low": {
		"quinoa", "steel cut oats", "rolled oats", "barley", "bulgur",
		"sweet potato", "beans", "lentils", "chickpeas", "whole grain",
		"whole wheat pasta", "brown rice", "wild rice", "nuts", "seeds",
		"greek yogurt", "eggs", "chicken", "fish", "tofu", "berries",
	},
	"medium": {
		"whole wheat bread", "pita", "couscous", "basmati rice",
		"sweet corn", "banana", "grapes", "mango", "popcorn", "honey",
	},
	"high": {
		"white bread", "white rice", "instant rice", "rice cakes",
		"corn flakes", "instant oatmeal", "white potato", "french fries",
		"pretzels", "watermelon", "white pasta", "bagel", "candy", "soda",
	},
}

// 常見過敏原關鍵字
var allergenKeywords = map[string][]string{
	"dairy":     {"milk", "cheese", "yogurt", "butter", "cream", "whey"},
	"eggs":      {"egg", "eggs"},
	"tree nuts": {"almond", "walnut", "pecan", "cashew", "pistachio"},
	"peanuts":   {"peanut"},
	"soy":       {"soy", "tofu", "tempeh", "edamame"},
	"wheat":     {"wheat", "flour", "bread", "pasta"},
	"shellfish": {"shrimp", "crab", "lobster", "scallop"},
	"fish":      {"salmon", "tuna", "cod", "tilapia"},
}

// 餐別標題關鍵字（類別自動偵測的備援路徑用）
var fallbackTitleKeywords = map[common.MealCategory][]string{
	common.CategoryBreakfast: {"breakfast", "pancake", "oatmeal", "omelet", "omelette", "scrambled", "granola", "toast", "waffle"},
	common.CategoryLunch:     {"lunch", "sandwich", "wrap", "salad", "bowl"},
	common.CategoryDinner:    {"dinner", "roast", "casserole", "stew", "curry", "bake"},
	common.CategorySnack:     {"snack", "bites", "bar", "dip", "trail mix", "energy ball"},
}

// 餐別食材關鍵字（備援路徑用）
var fallbackIngredientKeywords = map[common.MealCategory][]string{
	common.CategoryBreakfast: {"oats", "egg", "yogurt", "granola", "maple"},
	common.CategoryLunch:     {"lettuce", "turkey", "tortilla", "hummus"},
	common.CategoryDinner:    {"beef", "salmon", "potato", "rice", "pasta"},
	common.CategorySnack:     {"almonds", "peanut butter", "crackers", "cheese stick"},
}
