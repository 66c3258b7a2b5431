package catalog

import (
	"fmt"
	"sort"

	"recipe-importer/internal/pkg/common"
)

// DayPlan 七天循環中單一天的匯入計畫
type DayPlan struct {
	CycleDay    int
	Categories  []common.MealCategory
	TotalTarget int
	Description string
}

// 七天循環：1-2 早餐、3 午餐、4 晚餐、5-6 點心、7 補缺日（全餐別混合）
var weekPlan = []DayPlan{
	{CycleDay: 1, Categories: []common.MealCategory{common.CategoryBreakfast}, TotalTarget: 25, Description: "早餐主力日"},
	{CycleDay: 2, Categories: []common.MealCategory{common.CategoryBreakfast}, TotalTarget: 25, Description: "早餐補充日"},
	{CycleDay: 3, Categories: []common.MealCategory{common.CategoryLunch}, TotalTarget: 25, Description: "午餐日"},
	{CycleDay: 4, Categories: []common.MealCategory{common.CategoryDinner}, TotalTarget: 25, Description: "晚餐日"},
	{CycleDay: 5, Categories: []common.MealCategory{common.CategorySnack}, TotalTarget: 25, Description: "點心主力日"},
	{CycleDay: 6, Categories: []common.MealCategory{common.CategorySnack}, TotalTarget: 25, Description: "點心補充日"},
	{CycleDay: 7, Categories: common.AllCategories(), TotalTarget: 20, Description: "補缺日：所有餐別混合"},
}

// PlanForCycleDay 取得循環日對應的計畫
func PlanForCycleDay(cycleDay int) (DayPlan, error) {
	for _, plan := range weekPlan {
		if plan.CycleDay == cycleDay {
			return plan, nil
		}
	}
	return DayPlan{}, fmt.Errorf("no plan for cycle day %d", cycleDay)
}

// 各餐別的搜尋策略。查詢條件與營養界線對應 GD 飲食指引的餐別碳水帶，
// 排除清單擋掉內容安全過濾一定會拒絕的食材，省下明細請求。
var strategies = map[common.MealCategory][]common.ImportStrategy{
	common.CategoryBreakfast: {
		{
			Name:               "breakfast-protein-core",
			Description:        "高蛋白早餐主食",
			Category:           common.CategoryBreakfast,
			Query:              "high protein breakfast eggs",
			MinCarbs:           10,
			MaxCarbs:           35,
			MinProtein:         7,
			MaxReadyTime:       30,
			ExcludeIngredients: []string{"alcohol", "wine"},
			TargetCount:        15,
			Priority:           1,
		},
		{
			Name:         "breakfast-whole-grain",
			Description:  "全穀類早餐",
			Category:     common.CategoryBreakfast,
			Query:        "whole grain oatmeal breakfast",
			MinCarbs:     15,
			MaxCarbs:     35,
			MinProtein:   5,
			MaxReadyTime: 40,
			TargetCount:  10,
			Priority:     2,
		},
	},
	common.CategoryLunch: {
		{
			Name:               "lunch-balanced-core",
			Description:        "均衡午餐主食",
			Category:           common.CategoryLunch,
			Query:              "healthy lunch bowl",
			MinCarbs:           25,
			MaxCarbs:           50,
			MinProtein:         15,
			MaxReadyTime:       45,
			ExcludeIngredients: []string{"alcohol", "wine"},
			TargetCount:        15,
			Priority:           1,
		},
		{
			Name:         "lunch-salad-protein",
			Description:  "蛋白質沙拉",
			Category:     common.CategoryLunch,
			Query:        "protein salad chicken",
			MinCarbs:     15,
			MaxCarbs:     45,
			MinProtein:   18,
			MaxReadyTime: 30,
			TargetCount:  10,
			Priority:     2,
		},
	},
	common.CategoryDinner: {
		{
			Name:               "dinner-family-core",
			Description:        "家庭晚餐主食",
			Category:           common.CategoryDinner,
			Query:              "family dinner low glycemic",
			MinCarbs:           25,
			MaxCarbs:           50,
			MinProtein:         18,
			MaxReadyTime:       60,
			ExcludeIngredients: []string{"alcohol", "wine", "sake"},
			TargetCount:        15,
			Priority:           1,
		},
		{
			Name:               "dinner-fish-lean",
			Description:        "低脂魚類晚餐",
			Category:           common.CategoryDinner,
			Query:              "baked salmon dinner vegetables",
			MinCarbs:           15,
			MaxCarbs:           45,
			MinProtein:         20,
			MaxReadyTime:       50,
			ExcludeIngredients: []string{"swordfish", "king mackerel", "tilefish"},
			TargetCount:        10,
			Priority:           2,
		},
	},
	common.CategorySnack: {
		{
			Name:               "snack-low-carb-core",
			Description:        "低碳水點心主食",
			Category:           common.CategorySnack,
			Query:              "healthy snack nuts yogurt",
			MinCarbs:           10,
			MaxCarbs:           25,
			MinProtein:         5,
			MaxReadyTime:       20,
			ExcludeIngredients: []string{"candy", "alcohol"},
			TargetCount:        15,
			Priority:           1,
		},
		{
			Name:         "snack-fiber-fruit",
			Description:  "高纖水果點心",
			Category:     common.CategorySnack,
			Query:        "fiber fruit snack no sugar",
			MinCarbs:     10,
			MaxCarbs:     30,
			MaxReadyTime: 15,
			TargetCount:  10,
			Priority:     2,
		},
	},
}

// StrategiesFor 取得餐別的策略清單，依優先序排序後回傳複本
func StrategiesFor(category common.MealCategory) []common.ImportStrategy {
	src := strategies[category]
	out := make([]common.ImportStrategy, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// StrategiesForDay 依計畫展開當天全部策略，餐別順序與計畫一致
func StrategiesForDay(plan DayPlan) []common.ImportStrategy {
	var out []common.ImportStrategy
	for _, category := range plan.Categories {
		out = append(out, StrategiesFor(category)...)
	}
	return out
}

// StrategyByName 依名稱查找策略（手動匯入使用）
func StrategyByName(name string) (common.ImportStrategy, error) {
	for _, list := range strategies {
		for _, s := range list {
			if s.Name == name {
				return s, nil
			}
		}
	}
	return common.ImportStrategy{}, fmt.Errorf("unknown strategy %q", name)
}

// AllStrategyNames 列出全部策略名稱（管理介面使用）
func AllStrategyNames() []string {
	var names []string
	for _, category := range common.AllCategories() {
		for _, s := range strategies[category] {
			names = append(names, s.Name)
		}
	}
	return names
}
