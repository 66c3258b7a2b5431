package importer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"recipe-importer/internal/core/quality"
	"recipe-importer/internal/pkg/common"
)

const (
	// 報告列出的最高分與待觀察食譜數
	topRecipeCount = 5
	// 低於此總分的食譜進入待觀察清單
	reviewScoreFloor = 70
	// 警告頻率排行長度
	topWarningCount = 10
)

// 分數直方圖的六個桶
var histogramLabels = [...]string{"0-49", "50-59", "60-69", "70-79", "80-89", "90-100"}

// TopRecipe 報告中的單筆食譜摘要
type TopRecipe struct {
	ExternalID int64               `json:"external_id"`
	Title      string              `json:"title"`
	Category   common.MealCategory `json:"category"`
	Score      float64             `json:"score"`
}

// CategoryStat 單一餐別的接受統計
type CategoryStat struct {
	Count        int     `json:"count"`
	Percent      float64 `json:"percent"`
	AverageScore float64 `json:"average_score"`
}

// WarningFrequency 警告字串與出現次數
type WarningFrequency struct {
	Warning string `json:"warning"`
	Count   int    `json:"count"`
}

// ImportReport 場次報告：場次結束時由接受清單與拒絕統計彙整而成，
// 之後不再變動
type ImportReport struct {
	Session common.ImportSession `json:"session"`

	Duration      time.Duration `json:"duration"`
	Quota         int           `json:"quota"`
	RejectionRate float64       `json:"rejection_rate"`
	// 每次 API 呼叫平均接受的食譜數
	APIEfficiency float64 `json:"api_efficiency"`

	CategoryStats    map[common.MealCategory]CategoryStat `json:"category_stats"`
	RejectionReasons map[string]int                       `json:"rejection_reasons,omitempty"`

	AverageTotal      float64 `json:"average_total"`
	AverageCompliance float64 `json:"average_compliance"`
	ScoreHistogram    [6]int  `json:"score_histogram"`

	// 合規率：碳水落在理想帶內的接受食譜比例
	ComplianceRate       float64                         `json:"compliance_rate"`
	ComplianceByCategory map[common.MealCategory]float64 `json:"compliance_by_category,omitempty"`
	TopWarnings          []WarningFrequency              `json:"top_warnings,omitempty"`

	TopRecipes      []TopRecipe `json:"top_recipes,omitempty"`
	BottomRecipes   []TopRecipe `json:"bottom_recipes,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`

	// 儲存層各餐別累計數（含本場次寫入），覆蓋率統計失敗時為 nil
	StoreCounts map[common.MealCategory]int `json:"store_counts,omitempty"`
}

// BuildReport 彙整場次報告。純彙整，不做任何決策。
func BuildReport(session *common.ImportSession, accepted []common.ImportedRecipe, rejections map[string]int, storeCounts map[common.MealCategory]int, quota int) *ImportReport {
	report := &ImportReport{
		Session:          *session,
		Duration:         session.EndedAt.Sub(session.StartedAt),
		Quota:            quota,
		CategoryStats:    make(map[common.MealCategory]CategoryStat),
		RejectionReasons: rejections,
		StoreCounts:      storeCounts,
	}
	if session.Processed > 0 {
		report.RejectionRate = float64(session.Rejected) / float64(session.Processed)
	}
	if session.APICalls > 0 {
		report.APIEfficiency = float64(session.Imported) / float64(session.APICalls)
	}

	var totalSum, complianceSum float64
	compliantTotal := 0
	categoryScoreSum := make(map[common.MealCategory]float64)
	categoryCompliant := make(map[common.MealCategory]int)
	warningCounts := make(map[string]int)

	for i := range accepted {
		r := &accepted[i]
		category := r.Categorization.Category

		stat := report.CategoryStats[category]
		stat.Count++
		report.CategoryStats[category] = stat
		categoryScoreSum[category] += r.Quality.Total

		totalSum += r.Quality.Total
		complianceSum += r.Quality.Compliance
		report.ScoreHistogram[histogramBucket(r.Quality.Total)]++

		if quality.IsFullyCompliant(r.Quality) {
			compliantTotal++
			categoryCompliant[category]++
		}
		for _, w := range r.Quality.Warnings {
			warningCounts[w]++
		}
	}

	if len(accepted) > 0 {
		report.AverageTotal = totalSum / float64(len(accepted))
		report.AverageCompliance = complianceSum / float64(len(accepted))
		report.ComplianceRate = float64(compliantTotal) / float64(len(accepted))
		report.ComplianceByCategory = make(map[common.MealCategory]float64)
		for category, stat := range report.CategoryStats {
			stat.Percent = float64(stat.Count) / float64(len(accepted)) * 100
			stat.AverageScore = categoryScoreSum[category] / float64(stat.Count)
			report.CategoryStats[category] = stat
			report.ComplianceByCategory[category] = float64(categoryCompliant[category]) / float64(stat.Count)
		}
	}

	report.TopWarnings = collectTopWarnings(warningCounts)
	report.TopRecipes, report.BottomRecipes = collectRankedRecipes(accepted)
	report.Recommendations = buildRecommendations(session, report, accepted, storeCounts)
	return report
}

// histogramBucket 總分所屬的直方圖桶：50 分以下合為一桶，其餘每 10 分一桶
func histogramBucket(total float64) int {
	if total < 50 {
		return 0
	}
	bucket := int(total-50)/10 + 1
	if bucket > 5 {
		bucket = 5
	}
	return bucket
}

// collectRankedRecipes 取總分最高的前幾名與低於待觀察門檻的後幾名，
// 同分時以 external id 穩定排序
func collectRankedRecipes(accepted []common.ImportedRecipe) (tops, bottoms []TopRecipe) {
	ranked := make([]TopRecipe, 0, len(accepted))
	for i := range accepted {
		r := &accepted[i]
		ranked = append(ranked, TopRecipe{
			ExternalID: r.Candidate.ExternalID,
			Title:      r.Candidate.Title,
			Category:   r.Categorization.Category,
			Score:      r.Quality.Total,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ExternalID < ranked[j].ExternalID
	})

	tops = ranked
	if len(tops) > topRecipeCount {
		tops = tops[:topRecipeCount]
	}

	// 待觀察清單由低分往高分列
	for i := len(ranked) - 1; i >= 0 && len(bottoms) < topRecipeCount; i-- {
		if ranked[i].Score < reviewScoreFloor {
			bottoms = append(bottoms, ranked[i])
		}
	}
	return tops, bottoms
}

// collectTopWarnings 警告出現頻率排行，次數相同時依字典序
func collectTopWarnings(counts map[string]int) []WarningFrequency {
	if len(counts) == 0 {
		return nil
	}
	freqs := make([]WarningFrequency, 0, len(counts))
	for warning, count := range counts {
		freqs = append(freqs, WarningFrequency{Warning: warning, Count: count})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Warning < freqs[j].Warning
	})
	if len(freqs) > topWarningCount {
		freqs = freqs[:topWarningCount]
	}
	return freqs
}

// buildRecommendations 依固定規則產生後續動作建議
func buildRecommendations(session *common.ImportSession, report *ImportReport, accepted []common.ImportedRecipe, storeCounts map[common.MealCategory]int) []string {
	var recs []string

	if session.Imported < report.Quota {
		recs = append(recs, fmt.Sprintf("quota not met (%d of %d), consider adding strategies or raising page depth", session.Imported, report.Quota))
	}
	if session.Rejected > session.Imported && session.Processed > 0 {
		recs = append(recs, fmt.Sprintf("rejections (%d) outnumber acceptances (%d), review search strategies for this cycle day", session.Rejected, session.Imported))
	}
	if len(accepted) == 0 && session.Processed > 0 {
		recs = append(recs, "no recipes accepted this session, consider loosening nutrition filters")
	}
	if len(accepted) > 0 {
		if report.AverageTotal < 70 {
			recs = append(recs, fmt.Sprintf("average score %.1f is below 70, tighten source filters toward higher-rated recipes", report.AverageTotal))
		}
		if report.ComplianceRate < 0.9 {
			recs = append(recs, fmt.Sprintf("compliance rate %.0f%% is below 90%%, narrow carb bounds in the search filters", report.ComplianceRate*100))
		}
		for _, category := range common.AllCategories() {
			stat, ok := report.CategoryStats[category]
			if ok && stat.Count > 0 && stat.Percent < 15 {
				recs = append(recs, fmt.Sprintf("%s holds only %.0f%% of this session, consider a dedicated strategy", category, stat.Percent))
			}
		}
		for _, w := range report.TopWarnings {
			if float64(w.Count) > float64(len(accepted))*0.3 {
				recs = append(recs, fmt.Sprintf("warning %q covers %d of %d recipes, adjust the affected filter", w.Warning, w.Count, len(accepted)))
				break
			}
		}
		if session.APICalls > session.Imported*3 {
			recs = append(recs, fmt.Sprintf("%d API calls for %d recipes, raise page size or refine queries", session.APICalls, session.Imported))
		}
	}
	if len(session.Errors) > 0 {
		recs = append(recs, fmt.Sprintf("%d source errors occurred, check API quota and connectivity", len(session.Errors)))
	}

	switch session.Phase {
	case 2:
		recs = append(recs, "phase 2 alternates vegetarian and gluten free requests, verify both variants show up in the accepted set")
	case 3:
		recs = append(recs, "phase 3 uses random ordering, expect a wider score spread than earlier phases")
	}

	// 覆蓋率缺口：某餐別累計數明顯落後時提示補缺
	if len(storeCounts) > 0 {
		max := 0
		for _, count := range storeCounts {
			if count > max {
				max = count
			}
		}
		for _, category := range common.AllCategories() {
			if max > 10 && storeCounts[category] < max/2 {
				recs = append(recs, fmt.Sprintf("%s coverage is lagging (%d vs max %d), prioritize it on the next catch-up day", category, storeCounts[category], max))
			}
		}
	}

	return recs
}

// Render 輸出人類可讀的文字報告。段落順序固定，相同輸入產生相同輸出。
func (r *ImportReport) Render() string {
	var b strings.Builder

	b.WriteString("=== Import Session Report ===\n")
	b.WriteString(fmt.Sprintf("Session:      %s\n", r.Session.ID))
	b.WriteString(fmt.Sprintf("Date:         %s\n", r.Session.Date.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Campaign day: %d (cycle day %d, phase %d)\n", r.Session.CampaignDay, r.Session.CycleDay, r.Session.Phase))
	b.WriteString(fmt.Sprintf("Status:       %s\n", r.Session.Status))
	b.WriteString(fmt.Sprintf("Duration:     %s\n", r.Duration))
	b.WriteString(fmt.Sprintf("Processed:    %d\n", r.Session.Processed))
	b.WriteString(fmt.Sprintf("Imported:     %d (quota %d)\n", r.Session.Imported, r.Quota))
	b.WriteString(fmt.Sprintf("Rejected:     %d (%.0f%%)\n", r.Session.Rejected, r.RejectionRate*100))
	b.WriteString(fmt.Sprintf("API calls:    %d (%.2f accepted per call)\n", r.Session.APICalls, r.APIEfficiency))

	b.WriteString("\n--- Category Breakdown ---\n")
	for _, category := range common.AllCategories() {
		stat := r.CategoryStats[category]
		b.WriteString(fmt.Sprintf("%-10s %d (%.0f%%, avg %.1f)", category, stat.Count, stat.Percent, stat.AverageScore))
		if r.StoreCounts != nil {
			b.WriteString(fmt.Sprintf(" (store total %d)", r.StoreCounts[category]))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n--- Quality Metrics ---\n")
	b.WriteString(fmt.Sprintf("Average score:      %.1f\n", r.AverageTotal))
	b.WriteString(fmt.Sprintf("Average compliance: %.1f\n", r.AverageCompliance))
	b.WriteString("Score histogram:\n")
	for i, label := range histogramLabels {
		b.WriteString(fmt.Sprintf("  %-7s %d\n", label, r.ScoreHistogram[i]))
	}
	if len(r.RejectionReasons) > 0 {
		b.WriteString("Rejection reasons:\n")
		reasons := make([]string, 0, len(r.RejectionReasons))
		for reason := range r.RejectionReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			b.WriteString(fmt.Sprintf("  %4d  %s\n", r.RejectionReasons[reason], reason))
		}
	}

	b.WriteString("\n--- Compliance ---\n")
	b.WriteString(fmt.Sprintf("Overall rate: %.0f%%\n", r.ComplianceRate*100))
	for _, category := range common.AllCategories() {
		if rate, ok := r.ComplianceByCategory[category]; ok {
			b.WriteString(fmt.Sprintf("%-10s %.0f%%\n", category, rate*100))
		}
	}
	if len(r.TopWarnings) > 0 {
		b.WriteString("Frequent warnings:\n")
		for _, w := range r.TopWarnings {
			b.WriteString(fmt.Sprintf("  %4d  %s\n", w.Count, w.Warning))
		}
	}

	if len(r.TopRecipes) > 0 {
		b.WriteString("\n--- Top Recipes ---\n")
		for i, top := range r.TopRecipes {
			b.WriteString(fmt.Sprintf("%d. [%.1f] %s (%s, id %d)\n", i+1, top.Score, top.Title, top.Category, top.ExternalID))
		}
		if len(r.BottomRecipes) > 0 {
			b.WriteString("Needs review:\n")
			for _, low := range r.BottomRecipes {
				b.WriteString(fmt.Sprintf("- [%.1f] %s (%s, id %d)\n", low.Score, low.Title, low.Category, low.ExternalID))
			}
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\n--- Recommendations ---\n")
		for _, rec := range r.Recommendations {
			b.WriteString(fmt.Sprintf("- %s\n", rec))
		}
	}

	if len(r.Session.Errors) > 0 {
		b.WriteString("\n--- Errors ---\n")
		for _, msg := range r.Session.Errors {
			b.WriteString(fmt.Sprintf("- %s\n", msg))
		}
	}

	return b.String()
}
