package importer

import (
	"strings"
	"testing"
	"time"

	"recipe-importer/internal/pkg/common"
)

func sampleSession() *common.ImportSession {
	return &common.ImportSession{
		ID:          "import-test",
		Date:        time.Date(2026, 8, 12, 6, 0, 0, 0, time.UTC),
		CampaignDay: 12,
		CycleDay:    5,
		Phase:       2,
		StartedAt:   time.Date(2026, 8, 12, 6, 0, 0, 0, time.UTC),
		EndedAt:     time.Date(2026, 8, 12, 6, 5, 0, 0, time.UTC),
		Status:      common.SessionCompleted,
		Processed:   10,
		Rejected:    7,
		Imported:    3,
		APICalls:    4,
	}
}

func sampleAccepted() []common.ImportedRecipe {
	mk := func(id int64, title string, category common.MealCategory, total, compliance, carbRange float64) common.ImportedRecipe {
		return common.ImportedRecipe{
			Candidate: common.RecipeCandidate{ExternalID: id, Title: title},
			Quality: common.QualityScore{
				Total:      total,
				Compliance: compliance,
				Breakdown:  map[string]float64{"carb_range": carbRange},
				Warnings:   []string{"sample warning"},
			},
			Categorization: common.CategorizationResult{Category: category},
		}
	}
	return []common.ImportedRecipe{
		mk(1, "Greek Yogurt Bowl", common.CategorySnack, 80, 32, 20),
		mk(2, "Veggie Omelette", common.CategoryBreakfast, 90, 36, 20),
		mk(3, "Nut Butter Bites", common.CategorySnack, 65, 28, 10),
	}
}

func TestBuildReportAggregates(t *testing.T) {
	report := BuildReport(sampleSession(), sampleAccepted(), map[string]int{
		"duplicate (exact)": 4,
		"missing title":     3,
	}, map[common.MealCategory]int{
		common.CategoryBreakfast: 5,
		common.CategoryLunch:     1,
		common.CategoryDinner:    4,
		common.CategorySnack:     6,
	}, 25)

	snack := report.CategoryStats[common.CategorySnack]
	if snack.Count != 2 {
		t.Fatalf("snack count = %d, want 2", snack.Count)
	}
	if snack.AverageScore != 72.5 {
		t.Fatalf("snack average = %.1f, want 72.5", snack.AverageScore)
	}
	if report.CategoryStats[common.CategoryBreakfast].Count != 1 {
		t.Fatalf("breakfast count = %d, want 1", report.CategoryStats[common.CategoryBreakfast].Count)
	}
	if report.AverageCompliance != 32 {
		t.Fatalf("average compliance = %.1f, want 32", report.AverageCompliance)
	}
	if report.Duration != 5*time.Minute {
		t.Fatalf("duration = %v, want 5m", report.Duration)
	}
	if report.RejectionRate != 0.7 {
		t.Fatalf("rejection rate = %.2f, want 0.70", report.RejectionRate)
	}
	if report.APIEfficiency != 0.75 {
		t.Fatalf("api efficiency = %.2f, want 0.75", report.APIEfficiency)
	}
}

func TestBuildReportHistogramAndCompliance(t *testing.T) {
	report := BuildReport(sampleSession(), sampleAccepted(), nil, nil, 25)

	// 總分 65、80、90 分別落在三個不同的桶
	want := [6]int{0, 0, 1, 0, 1, 1}
	if report.ScoreHistogram != want {
		t.Fatalf("histogram = %v, want %v", report.ScoreHistogram, want)
	}

	if diff := report.ComplianceRate - 2.0/3.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("compliance rate = %.3f, want 2/3", report.ComplianceRate)
	}
	if report.ComplianceByCategory[common.CategorySnack] != 0.5 {
		t.Fatalf("snack compliance = %.2f, want 0.50", report.ComplianceByCategory[common.CategorySnack])
	}
	if report.ComplianceByCategory[common.CategoryBreakfast] != 1 {
		t.Fatalf("breakfast compliance = %.2f, want 1.00", report.ComplianceByCategory[common.CategoryBreakfast])
	}

	if len(report.TopWarnings) != 1 || report.TopWarnings[0].Count != 3 {
		t.Fatalf("top warnings = %v, want sample warning x3", report.TopWarnings)
	}
}

func TestBuildReportRankedRecipes(t *testing.T) {
	report := BuildReport(sampleSession(), sampleAccepted(), nil, nil, 25)

	if len(report.TopRecipes) != 3 {
		t.Fatalf("top recipes = %d, want 3", len(report.TopRecipes))
	}
	if report.TopRecipes[0].Title != "Veggie Omelette" {
		t.Fatalf("top recipe = %s, want Veggie Omelette", report.TopRecipes[0].Title)
	}
	for i := 1; i < len(report.TopRecipes); i++ {
		if report.TopRecipes[i].Score > report.TopRecipes[i-1].Score {
			t.Fatal("top recipes must be sorted by score descending")
		}
	}

	// 只有 70 分以下的進待觀察清單
	if len(report.BottomRecipes) != 1 || report.BottomRecipes[0].Title != "Nut Butter Bites" {
		t.Fatalf("bottom recipes = %v, want only Nut Butter Bites", report.BottomRecipes)
	}
}

func TestBuildReportRecommendations(t *testing.T) {
	session := sampleSession()
	session.Processed = 10
	session.Rejected = 9
	session.Imported = 1
	session.Errors = []string{"strategy x: timeout"}

	report := BuildReport(session, sampleAccepted()[:1], nil, map[common.MealCategory]int{
		common.CategoryBreakfast: 40,
		common.CategoryLunch:     40,
		common.CategoryDinner:    40,
		common.CategorySnack:     5,
	}, 25)

	joined := strings.Join(report.Recommendations, "\n")
	for _, want := range []string{
		"quota not met (1 of 25)",
		"rejections (9) outnumber acceptances (1)",
		"source errors",
		"snack coverage is lagging",
		"phase 2",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected recommendation containing %q, got %v", want, report.Recommendations)
		}
	}
}

func TestBuildReportLowScoreAndEfficiencyRecommendations(t *testing.T) {
	session := sampleSession()
	session.Imported = 1
	session.APICalls = 10
	session.Phase = 1

	// 單筆低分且不合規的場次
	accepted := sampleAccepted()[2:3]
	report := BuildReport(session, accepted, nil, nil, 1)

	joined := strings.Join(report.Recommendations, "\n")
	for _, want := range []string{
		"below 70",
		"below 90%",
		"API calls for 1 recipes",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected recommendation containing %q, got %v", want, report.Recommendations)
		}
	}
}

func TestRenderDeterministicSections(t *testing.T) {
	report := BuildReport(sampleSession(), sampleAccepted(), map[string]int{
		"duplicate (exact)": 4,
	}, nil, 25)

	first := report.Render()
	second := report.Render()
	if first != second {
		t.Fatal("render output must be deterministic")
	}

	sections := []string{
		"=== Import Session Report ===",
		"--- Category Breakdown ---",
		"--- Quality Metrics ---",
		"--- Compliance ---",
		"--- Top Recipes ---",
		"--- Recommendations ---",
	}
	lastIdx := -1
	for _, section := range sections {
		idx := strings.Index(first, section)
		if idx < 0 {
			t.Fatalf("missing section %q in output:\n%s", section, first)
		}
		if idx < lastIdx {
			t.Fatalf("section %q out of order", section)
		}
		lastIdx = idx
	}

	if !strings.Contains(first, "Needs review:") {
		t.Fatalf("expected needs-review list in output:\n%s", first)
	}
}
