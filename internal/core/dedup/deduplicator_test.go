package dedup

import (
	"context"
	"testing"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"
)

func testConfig() config.DedupConfig {
	return config.DedupConfig{
		SimilarityThreshold: 85,
		VariantOverlap:      0.7,
	}
}

func scrambledEggs(id int64, title string) *common.RecipeCandidate {
	return &common.RecipeCandidate{
		ExternalID:     id,
		Title:          title,
		ReadyInMinutes: 10,
		Servings:       2,
		Ingredients: []common.CandidateIngredient{
			{Name: "eggs", Amount: 4, Unit: "large"},
			{Name: "milk", Amount: 0.5, Unit: "cup"},
			{Name: "cheddar cheese", Amount: 0.5, Unit: "cup"},
		},
		Nutrition: &common.Nutrition{Calories: 320, Carbs: 4, Protein: 22, Fat: 24},
	}
}

func TestCheckDuplicateEmptyIndex(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)

	result, err := d.CheckDuplicate(context.Background(), scrambledEggs(1, "Classic Scrambled Eggs"))
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if result.IsDuplicate {
		t.Fatalf("expected unique against empty index, got %+v", result)
	}
}

func TestCheckDuplicateExternalID(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	first := scrambledEggs(100, "Classic Scrambled Eggs")
	d.AddRecipe(ctx, first, BuildFingerprint(first))

	// 同 id 但內容不同，仍然是 exact
	again := scrambledEggs(100, "Totally Different Dish")
	again.Ingredients = []common.CandidateIngredient{{Name: "tofu", Amount: 1, Unit: "block"}}

	result, err := d.CheckDuplicate(ctx, again)
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !result.IsDuplicate || result.Type != DuplicateExact || result.Confidence != 100 {
		t.Fatalf("expected exact/100, got %+v", result)
	}
	if result.MatchingID != 100 {
		t.Fatalf("expected matching id 100, got %d", result.MatchingID)
	}
}

func TestCheckDuplicateRewordedTitle(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	first := scrambledEggs(1, "Classic Scrambled Eggs")
	d.AddRecipe(ctx, first, BuildFingerprint(first))

	// 相同食材與營養，標題改寫：必須落在 similar/variant，信心 >= 75
	reworded := scrambledEggs(2, "Scrambled Eggs Classic Style")
	result, err := d.CheckDuplicate(ctx, reworded)
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !result.IsDuplicate {
		t.Fatalf("expected duplicate, got %+v", result)
	}
	if result.Type != DuplicateSimilar && result.Type != DuplicateVariant {
		t.Fatalf("unexpected duplicate type %s", result.Type)
	}
	if result.Confidence < 75 {
		t.Fatalf("expected confidence >= 75, got %.1f", result.Confidence)
	}
}

func TestCheckDuplicateWordOrderAndFillerWords(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	first := scrambledEggs(1, "Scrambled Eggs")
	d.AddRecipe(ctx, first, BuildFingerprint(first))

	// 字序不同且多了填充詞，正規化後標題雜湊一致
	reordered := scrambledEggs(2, "The Best Eggs, Scrambled")
	result, err := d.CheckDuplicate(ctx, reordered)
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !result.IsDuplicate || result.Type != DuplicateExact || result.Confidence != 95 {
		t.Fatalf("expected title-hash exact/95, got %+v", result)
	}
}

func TestCheckDuplicateSimilar(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	first := scrambledEggs(1, "Cheesy Scrambled Eggs Breakfast")
	d.AddRecipe(ctx, first, BuildFingerprint(first))

	// 標題略有差異但食材、時間、份量、營養全同
	near := scrambledEggs(2, "Cheesy Scrambled Egg Skillet Breakfast")
	result, err := d.CheckDuplicate(ctx, near)
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !result.IsDuplicate {
		t.Fatalf("expected near-identical recipe to be flagged, got %+v", result)
	}
}

func TestCheckDuplicateVariant(t *testing.T) {
	cfg := testConfig()
	cfg.SimilarityThreshold = 99 // 讓 similar 階不攔截，逼出 variant 判定
	d := NewDeduplicator(cfg, nil)
	ctx := context.Background()

	first := scrambledEggs(1, "Morning Egg Scramble")
	d.AddRecipe(ctx, first, BuildFingerprint(first))

	variant := scrambledEggs(2, "Fluffy Weekend Egg Plate")
	result, err := d.CheckDuplicate(ctx, variant)
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !result.IsDuplicate || result.Type != DuplicateVariant {
		t.Fatalf("expected variant, got %+v", result)
	}
	if result.Confidence != 75 {
		t.Fatalf("expected variant confidence 75, got %.1f", result.Confidence)
	}
}

func TestCheckDuplicateDistinctRecipes(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	first := scrambledEggs(1, "Classic Scrambled Eggs")
	d.AddRecipe(ctx, first, BuildFingerprint(first))

	other := &common.RecipeCandidate{
		ExternalID:     2,
		Title:          "Grilled Salmon With Asparagus",
		ReadyInMinutes: 35,
		Servings:       4,
		Ingredients: []common.CandidateIngredient{
			{Name: "salmon fillet", Amount: 4, Unit: "pieces"},
			{Name: "asparagus", Amount: 1, Unit: "bunch"},
			{Name: "lemon", Amount: 1, Unit: ""},
		},
		Nutrition: &common.Nutrition{Calories: 420, Carbs: 12, Protein: 38, Fat: 22},
	}

	result, err := d.CheckDuplicate(ctx, other)
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if result.IsDuplicate {
		t.Fatalf("distinct recipe flagged as duplicate: %+v", result)
	}
}

func TestSeedMakesExistingRecipesVisible(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	existing := scrambledEggs(7, "Classic Scrambled Eggs")
	d.Seed(ctx, []common.ImportedRecipe{
		{Candidate: *existing, Fingerprint: BuildFingerprint(existing)},
	})
	if d.Size() != 1 {
		t.Fatalf("expected index size 1 after seed, got %d", d.Size())
	}

	result, err := d.CheckDuplicate(ctx, scrambledEggs(7, "Classic Scrambled Eggs"))
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !result.IsDuplicate || result.Type != DuplicateExact {
		t.Fatalf("seeded recipe not detected: %+v", result)
	}
}

func TestSeedIDsBlocksKnownExternalIDs(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	d.SeedIDs([]int64{42})

	result, err := d.CheckDuplicate(ctx, scrambledEggs(42, "Anything At All"))
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !result.IsDuplicate || result.Type != DuplicateExact || result.Confidence != 100 {
		t.Fatalf("expected known id to be exact/100, got %+v", result)
	}

	// 集合外的 id 不受影響
	other, err := d.CheckDuplicate(ctx, scrambledEggs(43, "Grilled Salmon Plate"))
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if other.IsDuplicate {
		t.Fatalf("unknown id flagged as duplicate: %+v", other)
	}
}

func TestAddRecipeIdempotent(t *testing.T) {
	d := NewDeduplicator(testConfig(), nil)
	ctx := context.Background()

	candidate := scrambledEggs(1, "Classic Scrambled Eggs")
	fp := BuildFingerprint(candidate)
	d.AddRecipe(ctx, candidate, fp)
	d.AddRecipe(ctx, candidate, fp)

	if d.Size() != 1 {
		t.Fatalf("expected size 1 after duplicate add, got %d", d.Size())
	}
}

func TestJaccard(t *testing.T) {
	cases := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, 1},
		{"disjoint", []string{"a"}, []string{"b"}, 0},
		{"half", []string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{"empty", nil, []string{"a"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := jaccard(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("jaccard(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
