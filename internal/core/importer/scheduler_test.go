package importer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"recipe-importer/internal/core/dedup"
	"recipe-importer/internal/core/source"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"
)

// fakeSource 以腳本回應搜尋請求並記錄收到的過濾條件
type fakeSource struct {
	pages   []fakePage
	filters []source.SearchFilters
	calls   int

	details     map[int64]*common.RecipeCandidate
	detailErr   error
	detailCalls int
}

type fakePage struct {
	candidates []common.RecipeCandidate
	err        error
}

func (f *fakeSource) Search(_ context.Context, filters source.SearchFilters) (*source.SearchPage, error) {
	f.filters = append(f.filters, filters)
	f.calls++

	if len(f.pages) == 0 {
		return &source.SearchPage{Offset: filters.Offset, Number: filters.Number}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	if page.err != nil {
		return nil, page.err
	}
	return &source.SearchPage{
		Results: page.candidates,
		Offset:  filters.Offset,
		Number:  filters.Number,
	}, nil
}

func (f *fakeSource) GetDetail(_ context.Context, id int64) (*common.RecipeCandidate, error) {
	f.detailCalls++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	c, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("no detail for %d", id)
	}
	return c, nil
}

// fakeStore 記錄批次寫入內容的記憶體儲存層
type fakeStore struct {
	saved      []common.ImportedRecipe
	saveCalls  int
	saveErr    error
	existing   map[common.MealCategory][]common.ImportedRecipe
	seedLookup int
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: make(map[common.MealCategory][]common.ImportedRecipe)}
}

func (f *fakeStore) GetAllIDs(context.Context) ([]int64, error) {
	var ids []int64
	for _, recipes := range f.existing {
		for i := range recipes {
			ids = append(ids, recipes[i].Candidate.ExternalID)
		}
	}
	for i := range f.saved {
		ids = append(ids, f.saved[i].Candidate.ExternalID)
	}
	return ids, nil
}

func (f *fakeStore) GetCount(ctx context.Context) (int, error) {
	ids, err := f.GetAllIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (f *fakeStore) GetByCategory(_ context.Context, category common.MealCategory, limit int) ([]common.ImportedRecipe, error) {
	f.seedLookup++
	out := f.existing[category]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) BatchSave(_ context.Context, recipes []common.ImportedRecipe) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, recipes...)
	return nil
}

func (f *fakeStore) GetCountByCategory(context.Context) (map[common.MealCategory]int, error) {
	counts := make(map[common.MealCategory]int)
	for _, category := range common.AllCategories() {
		counts[category] = len(f.existing[category])
	}
	for i := range f.saved {
		counts[f.saved[i].Categorization.Category]++
	}
	return counts, nil
}

// breakfastCandidate 會通過全部關卡的早餐候選，以序號保證彼此不重複
func breakfastCandidate(i int) common.RecipeCandidate {
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet", "kilo", "lima"}
	word := words[i%len(words)]
	return common.RecipeCandidate{
		ExternalID:     int64(1000 + i),
		Title:          fmt.Sprintf("Breakfast %s Bowl", word),
		ReadyInMinutes: 15,
		Servings:       2,
		Ingredients: []common.CandidateIngredient{
			{Name: fmt.Sprintf("%s grain", word), Amount: 1, Unit: "cup"},
			{Name: fmt.Sprintf("%s greens", word), Amount: 2, Unit: "cups"},
		},
		Instructions: []string{"Combine everything.", "Heat through.", "Serve warm."},
		Nutrition: &common.Nutrition{
			Calories: float64(200 + 100*i),
			Carbs:    25,
			Protein:  19,
			Fat:      12,
			Fiber:    5,
			Sugar:    3,
		},
		Rating:         4.6,
		AggregateLikes: 1200,
	}
}

func candidates(from, count int) []common.RecipeCandidate {
	out := make([]common.RecipeCandidate, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, breakfastCandidate(from+i))
	}
	return out
}

func testOrchestrator(t *testing.T, src *fakeSource, st *fakeStore, quota int) *Orchestrator {
	t.Helper()

	cfg := &config.Config{
		Source: config.SourceConfig{PageSize: 4},
		Campaign: config.CampaignConfig{
			StartDate:       "2026-08-01",
			TotalDays:       20,
			DailyQuota:      quota,
			MinQualityScore: 30,
			MaxRetries:      3,
			CallDelay:       time.Second,
		},
		Store: config.StoreConfig{Path: "test.db", SeedLimit: 200},
		Dedup: config.DedupConfig{SimilarityThreshold: 85, VariantOverlap: 0.7},
	}

	deduplicator := dedup.NewDeduplicator(cfg.Dedup, nil)
	rng := rand.New(rand.NewSource(42))
	o := NewOrchestrator(cfg, src, st, deduplicator, rng)

	// 固定時鐘在活動第一天（循環日 1，早餐，第一階段），延遲為 no-op
	now := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	o.SetClock(func() time.Time { return now }, func(time.Duration) {})
	return o
}

func TestDailyImportStopsAtQuota(t *testing.T) {
	src := &fakeSource{pages: []fakePage{
		{candidates: candidates(0, 4)},
		{candidates: candidates(4, 4)},
		{candidates: candidates(8, 4)},
	}}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 5)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}

	if report.Session.Imported != 5 {
		t.Fatalf("imported = %d, want exactly 5", report.Session.Imported)
	}
	if len(st.saved) != 5 {
		t.Fatalf("saved = %d, want 5", len(st.saved))
	}
	if st.saveCalls != 1 {
		t.Fatalf("expected a single batch write, got %d", st.saveCalls)
	}
	if report.Session.Status != common.SessionCompleted {
		t.Fatalf("status = %s, want completed", report.Session.Status)
	}
	// 配額滿了就不再向來源送出請求
	if src.calls != 2 {
		t.Fatalf("search calls = %d, want 2 (no calls after quota met)", src.calls)
	}
}

func TestDailyImportFetchesDetailForSparseResults(t *testing.T) {
	// 搜尋結果缺少做法時補打 detail
	sparse := breakfastCandidate(0)
	full := sparse
	sparse.Instructions = nil

	src := &fakeSource{
		pages:   []fakePage{{candidates: []common.RecipeCandidate{sparse, breakfastCandidate(1)}}},
		details: map[int64]*common.RecipeCandidate{sparse.ExternalID: &full},
	}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}
	if src.detailCalls != 1 {
		t.Fatalf("detail calls = %d, want 1 (only the sparse candidate)", src.detailCalls)
	}
	if report.Session.Imported != 2 {
		t.Fatalf("imported = %d, want 2 after hydration", report.Session.Imported)
	}
	// API 計數涵蓋搜尋與 detail 兩種呼叫
	if report.Session.APICalls != src.calls+src.detailCalls {
		t.Fatalf("api calls = %d, want %d", report.Session.APICalls, src.calls+src.detailCalls)
	}
}

func TestDailyImportRejectsCandidateOnDetailFailure(t *testing.T) {
	sparse := breakfastCandidate(0)
	sparse.Nutrition = nil

	src := &fakeSource{
		pages:     []fakePage{{candidates: []common.RecipeCandidate{sparse, breakfastCandidate(1)}}},
		detailErr: fmt.Errorf("timeout"),
	}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}
	if report.Session.Imported != 1 {
		t.Fatalf("imported = %d, want 1 (sparse candidate dropped)", report.Session.Imported)
	}
	if report.RejectionReasons["detail fetch failed"] != 1 {
		t.Fatalf("expected detail failure rejection, got %v", report.RejectionReasons)
	}
	if len(report.Session.Errors) != 1 {
		t.Fatalf("recorded errors = %d, want 1", len(report.Session.Errors))
	}
}

func TestDailyImportPhaseOneSortsByPopularity(t *testing.T) {
	src := &fakeSource{pages: []fakePage{
		{candidates: candidates(0, 2)},
	}}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	if _, err := o.ExecuteDailyImport(context.Background()); err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}

	if len(src.filters) == 0 {
		t.Fatal("expected at least one search call")
	}
	for _, f := range src.filters {
		if f.Sort != "popularity" {
			t.Fatalf("phase 1 request sort = %q, want popularity", f.Sort)
		}
		if f.Diet != "" {
			t.Fatalf("phase 1 request must not set diet, got %q", f.Diet)
		}
	}
}

func TestDailyImportEmptyPageEndsStrategy(t *testing.T) {
	// 第一頁有結果，第二頁為空：正常結束，不產生錯誤
	src := &fakeSource{pages: []fakePage{
		{candidates: candidates(0, 4)},
	}}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}
	if len(report.Session.Errors) != 0 {
		t.Fatalf("empty pages must not record errors, got %v", report.Session.Errors)
	}
	if report.Session.Imported != 4 {
		t.Fatalf("imported = %d, want 4", report.Session.Imported)
	}
}

func TestDailyImportAbandonsStrategyAfterRetries(t *testing.T) {
	sourceErr := common.NewError(common.ErrCodeSourceError, "rate limited", 429, fmt.Errorf("429"))
	src := &fakeSource{pages: []fakePage{
		{err: sourceErr}, {err: sourceErr}, {err: sourceErr},
		{err: sourceErr}, {err: sourceErr}, {err: sourceErr},
	}}
	st := newFakeStore()

	var slept []time.Duration
	o := testOrchestrator(t, src, st, 25)
	o.SetClock(func() time.Time { return time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC) },
		func(d time.Duration) { slept = append(slept, d) })

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}

	// 循環日 1 有兩個早餐策略，各自在連續三次失敗後放棄
	if src.calls != 6 {
		t.Fatalf("search calls = %d, want 6 (3 per strategy)", src.calls)
	}
	if report.Session.Imported != 0 {
		t.Fatalf("imported = %d, want 0", report.Session.Imported)
	}
	if len(report.Session.Errors) != 6 {
		t.Fatalf("recorded errors = %d, want 6", len(report.Session.Errors))
	}
	if report.Session.Status != common.SessionCompleted {
		t.Fatalf("status = %s, want completed (abandoned strategies are not fatal)", report.Session.Status)
	}

	// 每次呼叫前固定間隔一秒，退避隨連續失敗次數遞增
	want := []time.Duration{
		time.Second, 5 * time.Second, time.Second, 10 * time.Second, time.Second,
		time.Second, 5 * time.Second, time.Second, 10 * time.Second, time.Second,
	}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDailyImportSuccessResetsFailureCount(t *testing.T) {
	sourceErr := common.NewError(common.ErrCodeSourceError, "timeout", 503, fmt.Errorf("timeout"))
	src := &fakeSource{pages: []fakePage{
		{err: sourceErr},
		{err: sourceErr},
		{candidates: candidates(0, 4)},
	}}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}
	if report.Session.Imported != 4 {
		t.Fatalf("imported = %d, want 4 after recovery", report.Session.Imported)
	}
}

func TestDailyImportSkipsDuplicates(t *testing.T) {
	same := breakfastCandidate(0)
	src := &fakeSource{pages: []fakePage{
		{candidates: []common.RecipeCandidate{same, same, breakfastCandidate(1)}},
	}}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}
	if report.Session.Imported != 2 {
		t.Fatalf("imported = %d, want 2", report.Session.Imported)
	}
	if report.Session.Rejected != 1 {
		t.Fatalf("rejected = %d, want 1", report.Session.Rejected)
	}
	if report.RejectionReasons["duplicate (exact)"] != 1 {
		t.Fatalf("expected one exact duplicate rejection, got %v", report.RejectionReasons)
	}
}

func TestDailyImportPersistenceFailureIsFatal(t *testing.T) {
	src := &fakeSource{pages: []fakePage{
		{candidates: candidates(0, 2)},
	}}
	st := newFakeStore()
	st.saveErr = fmt.Errorf("disk full")
	o := testOrchestrator(t, src, st, 25)

	_, err := o.ExecuteDailyImport(context.Background())
	if err == nil {
		t.Fatal("expected persistence failure to be fatal")
	}
	var ce *common.CustomError
	if !errors.As(err, &ce) || ce.Code != common.ErrCodePersistenceError {
		t.Fatalf("expected PERSISTENCE_ERROR, got %v", err)
	}
}

func TestManualImportUnknownStrategy(t *testing.T) {
	src := &fakeSource{}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	_, err := o.ExecuteManualImport(context.Background(), "no-such-strategy", 5)
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	if !common.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestManualImportRespectsCount(t *testing.T) {
	src := &fakeSource{pages: []fakePage{
		{candidates: candidates(0, 4)},
		{candidates: candidates(4, 4)},
	}}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteManualImport(context.Background(), "breakfast-protein-core", 3)
	if err != nil {
		t.Fatalf("ExecuteManualImport: %v", err)
	}
	if report.Session.Imported != 3 {
		t.Fatalf("imported = %d, want 3", report.Session.Imported)
	}
	if report.Session.ID[:7] != "manual-" {
		t.Fatalf("manual session id should carry manual prefix, got %s", report.Session.ID)
	}
}

func TestManualImportPinsPhaseOne(t *testing.T) {
	src := &fakeSource{pages: []fakePage{
		{candidates: candidates(0, 4)},
	}}
	st := newFakeStore()
	o := testOrchestrator(t, src, st, 25)

	// 活動第 12 天本屬第二階段，手動匯入仍固定走第一階段
	now := time.Date(2026, 8, 12, 6, 0, 0, 0, time.UTC)
	o.SetClock(func() time.Time { return now }, func(time.Duration) {})

	report, err := o.ExecuteManualImport(context.Background(), "breakfast-protein-core", 2)
	if err != nil {
		t.Fatalf("ExecuteManualImport: %v", err)
	}
	if report.Session.Phase != 1 {
		t.Fatalf("manual session phase = %d, want 1", report.Session.Phase)
	}
	for _, f := range src.filters {
		if f.Sort != "popularity" || f.Diet != "" {
			t.Fatalf("manual request must use phase 1 filters, got sort=%q diet=%q", f.Sort, f.Diet)
		}
	}
}

func TestCurrentStatusIncludesStoreCounts(t *testing.T) {
	st := newFakeStore()
	st.existing[common.CategoryBreakfast] = []common.ImportedRecipe{
		{Categorization: common.CategorizationResult{Category: common.CategoryBreakfast}},
		{Categorization: common.CategorizationResult{Category: common.CategoryBreakfast}},
	}
	o := testOrchestrator(t, &fakeSource{}, st, 25)

	status := o.CurrentStatus(context.Background())
	if status.Running {
		t.Fatal("no session in flight, running must be false")
	}
	if status.CampaignDay != 1 || status.Phase != 1 {
		t.Fatalf("campaign position = day %d phase %d, want day 1 phase 1", status.CampaignDay, status.Phase)
	}
	if status.StoredTotal != 2 {
		t.Fatalf("stored total = %d, want 2", status.StoredTotal)
	}
	if status.StoreCounts[common.CategoryBreakfast] != 2 {
		t.Fatalf("breakfast store count = %d, want 2", status.StoreCounts[common.CategoryBreakfast])
	}
}

func TestSeedUsesExistingRecipes(t *testing.T) {
	existing := breakfastCandidate(0)
	st := newFakeStore()
	st.existing[common.CategoryBreakfast] = []common.ImportedRecipe{
		{
			Candidate:      existing,
			Fingerprint:    dedup.BuildFingerprint(&existing),
			Categorization: common.CategorizationResult{Category: common.CategoryBreakfast},
		},
	}

	// 來源回傳與既有食譜相同的候選
	src := &fakeSource{pages: []fakePage{
		{candidates: []common.RecipeCandidate{existing, breakfastCandidate(1)}},
	}}
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}
	if report.Session.Imported != 1 {
		t.Fatalf("imported = %d, want 1 (existing recipe must be rejected)", report.Session.Imported)
	}
	if report.RejectionReasons["duplicate (exact)"] != 1 {
		t.Fatalf("expected exact duplicate against seeded recipe, got %v", report.RejectionReasons)
	}
}

func TestSeedBlocksIDsFromOtherCategories(t *testing.T) {
	// 既有食譜掛在晚餐類別，早餐日的指紋種子不會載到它，
	// 仍須靠 id 集合在階梯第一階攔下
	existing := breakfastCandidate(0)
	st := newFakeStore()
	st.existing[common.CategoryDinner] = []common.ImportedRecipe{
		{
			Candidate:      existing,
			Fingerprint:    dedup.BuildFingerprint(&existing),
			Categorization: common.CategorizationResult{Category: common.CategoryDinner},
		},
	}

	src := &fakeSource{pages: []fakePage{
		{candidates: []common.RecipeCandidate{existing, breakfastCandidate(1)}},
	}}
	o := testOrchestrator(t, src, st, 25)

	report, err := o.ExecuteDailyImport(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDailyImport: %v", err)
	}
	if report.Session.Imported != 1 {
		t.Fatalf("imported = %d, want 1 (known id must be rejected)", report.Session.Imported)
	}
	if report.RejectionReasons["duplicate (exact)"] != 1 {
		t.Fatalf("expected exact duplicate for known id, got %v", report.RejectionReasons)
	}
	for i := range st.saved {
		if st.saved[i].Candidate.ExternalID == existing.ExternalID {
			t.Fatalf("known id %d must not be written again", existing.ExternalID)
		}
	}
}
