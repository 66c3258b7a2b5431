package importer

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"recipe-importer/internal/core/dedup"
	coreimporter "recipe-importer/internal/core/importer"
	"recipe-importer/internal/core/source"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// blockingSource 第一次搜尋時通知測試端並停住，直到測試放行
type blockingSource struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) Search(context.Context, source.SearchFilters) (*source.SearchPage, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return &source.SearchPage{}, nil
}

func (s *blockingSource) GetDetail(context.Context, int64) (*common.RecipeCandidate, error) {
	return nil, nil
}

// emptyStore 無資料的儲存層
type emptyStore struct{}

func (emptyStore) GetAllIDs(context.Context) ([]int64, error) { return nil, nil }
func (emptyStore) GetByCategory(context.Context, common.MealCategory, int) ([]common.ImportedRecipe, error) {
	return nil, nil
}
func (emptyStore) BatchSave(context.Context, []common.ImportedRecipe) error { return nil }
func (emptyStore) GetCount(context.Context) (int, error)                    { return 0, nil }
func (emptyStore) GetCountByCategory(context.Context) (map[common.MealCategory]int, error) {
	return map[common.MealCategory]int{}, nil
}

func TestHandleRunDailyConflictsWhileRunning(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Source: config.SourceConfig{PageSize: 4},
		Campaign: config.CampaignConfig{
			StartDate:       "2026-08-01",
			TotalDays:       20,
			DailyQuota:      5,
			MinQualityScore: 30,
			MaxRetries:      3,
		},
		Store: config.StoreConfig{SeedLimit: 200},
		Dedup: config.DedupConfig{SimilarityThreshold: 85, VariantOverlap: 0.7},
	}

	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	o := coreimporter.NewOrchestrator(cfg, src, emptyStore{}, dedup.NewDeduplicator(cfg.Dedup, nil), rand.New(rand.NewSource(1)))
	o.SetClock(func() time.Time { return time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC) }, func(time.Duration) {})
	h := NewHandler(o, emptyStore{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.ExecuteDailyImport(context.Background())
	}()
	<-src.started

	// 場次執行中再觸發一次
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/import/run", nil)
	h.HandleRunDaily(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d while a session is running", w.Code, http.StatusConflict)
	}

	close(src.release)
	<-done

	// 場次結束後可再次觸發
	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodPost, "/api/v1/import/run", nil)
	h.HandleRunDaily(c2)

	if w2.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d after the session finished", w2.Code, http.StatusAccepted)
	}
}
