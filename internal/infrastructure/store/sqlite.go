package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB 食譜儲存層：sqlite 單檔資料庫。結構化欄位供查詢與統計，
// 完整食譜內容以 JSON 存放於 data 欄。
type DB struct {
	sql *sql.DB
}

// Open 開啟資料庫並確保綱要存在
func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS recipes (
  external_id     INTEGER PRIMARY KEY,
  title           TEXT NOT NULL,
  category        TEXT NOT NULL,
  strategy        TEXT NOT NULL,
  session_id      TEXT NOT NULL,
  quality_total   REAL NOT NULL,
  imported_at     DATETIME NOT NULL,
  data            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recipes_category ON recipes(category, imported_at);
CREATE INDEX IF NOT EXISTS idx_recipes_session ON recipes(session_id);
	`); err != nil {
		return nil, err
	}

	common.LogInfo("食譜儲存層就緒", zap.String("path", path))
	return &DB{sql: db}, nil
}

// Close 關閉資料庫
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// BatchSave 單一交易批次寫入。任何一筆失敗整批回滾，
// 場次不落地半套結果。
func (d *DB) BatchSave(ctx context.Context, recipes []common.ImportedRecipe) error {
	if len(recipes) == 0 {
		return nil
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO recipes(external_id, title, category, strategy, session_id, quality_total, imported_at, data)
VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range recipes {
		r := &recipes[i]
		var data []byte
		data, err = json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal recipe %d: %w", r.Candidate.ExternalID, err)
		}
		if _, err = stmt.ExecContext(ctx,
			r.Candidate.ExternalID,
			r.Candidate.Title,
			string(r.Categorization.Category),
			r.StrategyName,
			r.SessionID,
			r.Quality.Total,
			r.ImportedAt.UTC(),
			string(data),
		); err != nil {
			return fmt.Errorf("insert recipe %d: %w", r.Candidate.ExternalID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	common.LogInfo("批次寫入完成", zap.Int("筆數", len(recipes)))
	return nil
}

// GetByCategory 讀取指定餐別的食譜，依匯入時間新到舊，最多 limit 筆。
// 去重索引預載使用。
func (d *DB) GetByCategory(ctx context.Context, category common.MealCategory, limit int) ([]common.ImportedRecipe, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT data FROM recipes WHERE category = ? ORDER BY imported_at DESC LIMIT ?",
		string(category), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.ImportedRecipe
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var recipe common.ImportedRecipe
		if err := json.Unmarshal([]byte(data), &recipe); err != nil {
			return nil, fmt.Errorf("unmarshal stored recipe: %w", err)
		}
		out = append(out, recipe)
	}
	return out, rows.Err()
}

// GetAllIDs 讀取全部已匯入的 external id
func (d *DB) GetAllIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT external_id FROM recipes ORDER BY external_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetCount 已匯入食譜總數
func (d *DB) GetCount(ctx context.Context) (int, error) {
	var count int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM recipes").Scan(&count)
	return count, err
}

// GetCountByCategory 各餐別累計數。未出現的餐別補零，
// 報告的覆蓋率段落依賴完整的鍵集合。
func (d *DB) GetCountByCategory(ctx context.Context) (map[common.MealCategory]int, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT category, COUNT(*) FROM recipes GROUP BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[common.MealCategory]int)
	for _, category := range common.AllCategories() {
		counts[category] = 0
	}
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[common.MealCategory(category)] = count
	}
	return counts, rows.Err()
}
