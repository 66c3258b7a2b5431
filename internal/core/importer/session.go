package importer

import (
	"fmt"
	"net/http"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"
)

const cycleLength = 7

// CampaignDay 計算活動日序（活動首日為第 1 天）。只比較日期，
// 同一天內任何時刻執行結果一致。
func CampaignDay(start, today time.Time) int {
	startDate := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(todayDate.Sub(startDate).Hours()/24) + 1
}

// CycleDay 活動日序對應的七天循環日（1-7）
func CycleDay(campaignDay int) int {
	return (campaignDay-1)%cycleLength + 1
}

// PhaseFor 活動日序對應的階段：1-10 天為第一階段（人氣優先），
// 11-15 天為第二階段（飲食偏好輪替），之後為第三階段（隨機探索）
func PhaseFor(campaignDay int) int {
	switch {
	case campaignDay <= 10:
		return 1
	case campaignDay <= 15:
		return 2
	default:
		return 3
	}
}

// NewSession 依活動設定與當下時間建立匯入場次。活動尚未開始或已結束時
// 回傳錯誤，呼叫端據此跳過當日排程。
func NewSession(cfg config.CampaignConfig, now time.Time) (*common.ImportSession, error) {
	start, err := cfg.Start()
	if err != nil {
		return nil, common.NewError(common.ErrCodeConfigError, "活動起始日期無效", http.StatusInternalServerError, err)
	}

	campaignDay := CampaignDay(start, now)
	if campaignDay < 1 {
		return nil, fmt.Errorf("%w: campaign starts on %s", ErrCampaignInactive, cfg.StartDate)
	}
	if campaignDay > cfg.TotalDays {
		return nil, fmt.Errorf("%w: campaign ended after day %d", ErrCampaignInactive, cfg.TotalDays)
	}

	return &common.ImportSession{
		ID:          common.GenerateSessionID("import"),
		Date:        now,
		CampaignDay: campaignDay,
		CycleDay:    CycleDay(campaignDay),
		Phase:       PhaseFor(campaignDay),
		StartedAt:   now,
		Status:      common.SessionRunning,
	}, nil
}
