package importer

import (
	"errors"
	"testing"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"
)

func campaignConfig(start string, totalDays int) config.CampaignConfig {
	return config.CampaignConfig{
		StartDate:       start,
		TotalDays:       totalDays,
		DailyQuota:      25,
		MinQualityScore: 30,
		MaxRetries:      3,
	}
}

func TestCampaignDay(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		today time.Time
		want  int
	}{
		{"first day", start, 1},
		{"first day evening", time.Date(2026, 8, 1, 23, 30, 0, 0, time.UTC), 1},
		{"second day", time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), 2},
		{"tenth day", time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC), 10},
		{"before start", time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CampaignDay(start, tc.today); got != tc.want {
				t.Fatalf("CampaignDay = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCycleDay(t *testing.T) {
	cases := []struct {
		campaignDay int
		want        int
	}{
		{1, 1}, {2, 2}, {7, 7}, {8, 1}, {14, 7}, {15, 1}, {20, 6},
	}
	for _, tc := range cases {
		if got := CycleDay(tc.campaignDay); got != tc.want {
			t.Fatalf("CycleDay(%d) = %d, want %d", tc.campaignDay, got, tc.want)
		}
	}
}

func TestPhaseFor(t *testing.T) {
	cases := []struct {
		campaignDay int
		want        int
	}{
		{1, 1}, {10, 1}, {11, 2}, {15, 2}, {16, 3}, {20, 3},
	}
	for _, tc := range cases {
		if got := PhaseFor(tc.campaignDay); got != tc.want {
			t.Fatalf("PhaseFor(%d) = %d, want %d", tc.campaignDay, got, tc.want)
		}
	}
}

func TestNewSession(t *testing.T) {
	cfg := campaignConfig("2026-08-01", 20)
	now := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)

	session, err := NewSession(cfg, now)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if session.CampaignDay != 12 {
		t.Fatalf("campaign day = %d, want 12", session.CampaignDay)
	}
	if session.CycleDay != 5 {
		t.Fatalf("cycle day = %d, want 5", session.CycleDay)
	}
	if session.Phase != 2 {
		t.Fatalf("phase = %d, want 2", session.Phase)
	}
	if session.Status != common.SessionRunning {
		t.Fatalf("status = %s, want running", session.Status)
	}
	if session.ID == "" {
		t.Fatal("expected session id to be set")
	}
}

func TestNewSessionOutsideCampaign(t *testing.T) {
	cfg := campaignConfig("2026-08-01", 20)

	_, err := NewSession(cfg, time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrCampaignInactive) {
		t.Fatalf("expected ErrCampaignInactive before start, got %v", err)
	}

	_, err = NewSession(cfg, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrCampaignInactive) {
		t.Fatalf("expected ErrCampaignInactive after end, got %v", err)
	}
}

func TestNewSessionInvalidStartDate(t *testing.T) {
	cfg := campaignConfig("not-a-date", 20)

	_, err := NewSession(cfg, time.Now())
	if err == nil {
		t.Fatal("expected error for invalid start date")
	}
	var ce *common.CustomError
	if !errors.As(err, &ce) || ce.Code != common.ErrCodeConfigError {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}
