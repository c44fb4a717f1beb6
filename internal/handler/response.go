package handler

import (
	"time"

	"github.com/hitoshi/countdown/internal/clock"
	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/timer"
)

// timerResponse はタイマー情報のAPIレスポンス。
// statusは目標日時から導出した表示用ステータス、stored_statusはCookieに保存された値。
type timerResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	TargetDate     string  `json:"target_date"`
	Status         string  `json:"status"`
	StoredStatus   string  `json:"stored_status"`
	CreatedAt      string  `json:"created_at"`
	CompletedAt    *string `json:"completed_at,omitempty"`
	TimeLeftMs     int64   `json:"time_left_ms"`
	Formatted      string  `json:"formatted"`
	MatchedIndexes []int   `json:"matched_indexes,omitempty"`
}

// statsResponse はタイマー集計のAPIレスポンス。
type statsResponse struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
}

// shareLinkResponse は共有リンク生成のAPIレスポンス。
type shareLinkResponse struct {
	URL     string `json:"url"`
	TimerID string `json:"timer_id"`
}

// sharedTimerResponse は共有URL解決のAPIレスポンス。
type sharedTimerResponse struct {
	Timer           timerResponse `json:"timer"`
	AlreadyImported bool          `json:"already_imported"`
}

func toTimerResponse(t model.Timer, now time.Time) timerResponse {
	left := clock.TimeLeft(t.TargetDate, now)
	resp := timerResponse{
		ID:           t.ID,
		Name:         t.Name,
		TargetDate:   formatTimestamp(t.TargetDate),
		Status:       string(clock.EffectiveStatus(t, now)),
		StoredStatus: string(t.Status),
		CreatedAt:    formatTimestamp(t.CreatedAt),
		TimeLeftMs:   left.Milliseconds(),
		Formatted:    clock.FormatDuration(left),
	}
	if t.CompletedAt != nil {
		completedAt := formatTimestamp(*t.CompletedAt)
		resp.CompletedAt = &completedAt
	}
	return resp
}

func toTimerResponses(list []model.Timer, now time.Time) []timerResponse {
	results := make([]timerResponse, len(list))
	for i, t := range list {
		results[i] = toTimerResponse(t, now)
	}
	return results
}

func toSearchResponses(matches []timer.SearchResult, now time.Time) []timerResponse {
	results := make([]timerResponse, len(matches))
	for i, m := range matches {
		results[i] = toTimerResponse(m.Timer, now)
		results[i].MatchedIndexes = m.MatchedIndexes
	}
	return results
}

func toStatsResponse(s timer.Stats) statsResponse {
	return statsResponse{
		Total:     s.Total,
		Active:    s.Active,
		Paused:    s.Paused,
		Completed: s.Completed,
	}
}

// formatTimestamp はゼロ値（不正な日付）を空文字列として返す。
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return model.FormatTimestamp(t)
}
