package store

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

// TimersCookieName はタイマー一覧を保持するCookieの名前。
const TimersCookieName = "stopwatches"

// storedTimer はCookie内のタイマー1件のJSON表現。
// 日時はISO-8601文字列として保持し、読み込み時に復元する。
type storedTimer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TargetDate  string  `json:"targetDate"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt,omitempty"`
}

// TimerStore はタイマー一覧をCookieに保存・読み込みする。
// 内部状態は持たず、Loadは毎回新しいスライスを返す。
type TimerStore struct {
	cookie jsonCookie
}

// NewTimerStore はTimerStoreを生成する。loggerとrecorderはnil可。
func NewTimerStore(config CookieConfig, logger *slog.Logger, recorder FailureRecorder) *TimerStore {
	return &TimerStore{cookie: newJSONCookie(TimersCookieName, config, logger, recorder)}
}

// Save は一覧全体をCookieに書き込み、既存の値を置き換える。
// 失敗はログに記録され、呼び出し側には伝播しない。
func (s *TimerStore) Save(w http.ResponseWriter, timers []model.Timer) {
	if err := s.save(w, timers); err != nil {
		s.cookie.fail("save", err)
	}
}

func (s *TimerStore) save(w http.ResponseWriter, timers []model.Timer) error {
	records := make([]storedTimer, len(timers))
	for i, t := range timers {
		records[i] = toStoredTimer(t)
	}
	return s.cookie.write(w, records)
}

// Load はCookieからタイマー一覧を読み込む。
// Cookieが無い、壊れている等の場合は空のスライスを返す（nilは返さない）。
func (s *TimerStore) Load(r *http.Request) []model.Timer {
	timers, err := s.load(r)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			s.cookie.logger.Debug("timer cookie not present")
		} else {
			s.cookie.fail("load", err)
		}
		return []model.Timer{}
	}
	return timers
}

func (s *TimerStore) load(r *http.Request) ([]model.Timer, error) {
	var records []storedTimer
	if err := s.cookie.read(r, &records); err != nil {
		return nil, err
	}

	timers := make([]model.Timer, 0, len(records))
	for _, rec := range records {
		timers = append(timers, s.revive(rec))
	}
	return timers, nil
}

// Clear はCookieを即時失効させる。
func (s *TimerStore) Clear(w http.ResponseWriter) {
	s.cookie.expire(w)
}

// revive はstoredTimerをmodel.Timerに復元する。
// 日時がパースできない場合はゼロ値のまま残す（ローダーは寛容に振る舞う）。
func (s *TimerStore) revive(rec storedTimer) model.Timer {
	t := model.Timer{
		ID:         rec.ID,
		Name:       rec.Name,
		Status:     model.TimerStatus(rec.Status),
		TargetDate: s.parseDate(rec.ID, "targetDate", rec.TargetDate),
		CreatedAt:  s.parseDate(rec.ID, "createdAt", rec.CreatedAt),
	}
	if rec.CompletedAt != nil {
		completedAt := s.parseDate(rec.ID, "completedAt", *rec.CompletedAt)
		t.CompletedAt = &completedAt
	}
	return t
}

func (s *TimerStore) parseDate(id, field, value string) time.Time {
	parsed, err := model.ParseTimestamp(value)
	if err != nil {
		s.cookie.logger.Warn("invalid date in timer cookie",
			slog.String("timer_id", id),
			slog.String("field", field),
			slog.String("value", value),
		)
		return time.Time{}
	}
	return parsed
}

func toStoredTimer(t model.Timer) storedTimer {
	rec := storedTimer{
		ID:         t.ID,
		Name:       t.Name,
		TargetDate: model.FormatTimestamp(t.TargetDate),
		Status:     string(t.Status),
		CreatedAt:  model.FormatTimestamp(t.CreatedAt),
	}
	if t.CompletedAt != nil {
		completedAt := model.FormatTimestamp(*t.CompletedAt)
		rec.CompletedAt = &completedAt
	}
	return rec
}
