package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/share"
	"github.com/hitoshi/countdown/internal/timer"
)

// fixedNow はハンドラーテストで使う現在時刻。
var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// --- モック定義 ---

// mockTimerStore はTimerStoreのモック実装。
// Loadは固定の一覧を返し、Save/Clearの呼び出しを記録する。
type mockTimerStore struct {
	timers    []model.Timer
	saved     []model.Timer
	saveCalls int
	cleared   bool
}

func (m *mockTimerStore) Save(w http.ResponseWriter, timers []model.Timer) {
	m.saveCalls++
	m.saved = timers
}

func (m *mockTimerStore) Load(r *http.Request) []model.Timer {
	if m.timers == nil {
		return []model.Timer{}
	}
	return m.timers
}

func (m *mockTimerStore) Clear(w http.ResponseWriter) {
	m.cleared = true
}

// mockTimerService はTimerServiceのモック実装。
type mockTimerService struct {
	createFn func(list []model.Timer, form timer.FormData, now time.Time) ([]model.Timer, model.Timer, error)
	pauseFn  func(list []model.Timer, id string, now time.Time) ([]model.Timer, error)
	resumeFn func(list []model.Timer, id string, now time.Time) ([]model.Timer, error)
	removeFn func(list []model.Timer, id string) ([]model.Timer, error)
	importFn func(list []model.Timer, shared model.Timer) ([]model.Timer, error)
}

func (m *mockTimerService) Create(list []model.Timer, form timer.FormData, now time.Time) ([]model.Timer, model.Timer, error) {
	if m.createFn != nil {
		return m.createFn(list, form, now)
	}
	return list, model.Timer{}, nil
}

func (m *mockTimerService) Pause(list []model.Timer, id string, now time.Time) ([]model.Timer, error) {
	if m.pauseFn != nil {
		return m.pauseFn(list, id, now)
	}
	return list, nil
}

func (m *mockTimerService) Resume(list []model.Timer, id string, now time.Time) ([]model.Timer, error) {
	if m.resumeFn != nil {
		return m.resumeFn(list, id, now)
	}
	return list, nil
}

func (m *mockTimerService) Remove(list []model.Timer, id string) ([]model.Timer, error) {
	if m.removeFn != nil {
		return m.removeFn(list, id)
	}
	return list, nil
}

func (m *mockTimerService) Import(list []model.Timer, shared model.Timer) ([]model.Timer, error) {
	if m.importFn != nil {
		return m.importFn(list, shared)
	}
	return list, nil
}

// mockShareLinks はShareLinkBuilderのモック実装。
type mockShareLinks struct {
	buildFn func(t model.Timer, baseURL string) (string, error)
}

func (m *mockShareLinks) BuildShareLink(t model.Timer, baseURL string) (string, error) {
	if m.buildFn != nil {
		return m.buildFn(t, baseURL)
	}
	return "", nil
}

// mockResolver はShareResolverのモック実装。
type mockResolver struct {
	validateFn func(rawURL string) share.ValidationOutcome
	calls      []string
}

func (m *mockResolver) Validate(rawURL string, opts ...share.ValidateOption) share.ValidationOutcome {
	m.calls = append(m.calls, rawURL)
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return share.ValidationOutcome{}
}

// mockTombstoneStore はTombstoneStoreのモック実装。
type mockTombstoneStore struct {
	ids   []string
	added []string
}

func (m *mockTombstoneStore) Load(r *http.Request) []string {
	return m.ids
}

func (m *mockTombstoneStore) Add(w http.ResponseWriter, r *http.Request, id string) []string {
	m.added = append(m.added, id)
	m.ids = append(m.ids, id)
	return m.ids
}

// --- ヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// sampleTimers はカウントダウン中、一時停止中、完了済み（保存値はactive）のタイマーを返す。
func sampleTimers() []model.Timer {
	return []model.Timer{
		{
			ID:         "stopwatch_1",
			Name:       "Moje urodziny",
			TargetDate: fixedNow.Add(time.Hour),
			Status:     model.TimerStatusActive,
			CreatedAt:  fixedNow.Add(-time.Hour),
		},
		{
			ID:         "stopwatch_2",
			Name:       "Wakacje",
			TargetDate: fixedNow.Add(48 * time.Hour),
			Status:     model.TimerStatusPaused,
			CreatedAt:  fixedNow.Add(-time.Hour),
		},
		{
			ID:         "stopwatch_3",
			Name:       "Deadline projektu",
			TargetDate: fixedNow.Add(-time.Minute),
			Status:     model.TimerStatusActive,
			CreatedAt:  fixedNow.Add(-24 * time.Hour),
		},
	}
}

func newTestTimerHandler(store TimerStore, svc TimerService, links ShareLinkBuilder) *TimerHandler {
	h := NewTimerHandler(store, svc, links, "https://countdown.example")
	h.now = func() time.Time { return fixedNow }
	return h
}

func newTestShareHandler(resolver ShareResolver, store TimerStore, tombstones TombstoneStore, svc TimerService) *ShareHandler {
	h := NewShareHandler(resolver, store, tombstones, svc, "https://countdown.example")
	h.now = func() time.Time { return fixedNow }
	return h
}
