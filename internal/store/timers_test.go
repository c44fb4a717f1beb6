package store

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

// --- テストヘルパー ---

type recordingRecorder struct {
	ops []string
}

func (r *recordingRecorder) RecordStoreFailure(op string) {
	r.ops = append(r.ops, op)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// requestWithCookies はレスポンスのSet-Cookieを新しいリクエストに載せ替える。
func requestWithCookies(t *testing.T, w *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func sampleTimers() []model.Timer {
	completedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return []model.Timer{
		{
			ID:         "stopwatch_1",
			Name:       "Wakacje; \"nad morzem\"",
			TargetDate: time.Date(2027, 7, 1, 10, 30, 0, 123000000, time.UTC),
			Status:     model.TimerStatusActive,
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "stopwatch_2",
			Name:        "Deadline",
			TargetDate:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			Status:      model.TimerStatusPaused,
			CreatedAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			CompletedAt: &completedAt,
		},
	}
}

// --- Save / Load ---

func TestTimerStore_SaveThenLoad_RoundTrips(t *testing.T) {
	s := NewTimerStore(DefaultCookieConfig(), nil, nil)
	want := sampleTimers()

	w := httptest.NewRecorder()
	s.Save(w, want)

	got := s.Load(requestWithCookies(t, w))
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Name != want[i].Name || got[i].Status != want[i].Status {
			t.Errorf("timer[%d] = %+v, want %+v", i, got[i], want[i])
		}
		if !got[i].TargetDate.Equal(want[i].TargetDate) {
			t.Errorf("timer[%d].TargetDate = %v, want %v", i, got[i].TargetDate, want[i].TargetDate)
		}
		if !got[i].CreatedAt.Equal(want[i].CreatedAt) {
			t.Errorf("timer[%d].CreatedAt = %v, want %v", i, got[i].CreatedAt, want[i].CreatedAt)
		}
	}
	if got[0].CompletedAt != nil {
		t.Errorf("timer[0].CompletedAt = %v, want nil", got[0].CompletedAt)
	}
	if got[1].CompletedAt == nil || !got[1].CompletedAt.Equal(*want[1].CompletedAt) {
		t.Errorf("timer[1].CompletedAt = %v, want %v", got[1].CompletedAt, want[1].CompletedAt)
	}
}

func TestTimerStore_SaveEmptyThenLoad_ReturnsEmptySlice(t *testing.T) {
	s := NewTimerStore(DefaultCookieConfig(), nil, nil)

	w := httptest.NewRecorder()
	s.Save(w, []model.Timer{})

	got := s.Load(requestWithCookies(t, w))
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

// TestTimerStore_Save_CookieAttributes はパス・有効期限などのCookie属性を検証する。
func TestTimerStore_Save_CookieAttributes(t *testing.T) {
	s := NewTimerStore(CookieConfig{MaxAge: DefaultMaxAge, Secure: true, Domain: "x.test"}, nil, nil)

	w := httptest.NewRecorder()
	s.Save(w, sampleTimers())

	c := findCookie(t, w, TimersCookieName)
	if c.Path != "/" {
		t.Errorf("Path = %q, want %q", c.Path, "/")
	}
	if c.MaxAge != 31536000 {
		t.Errorf("MaxAge = %d, want %d", c.MaxAge, 31536000)
	}
	if !c.Secure {
		t.Error("expected Secure cookie")
	}
	if !c.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if c.Domain != "x.test" {
		t.Errorf("Domain = %q, want %q", c.Domain, "x.test")
	}
	if strings.ContainsAny(c.Value, " ;\",") {
		t.Errorf("cookie value must be percent-encoded, got %q", c.Value)
	}
}

// TestTimerStore_Save_ISOFormat は日時がtoISOString互換の形式で保存されることを検証する。
func TestTimerStore_Save_ISOFormat(t *testing.T) {
	s := NewTimerStore(DefaultCookieConfig(), nil, nil)

	w := httptest.NewRecorder()
	s.Save(w, sampleTimers()[:1])

	c := findCookie(t, w, TimersCookieName)
	var records []map[string]any
	if err := s.cookie.decode(c.Value, &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if records[0]["targetDate"] != "2027-07-01T10:30:00.123Z" {
		t.Errorf("targetDate = %v, want %q", records[0]["targetDate"], "2027-07-01T10:30:00.123Z")
	}
	if _, ok := records[0]["completedAt"]; ok {
		t.Error("completedAt should be omitted when nil")
	}
}

func TestTimerStore_Load_NoCookie_ReturnsEmpty(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingRecorder{}
	s := NewTimerStore(DefaultCookieConfig(), newTestLogger(&buf), rec)

	got := s.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil || len(got) != 0 {
		t.Errorf("Load = %v, want empty slice", got)
	}
	if len(rec.ops) != 0 {
		t.Errorf("missing cookie should not count as failure, got %v", rec.ops)
	}
}

// TestTimerStore_Load_NonJSONCookie_ReturnsEmptyAndLogs は壊れたCookieでも例外にならず空を返すことを検証する。
func TestTimerStore_Load_NonJSONCookie_ReturnsEmptyAndLogs(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingRecorder{}
	s := NewTimerStore(DefaultCookieConfig(), newTestLogger(&buf), rec)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TimersCookieName, Value: "not-json-at-all"})

	got := s.Load(req)
	if got == nil || len(got) != 0 {
		t.Errorf("Load = %v, want empty slice", got)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log entry, got %q", buf.String())
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["op"] != "load" {
		t.Errorf("op = %v, want load", entry["op"])
	}
	if len(rec.ops) != 1 || rec.ops[0] != "load" {
		t.Errorf("recorded ops = %v, want [load]", rec.ops)
	}
}

func TestTimerStore_Load_BadPercentEncoding_ReturnsEmpty(t *testing.T) {
	s := NewTimerStore(DefaultCookieConfig(), slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TimersCookieName, Value: "%E0%A4%A"})

	if got := s.Load(req); len(got) != 0 {
		t.Errorf("Load = %v, want empty slice", got)
	}
}

// TestTimerStore_Load_InvalidDate_CarriedAsZero はパースできない日時がゼロ値として残ることを検証する。
func TestTimerStore_Load_InvalidDate_CarriedAsZero(t *testing.T) {
	var buf bytes.Buffer
	s := NewTimerStore(DefaultCookieConfig(), newTestLogger(&buf), nil)

	raw := `[{"id":"a","name":"A","targetDate":"garbage","status":"active","createdAt":"2026-01-01T00:00:00.000Z"}]`
	value, err := s.cookie.encode(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TimersCookieName, Value: value})

	got := s.Load(req)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if !got[0].TargetDate.IsZero() {
		t.Errorf("TargetDate = %v, want zero", got[0].TargetDate)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be parsed")
	}
	if !strings.Contains(buf.String(), "invalid date in timer cookie") {
		t.Errorf("expected warning log, got %q", buf.String())
	}
}

// TestTimerStore_Load_BrowserWrittenCookie はブラウザ版が書いたCookie（encodeURIComponent）を読めることを検証する。
func TestTimerStore_Load_BrowserWrittenCookie(t *testing.T) {
	s := NewTimerStore(DefaultCookieConfig(), nil, nil)

	value := "%5B%7B%22id%22%3A%22stopwatch_1700000000000_abc123def%22%2C%22name%22%3A%22Moje%20urodziny%22%2C%22targetDate%22%3A%222027-05-01T12%3A00%3A00.000Z%22%2C%22status%22%3A%22paused%22%2C%22createdAt%22%3A%222026-01-01T00%3A00%3A00.000Z%22%7D%5D"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TimersCookieName, Value: value})

	got := s.Load(req)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Name != "Moje urodziny" {
		t.Errorf("Name = %q, want %q", got[0].Name, "Moje urodziny")
	}
	if got[0].Status != model.TimerStatusPaused {
		t.Errorf("Status = %q, want %q", got[0].Status, model.TimerStatusPaused)
	}
	want := time.Date(2027, 5, 1, 12, 0, 0, 0, time.UTC)
	if !got[0].TargetDate.Equal(want) {
		t.Errorf("TargetDate = %v, want %v", got[0].TargetDate, want)
	}
}

// TestTimerStore_Save_TooLarge_SkipsWriteAndLogs は上限超過時にCookieを書かずに失敗を記録することを検証する。
func TestTimerStore_Save_TooLarge_SkipsWriteAndLogs(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingRecorder{}
	s := NewTimerStore(DefaultCookieConfig(), newTestLogger(&buf), rec)

	timers := make([]model.Timer, 100)
	for i := range timers {
		timers[i] = model.Timer{
			ID:         strings.Repeat("x", 36),
			Name:       strings.Repeat("ż", 50),
			TargetDate: time.Now().Add(time.Hour),
			Status:     model.TimerStatusActive,
			CreatedAt:  time.Now(),
		}
	}

	w := httptest.NewRecorder()
	s.Save(w, timers)

	if len(w.Result().Cookies()) != 0 {
		t.Error("expected no cookie to be written")
	}
	if len(rec.ops) != 1 || rec.ops[0] != "save" {
		t.Errorf("recorded ops = %v, want [save]", rec.ops)
	}
}

func TestTimerStore_Clear_ExpiresCookie(t *testing.T) {
	s := NewTimerStore(DefaultCookieConfig(), nil, nil)

	w := httptest.NewRecorder()
	s.Clear(w)

	c := findCookie(t, w, TimersCookieName)
	if c.MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative (expire now)", c.MaxAge)
	}
	if c.Value != "" {
		t.Errorf("Value = %q, want empty", c.Value)
	}
	if c.Path != "/" {
		t.Errorf("Path = %q, want %q", c.Path, "/")
	}
}
