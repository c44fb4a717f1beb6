package timer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/countdown/internal/clock"
	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/security"
)

// IDPrefix は生成するタイマーIDの接頭辞。
const IDPrefix = "stopwatch_"

// NameSanitizer はタイマー名のサニタイズを行うインターフェース。
type NameSanitizer interface {
	SanitizeName(name string) string
}

// Recorder はタイマー操作のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordTimerCreated()
	RecordTimerImported()
}

type noopRecorder struct{}

func (noopRecorder) RecordTimerCreated()  {}
func (noopRecorder) RecordTimerImported() {}

// Service はタイマー一覧操作のサービス層。
// 状態を持たないため、複数のリクエストから並行に利用できる。
type Service struct {
	newID     func() string
	sanitizer NameSanitizer
	recorder  Recorder
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithIDGenerator はID生成関数を差し替える。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithSanitizer はタイマー名のサニタイザーを差し替える。
func WithSanitizer(sanitizer NameSanitizer) Option {
	return func(s *Service) { s.sanitizer = sanitizer }
}

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(opts ...Option) *Service {
	s := &Service{
		newID:     NewID,
		sanitizer: security.NewNameSanitizer(),
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID は "stopwatch_" + UUIDv4 形式のタイマーIDを生成する。
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// Create はフォーム入力からタイマーを作成し、一覧の先頭に追加した新しい一覧を返す。
// タイマー名はサニタイズ後に検証する。検証に失敗した場合は *ValidationError を返す。
func (s *Service) Create(list []model.Timer, form FormData, now time.Time) ([]model.Timer, model.Timer, error) {
	form.Name = s.sanitizer.SanitizeName(form.Name)
	if reasons := ValidateForm(form, now); len(reasons) > 0 {
		return list, model.Timer{}, &ValidationError{Reasons: reasons}
	}

	created := model.Timer{
		ID:         s.newID(),
		Name:       strings.TrimSpace(form.Name),
		TargetDate: form.TargetDate.UTC(),
		Status:     model.TimerStatusActive,
		CreatedAt:  now.UTC(),
	}
	s.recorder.RecordTimerCreated()

	return prepend(list, created), created, nil
}

// Pause は指定IDのタイマーを一時停止状態にした新しい一覧を返す。
// 既に一時停止中の場合は変更しない。
func (s *Service) Pause(list []model.Timer, id string, now time.Time) ([]model.Timer, error) {
	return setStatus(list, id, model.TimerStatusPaused, now)
}

// Resume は指定IDのタイマーをカウントダウン中の状態に戻した新しい一覧を返す。
func (s *Service) Resume(list []model.Timer, id string, now time.Time) ([]model.Timer, error) {
	return setStatus(list, id, model.TimerStatusActive, now)
}

// Remove は指定IDのタイマーを取り除いた新しい一覧を返す。
func (s *Service) Remove(list []model.Timer, id string) ([]model.Timer, error) {
	idx := indexOf(list, id)
	if idx < 0 {
		return list, fmt.Errorf("%w: %s", model.ErrTimerNotFound, id)
	}
	return slices.Delete(slices.Clone(list), idx, idx+1), nil
}

// Import は共有リンクから復元したタイマーを一覧の先頭に追加した新しい一覧を返す。
// 同じIDのタイマーが既にある場合は model.ErrDuplicateTimer を返す。
// サニタイズ後の名前が空または長すぎる場合は model.ErrDecodeFailure を返す。
func (s *Service) Import(list []model.Timer, shared model.Timer) ([]model.Timer, error) {
	if indexOf(list, shared.ID) >= 0 {
		return list, fmt.Errorf("%w: %s", model.ErrDuplicateTimer, shared.ID)
	}

	shared.Name = strings.TrimSpace(s.sanitizer.SanitizeName(shared.Name))
	if reasons := validateName(shared.Name); len(reasons) > 0 {
		return list, fmt.Errorf("%w: %s", model.ErrDecodeFailure, strings.Join(reasons, "; "))
	}
	s.recorder.RecordTimerImported()

	return prepend(list, shared), nil
}

// Find は指定IDのタイマーを返す。
func Find(list []model.Timer, id string) (model.Timer, bool) {
	idx := indexOf(list, id)
	if idx < 0 {
		return model.Timer{}, false
	}
	return list[idx], true
}

// setStatus はactiveとpausedの間の遷移のみを扱う。
// 完了済み（導出）のタイマーは遷移できない。
func setStatus(list []model.Timer, id string, status model.TimerStatus, now time.Time) ([]model.Timer, error) {
	idx := indexOf(list, id)
	if idx < 0 {
		return list, fmt.Errorf("%w: %s", model.ErrTimerNotFound, id)
	}
	if clock.IsCompletedAt(list[idx], now) {
		return list, fmt.Errorf("%w: %s", model.ErrTimerCompleted, id)
	}

	updated := slices.Clone(list)
	updated[idx].Status = status
	return updated, nil
}

func indexOf(list []model.Timer, id string) int {
	return slices.IndexFunc(list, func(t model.Timer) bool { return t.ID == id })
}

func prepend(list []model.Timer, t model.Timer) []model.Timer {
	out := make([]model.Timer, 0, len(list)+1)
	out = append(out, t)
	return append(out, list...)
}
