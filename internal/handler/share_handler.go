package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/countdown/internal/middleware"
	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/share"
	"github.com/hitoshi/countdown/internal/timer"
)

// ShareResolver は共有URL検証のインターフェース。
type ShareResolver interface {
	Validate(rawURL string, opts ...share.ValidateOption) share.ValidationOutcome
}

// TombstoneStore は削除済み共有タイマーIDの永続化インターフェース。
type TombstoneStore interface {
	Load(r *http.Request) []string
	Add(w http.ResponseWriter, r *http.Request, id string) []string
}

// ShareHandler は共有リンクの受信側のHTTPハンドラー。
type ShareHandler struct {
	resolver   ShareResolver
	timers     TimerStore
	tombstones TombstoneStore
	service    TimerService
	baseURL    string
	now        func() time.Time
}

// NewShareHandler はShareHandlerの新しいインスタンスを生成する。
func NewShareHandler(
	resolver ShareResolver,
	timers TimerStore,
	tombstones TombstoneStore,
	service TimerService,
	baseURL string,
) *ShareHandler {
	return &ShareHandler{
		resolver:   resolver,
		timers:     timers,
		tombstones: tombstones,
		service:    service,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// HandleOpen は共有リンクを解決し、タイマー内容を返す。
// GET /stopwatch/{id}?data={token}
func (h *ShareHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	shared, ok := h.resolve(w, r, h.linkURL(r))
	if !ok {
		return
	}
	h.writeShared(w, r, shared)
}

// HandleResolve は任意の共有URLを解決する。
// GET /api/share/resolve?url={shareURL}
func (h *ShareHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if strings.TrimSpace(rawURL) == "" {
		writeInvalidRequest(w, "urlパラメータは必須です。")
		return
	}

	shared, ok := h.resolve(w, r, rawURL)
	if !ok {
		return
	}
	h.writeShared(w, r, shared)
}

// HandleImport は共有リンクのタイマーを自分の一覧に追加する。
// POST /stopwatch/{id}/import?data={token}
func (h *ShareHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	shared, ok := h.resolve(w, r, h.linkURL(r))
	if !ok {
		return
	}

	list, err := h.service.Import(h.timers.Load(r), shared)
	if err != nil {
		handleServiceError(w, err, shared.ID)
		return
	}
	h.timers.Save(w, list)

	imported, _ := timer.Find(list, shared.ID)
	writeJSON(w, http.StatusCreated, toTimerResponse(imported, h.now()))
}

// HandleDelete は共有タイマーを削除済みとして記録し、一覧にあれば取り除く。
// 以後、同じ共有リンクは解決できなくなる。
// DELETE /stopwatch/{id}
func (h *ShareHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeInvalidRequest(w, "タイマーIDは必須です。")
		return
	}

	h.tombstones.Add(w, r, id)

	list, err := h.service.Remove(h.timers.Load(r), id)
	switch {
	case err == nil:
		h.timers.Save(w, list)
	case errors.Is(err, model.ErrTimerNotFound):
		// 一覧に取り込んでいない共有タイマーも削除済みとして扱う
	default:
		handleServiceError(w, err, id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolve は削除済みIDを考慮して共有URLを検証する。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func (h *ShareHandler) resolve(w http.ResponseWriter, r *http.Request, rawURL string) (model.Timer, bool) {
	outcome := h.resolver.Validate(rawURL, share.WithDeleted(h.tombstones.Load(r)))
	if !outcome.IsValid || outcome.Timer == nil {
		resErr := outcome.Err()
		if resErr == nil {
			resErr = &model.ResolutionError{Type: model.ResolutionUnknown, Message: share.MsgDamagedLink}
		}
		middleware.WriteResolutionErrorResponse(w, resErr)
		return model.Timer{}, false
	}
	return *outcome.Timer, true
}

func (h *ShareHandler) writeShared(w http.ResponseWriter, r *http.Request, shared model.Timer) {
	_, imported := timer.Find(h.timers.Load(r), shared.ID)
	writeJSON(w, http.StatusOK, sharedTimerResponse{
		Timer:           toTimerResponse(shared, h.now()),
		AlreadyImported: imported,
	})
}

// linkURL はリクエストから共有URLを組み立て直す。
func (h *ShareHandler) linkURL(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	query := url.Values{share.DataQueryParam: {r.URL.Query().Get(share.DataQueryParam)}}
	return strings.TrimRight(h.baseURL, "/") + share.SharePathSegment + url.PathEscape(id) + "?" + query.Encode()
}
