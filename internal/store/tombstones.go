package store

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
)

// TombstonesCookieName は削除済み共有タイマーのIDを保持するCookieの名前。
const TombstonesCookieName = "deleted_shared_stopwatches"

// TombstoneStore はユーザーが削除した共有タイマーのIDを記録する。
// 同じ共有リンクを再度開いたときに取り込みを拒否するために使う。
type TombstoneStore struct {
	cookie jsonCookie
}

// NewTombstoneStore はTombstoneStoreを生成する。loggerとrecorderはnil可。
func NewTombstoneStore(config CookieConfig, logger *slog.Logger, recorder FailureRecorder) *TombstoneStore {
	return &TombstoneStore{cookie: newJSONCookie(TombstonesCookieName, config, logger, recorder)}
}

// Load は削除済みIDの一覧を返す。失敗時は空のスライスを返す。
func (s *TombstoneStore) Load(r *http.Request) []string {
	var ids []string
	if err := s.cookie.read(r, &ids); err != nil {
		if !errors.Is(err, http.ErrNoCookie) {
			s.cookie.fail("load", err)
		}
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

// Add はIDを削除済み一覧に追加して保存し、更新後の一覧を返す。
// 既に含まれている場合は何もしない。
func (s *TombstoneStore) Add(w http.ResponseWriter, r *http.Request, id string) []string {
	ids := s.Load(r)
	if slices.Contains(ids, id) {
		return ids
	}
	ids = append(ids, id)
	if err := s.cookie.write(w, ids); err != nil {
		s.cookie.fail("save", err)
	}
	return ids
}

// Clear はCookieを即時失効させる。
func (s *TombstoneStore) Clear(w http.ResponseWriter) {
	s.cookie.expire(w)
}
