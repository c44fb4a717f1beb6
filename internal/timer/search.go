package timer

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/hitoshi/countdown/internal/model"
)

// SearchResult はあいまい検索の一致結果を表す。
type SearchResult struct {
	Timer          model.Timer
	MatchedIndexes []int
	Score          int
}

// timerNames はfuzzy.Sourceを実装する。
type timerNames []model.Timer

func (tn timerNames) String(i int) string {
	return tn[i].Name
}

func (tn timerNames) Len() int {
	return len(tn)
}

// Search はタイマー名をあいまい検索し、スコアの高い順に返す。
// 空のクエリに対してはnilを返す。
func Search(list []model.Timer, query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	matches := fuzzy.FindFrom(query, timerNames(list))

	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{
			Timer:          list[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}
