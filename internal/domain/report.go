package domain

import (
	"time"
)

// FetchReport 是一次抓图批处理的结果汇总。
type FetchReport struct {
	Source  string `json:"source"`
	Offline bool   `json:"offline"`
	// Interrupted 表示批处理被取消，未处理的记录保持空字段。
	Interrupted bool `json:"interrupted"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary FetchSummary   `json:"summary"`
	Records []FlowerRecord `json:"-"`

	// Missing 是没有拿到图片的花名（按解析顺序，包含网络失败的条目）。
	Missing []string `json:"missing"`
	// Failed 是网络层失败、被清空补全字段的花名。
	Failed []string `json:"failed"`
}

type FetchSummary struct {
	Total    int            `json:"total"`
	Found    int            `json:"found"`
	Missing  int            `json:"missing"`
	Failed   int            `json:"failed"`
	BySource map[string]int `json:"by_source"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) Missing 由 Records 重新计算（保持解析顺序）
// 3) summary 由 Records/Failed 计算得出
func (r *FetchReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := FetchSummary{BySource: map[string]int{}}
	missing := make([]string, 0)
	for _, rec := range r.Records {
		s.Total++
		if !rec.HasImage() {
			missing = append(missing, rec.Name)
			continue
		}
		s.Found++
		if rec.Source != nil {
			s.BySource[*rec.Source]++
		}
	}
	if r.Failed == nil {
		r.Failed = []string{}
	}
	s.Missing = len(missing)
	s.Failed = len(r.Failed)

	r.Missing = missing
	r.Summary = s
}
