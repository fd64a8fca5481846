package fetch

import (
	"time"

	"github.com/John-Robertt/flowerkit/internal/config"
	"github.com/John-Robertt/flowerkit/internal/domain"
)

// Observer 用于把“运行进度/条目结果”从批处理流程中解耦出来。
//
// 约束：fetch 包只负责发事件，不做任何输出；事件都在调用 Execute 的 goroutine 上按顺序发出。
type Observer interface {
	// OnStart 在清单解析完成、开始逐条处理前调用。
	OnStart(eff config.EffectiveConfig, total int)
	// OnItemDone 在某条记录处理完成时调用。
	OnItemDone(idx, total int, item ItemResult)
	// OnFinish 在输出文件写入之后调用。
	OnFinish(rep domain.FetchReport)
}

// ItemResult 是单条记录的处理结果。
type ItemResult struct {
	// Record 是写回后的记录（失败/未命中时三个补全字段为空）。
	Record domain.FlowerRecord
	// Attempts 是解析链路（离线或失败时为空）。
	Attempts []domain.Attempt
	// Err 非空表示网络层失败。
	Err     error
	Elapsed time.Duration
}

// LastSearchHit 返回链路中最后一次有结果的搜索（没有时 ok=false）。
func (r ItemResult) LastSearchHit() (domain.Attempt, bool) {
	for i := len(r.Attempts) - 1; i >= 0; i-- {
		if at := r.Attempts[i]; at.Stage == domain.StageSearch && at.Hit {
			return at, true
		}
	}
	return domain.Attempt{}, false
}
