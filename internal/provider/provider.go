package provider

import (
	"context"

	"github.com/John-Robertt/flowerkit/internal/domain"
)

// 解析模式（Registry 中的 provider 名称）。
const (
	ModeOpenverse = "openverse"
	ModeWikipedia = "wikipedia"
)

// Provider 把“图片来源站点的差异”限制在 provider 子包内部；批处理只依赖统一接口与 domain.Resolution。
//
// 约束：
// - 未命中返回零值 Resolution + nil error（未命中不是错误）
// - 只有网络层失败（连接/超时/非 2xx/响应无法解析）才返回 error，且不在内部吞掉
// - Resolve 不做限速（由批处理统一控制请求间隔）
type Provider interface {
	Name() string
	Resolve(ctx context.Context, name string) (domain.Resolution, error)
}
