package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/John-Robertt/flowerkit/internal/domain"
)

// Resolve 用 mode 对应的 provider 解析一个花名。
//
// 返回值：
// - 命中：Resolution.Found()==true
// - 未命中：零值字段 + nil error
// - 网络层失败：*Error（带 provider 名称，便于上层输出可操作的提示）
func Resolve(ctx context.Context, reg Registry, mode string, name string) (domain.Resolution, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return domain.Resolution{}, fmt.Errorf("mode 不能为空")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Resolution{}, fmt.Errorf("花名不能为空")
	}

	p, ok := reg.Get(mode)
	if !ok {
		return domain.Resolution{}, fmt.Errorf("provider 未注册：%q", mode)
	}

	res, err := p.Resolve(ctx, name)
	if err != nil {
		return domain.Resolution{}, &Error{Provider: mode, Stage: "fetch", Err: err}
	}
	if !res.Found() {
		// provider 只返回了部分字段也按未命中处理，保证 image_url/source 同时为空。
		return domain.Resolution{Attempts: res.Attempts}, nil
	}
	return res, nil
}

// Error 是 provider 阶段的可追溯错误。
type Error struct {
	Provider string
	Stage    string // 目前只有 "fetch"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
