package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/flowerkit/internal/infra/httpx"
)

// Describe 把网络层失败翻译成一行可操作的提示（用于批处理日志与进度输出）。
func Describe(err error) string {
	if err == nil {
		return ""
	}

	name := "请求"
	var pe *Error
	if errors.As(err, &pe) {
		name = pe.Provider
	}

	var se *httpx.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发限流）。建议调大 delay 或稍后重试。", name, se.StatusCode)
		default:
			return fmt.Sprintf("%s 返回 HTTP %d。", name, se.StatusCode)
		}
	}

	if httpx.IsCertError(err) {
		return fmt.Sprintf("%s 证书校验失败。可检查系统证书/代理，或显式使用 --insecure。", name)
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 请求超时。建议检查网络/代理后重试。", name)
	}
	if strings.Contains(low, "proxyconnect") {
		return fmt.Sprintf("%s 无法连接代理。请检查 proxy_url 或使用 --no-proxy。", name)
	}

	return fmt.Sprintf("%s 请求失败：%v", name, err)
}
