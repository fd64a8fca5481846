package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/antonholmquist/jason"
)

// maxBodyBytes 限制单个 JSON 响应的大小（API 的正常响应只有几 KB）。
const maxBodyBytes = 8 << 20

// StatusError 表示服务端返回了非 2xx 的 HTTP 状态码。
// 与连接失败一样属于网络层失败，由批处理按条目隔离。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// GetJSON 发起一次 GET 并把响应体解析为 JSON 对象。
//
// 网络错误、非 2xx、以及无法解析的响应都原样返回给调用方（不吞错）。
func GetJSON(ctx context.Context, c *http.Client, u string) (*jason.Object, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	obj, err := jason.NewObjectFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("响应不是合法的 JSON 对象：%w", err)
	}
	return obj, nil
}
