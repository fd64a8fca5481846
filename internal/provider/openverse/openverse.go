package openverse

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/John-Robertt/flowerkit/internal/domain"
	"github.com/John-Robertt/flowerkit/internal/infra/httpx"
)

// DefaultBaseURL 是 Openverse 图片搜索接口。
const DefaultBaseURL = "https://api.openverse.engineering/v1/images"

// Provider 通过 Openverse 图片搜索解析花名。
//
// 约束：
// - 只取第一条结果（page_size=1）
// - 原名无结果时，用 "<name> flower" 再查一次（区分同名的非植物条目）
// - 不做缓存/重试/限速（由上层统一控制）
type Provider struct {
	// BaseURL 为空时使用 DefaultBaseURL。
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

func (Provider) Name() string { return "openverse" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

func (p Provider) Resolve(ctx context.Context, name string) (domain.Resolution, error) {
	if p.Client == nil {
		return domain.Resolution{}, errors.New("http client 不能为空")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Resolution{}, errors.New("花名不能为空")
	}

	var res domain.Resolution
	for _, q := range []string{name, name + " flower"} {
		imageURL, pageURL, err := p.search(ctx, q)
		if err != nil {
			return domain.Resolution{}, err
		}
		res.Attempts = append(res.Attempts, domain.Attempt{
			Site:  domain.SourceOpenverse,
			Stage: domain.StageImage,
			Query: q,
			Hit:   imageURL != "",
		})
		p.logger().Debug("openverse 查询", "query", q, "hit", imageURL != "")
		if imageURL != "" {
			res.ImageURL = imageURL
			res.PageURL = pageURL
			res.Source = domain.SourceOpenverse
			return res, nil
		}
	}
	return res, nil
}

// search 返回第一条结果的 (图片 URL, 落地页 URL)；无结果时均为空。
func (p Provider) search(ctx context.Context, q string) (string, string, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("page_size", "1")

	obj, err := httpx.GetJSON(ctx, p.Client, p.baseURL()+"?"+params.Encode())
	if err != nil {
		return "", "", err
	}
	results, err := obj.GetObjectArray("results")
	if err != nil || len(results) == 0 {
		return "", "", nil
	}
	first := results[0]
	return firstString(first, "url", "thumbnail"), firstString(first, "foreign_landing_url", "detail_url"), nil
}

// firstString 返回 keys 中第一个非空字符串字段（缺失/null/非字符串都视为空）。
func firstString(o *jason.Object, keys ...string) string {
	for _, k := range keys {
		v, err := o.GetString(k)
		if err != nil {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (p Provider) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
