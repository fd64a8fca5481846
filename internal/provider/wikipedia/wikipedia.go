package wikipedia

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/patrickmn/go-cache"

	"github.com/John-Robertt/flowerkit/internal/domain"
	"github.com/John-Robertt/flowerkit/internal/infra/httpx"
)

// 默认模板；{site} 会被替换为 "zh.wikipedia" / "en.wikipedia"。
const (
	DefaultAPIBase  = "https://{site}.org/w/api.php"
	DefaultPageBase = "https://{site}.org/wiki"

	siteZh = domain.SourceZhWikipedia
	siteEn = domain.SourceEnWikipedia

	thumbSize = "800"
)

// Provider 按固定顺序在维基百科上解析花名：
//
//  1. zh 以花名为标题直接取 pageimage
//  2. zh 搜索 "<花名> 花"，取首条标题再取 pageimage
//  3. en 搜索花名，取首条标题再取 pageimage
//
// Provider 本身不保存任何跨记录的状态；每次 Resolve 各自独立。
type Provider struct {
	APIBase  string
	PageBase string
	Client   *http.Client
	Logger   *slog.Logger
}

type pageImage struct {
	Thumb string
	Title string
}

// lookup 是单次 Resolve 的状态。
// memo 只在本次解析内复用 (site, title) 的 pageimage 结果（例如 zh 搜索命中的标题就是花名本身），不记错误。
type lookup struct {
	p    *Provider
	memo *cache.Cache
	res  domain.Resolution
}

func (*Provider) Name() string { return "wikipedia" }

func (p *Provider) Resolve(ctx context.Context, name string) (domain.Resolution, error) {
	if p.Client == nil {
		return domain.Resolution{}, errors.New("http client 不能为空")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Resolution{}, errors.New("花名不能为空")
	}

	l := &lookup{p: p, memo: cache.New(cache.NoExpiration, 0)}

	hit, err := l.tryPageImage(ctx, siteZh, name)
	if err != nil {
		return domain.Resolution{}, err
	}
	if hit {
		return l.res, nil
	}

	steps := []struct {
		site  string
		query string
	}{
		{siteZh, name + " 花"},
		{siteEn, name},
	}
	for _, s := range steps {
		title, err := l.search(ctx, s.site, s.query)
		if err != nil {
			return domain.Resolution{}, err
		}
		if title == "" {
			continue
		}
		hit, err := l.tryPageImage(ctx, s.site, title)
		if err != nil {
			return domain.Resolution{}, err
		}
		if hit {
			return l.res, nil
		}
	}

	p.logger().Debug("维基百科未找到图片", "name", name, "attempts", len(l.res.Attempts))
	return l.res, nil
}

// tryPageImage 查询 pageimage；命中时把结果写入 l.res。
func (l *lookup) tryPageImage(ctx context.Context, site, title string) (bool, error) {
	pi, err := l.pageImage(ctx, site, title)
	if err != nil {
		return false, err
	}
	hit := pi.Thumb != ""
	l.res.Attempts = append(l.res.Attempts, domain.Attempt{
		Site:  site,
		Stage: domain.StagePageImage,
		Query: title,
		Title: pi.Title,
		Hit:   hit,
	})
	if !hit {
		return false, nil
	}
	l.res.ImageURL = pi.Thumb
	l.res.PageURL = BuildPageURL(l.p.pageBase(), site, pi.Title)
	l.res.Source = site
	return true, nil
}

func (l *lookup) pageImage(ctx context.Context, site, title string) (pageImage, error) {
	key := site + "\x00" + title
	if v, ok := l.memo.Get(key); ok {
		return v.(pageImage), nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "pageimages")
	params.Set("format", "json")
	params.Set("pithumbsize", thumbSize)
	params.Set("titles", title)

	obj, err := httpx.GetJSON(ctx, l.p.Client, l.p.apiURL(site, params))
	if err != nil {
		return pageImage{}, err
	}

	out := pageImage{Title: title}
	pages, err := obj.GetObject("query", "pages")
	if err == nil {
		m := pages.Map()
		ids := make([]string, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			page, err := m[id].Object()
			if err != nil {
				continue
			}
			thumb, _ := page.GetString("thumbnail", "source")
			if strings.TrimSpace(thumb) == "" {
				continue
			}
			out.Thumb = strings.TrimSpace(thumb)
			if t, err := page.GetString("title"); err == nil && strings.TrimSpace(t) != "" {
				out.Title = t
			}
			break
		}
	}

	l.memo.SetDefault(key, out)
	return out, nil
}

// search 返回首条搜索结果的标题；无结果时为空。
func (l *lookup) search(ctx context.Context, site, query string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("format", "json")
	params.Set("srlimit", "1")
	params.Set("srsearch", query)

	obj, err := httpx.GetJSON(ctx, l.p.Client, l.p.apiURL(site, params))
	if err != nil {
		return "", err
	}

	at := domain.Attempt{Site: site, Stage: domain.StageSearch, Query: query}
	hits, err := obj.GetObjectArray("query", "search")
	if err == nil && len(hits) > 0 {
		title, _ := hits[0].GetString("title")
		at.Title = strings.TrimSpace(title)
		if snippet, err := hits[0].GetString("snippet"); err == nil {
			at.Snippet = snippetText(snippet)
		}
	}
	at.Hit = at.Title != ""
	l.res.Attempts = append(l.res.Attempts, at)

	l.p.logger().Debug("维基百科搜索", "site", site, "query", query, "title", at.Title, "snippet", at.Snippet)
	return at.Title, nil
}

func (p *Provider) apiURL(site string, params url.Values) string {
	base := strings.TrimSpace(p.APIBase)
	if base == "" {
		base = DefaultAPIBase
	}
	return strings.ReplaceAll(base, "{site}", site) + "?" + params.Encode()
}

func (p *Provider) pageBase() string {
	base := strings.TrimSpace(p.PageBase)
	if base == "" {
		return DefaultPageBase
	}
	return base
}

func (p *Provider) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// BuildPageURL 拼接词条页 URL：空格先换成下划线，再按路径规则转义（保留 "/"）。
func BuildPageURL(pageBase, site, title string) string {
	base := strings.TrimRight(strings.ReplaceAll(pageBase, "{site}", site), "/")
	return base + "/" + escapeTitle(strings.ReplaceAll(title, " ", "_"))
}

func escapeTitle(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '~', '/':
		return true
	}
	return false
}

// snippetText 把搜索摘要（含 <span class="searchmatch"> 等标记）转为纯文本。
func snippetText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
