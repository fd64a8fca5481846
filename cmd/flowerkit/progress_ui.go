package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/flowerkit/internal/app/fetch"
	"github.com/John-Robertt/flowerkit/internal/config"
	"github.com/John-Robertt/flowerkit/internal/domain"
	"github.com/John-Robertt/flowerkit/internal/provider"
)

var _ fetch.Observer = (*progressUI)(nil)

// progressUI 是抓图过程的终端输出。
//
// - 所有过程信息写到 stderr，stdout 只留给 "Missing images:" 列表
// - 事件驱动：fetch 层只发事件，CLI 决定如何展示
// - keepalive：交互终端下长时间无条目完成时定期输出一行（维基百科链路一条可能要请求 5 次）
type progressUI struct {
	w io.Writer

	okStyle   lipgloss.Style
	missStyle lipgloss.Style
	failStyle lipgloss.Style
	headStyle lipgloss.Style
	dimStyle  lipgloss.Style

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	found int
	miss  int
	fail  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration
	keepalive          bool

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, interactive bool) *progressUI {
	// Renderer 按 w 自身探测颜色能力：非终端（文件/管道/测试 buffer）时输出纯文本。
	r := lipgloss.NewRenderer(w)
	return &progressUI{
		w:                  w,
		okStyle:            r.NewStyle().Foreground(lipgloss.Color("#5FD787")).Bold(true),
		missStyle:          r.NewStyle().Foreground(lipgloss.Color("#FFD75F")).Bold(true),
		failStyle:          r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		headStyle:          r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		dimStyle:           r.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
		keepalive:          interactive,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, total int) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	p.total = total

	mode := "online"
	if eff.Offline {
		mode = "offline"
	}
	fmt.Fprintln(p.w, p.headStyle.Render(fmt.Sprintf("[%s] flowerkit fetch (%s)", now.Format("15:04:05"), mode)))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.File != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.File)
	}
	fmt.Fprintf(p.w, "  input: %s\n", eff.Input)
	fmt.Fprintf(p.w, "  output: %s\n", eff.Output)
	if !eff.Offline {
		fmt.Fprintf(p.w, "  source: %s\n", sourceChain(eff.Source))
		fmt.Fprintf(p.w, "  delay: %s timeout: %s\n", eff.Delay, eff.Timeout)
		fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL, eff.NoProxy))
		fmt.Fprintf(p.w, "  tls: %s\n", formatTLS(eff.Insecure, eff.NoInsecureFallback))
	}
	fmt.Fprintf(p.w, "  total: %d\n\n", total)

	p.lastPrinted = time.Now()
	if p.keepalive && total > 0 && !eff.Offline && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnItemDone(idx, total int, item fetch.ItemResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	rec := item.Record
	dur := formatShortDuration(item.Elapsed)

	switch {
	case item.Err != nil:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s (%s)\n",
			idx, total, rec.Name, p.failStyle.Render("FAIL"), truncate(provider.Describe(item.Err), 160), dur,
		)
		fmt.Fprintln(p.w, p.dimStyle.Render(fmt.Sprintf("Network error while fetching %s: %v", rec.Name, item.Err)))
	case rec.HasImage():
		p.found++
		fmt.Fprintf(p.w, "[%d/%d] %s %s source=%s (%s)\n",
			idx, total, rec.Name, p.okStyle.Render("OK"), deref(rec.Source), dur,
		)
	default:
		p.miss++
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n",
			idx, total, rec.Name, p.missStyle.Render("MISS"), dur,
		)
		if at, ok := item.LastSearchHit(); ok {
			fmt.Fprintln(p.w, p.dimStyle.Render("  "+formatSearchHit(at)))
		}
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFinish(rep domain.FetchReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTickerLocked()

	status := "完成"
	if rep.Interrupted {
		status = "中断"
	}
	fmt.Fprintf(p.w, "\n%s：total=%d found=%d missing=%d failed=%d elapsed=%s\n",
		status, rep.Summary.Total, rep.Summary.Found, rep.Summary.Missing, rep.Summary.Failed,
		formatElapsed(rep.FinishedAt.Sub(rep.StartedAt)),
	)
	if len(rep.Summary.BySource) > 0 {
		fmt.Fprintf(p.w, "来源：%s\n", formatBySource(rep.Summary.BySource))
	}
	p.lastPrinted = time.Now()
}

// Close 停止 keepalive（Execute 提前返回错误时 OnFinish 不会被调用）。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.dimStyle.Render(fmt.Sprintf("进度: done=%d/%d found=%d miss=%d fail=%d elapsed=%s",
						p.done, p.total, p.found, p.miss, p.fail, formatElapsed(time.Since(p.startedAt)),
					)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func sourceChain(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case provider.ModeWikipedia:
		return "wikipedia (zh pageimage -> zh search -> en search)"
	default:
		return "openverse (name -> \"name flower\")"
	}
}

func formatProxy(raw string, noProxy bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if noProxy {
			return "off"
		}
		return "env"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatTLS(insecure, noFallback bool) string {
	switch {
	case insecure:
		return "insecure"
	case noFallback:
		return "verify"
	default:
		return "verify (证书失败时不校验重试一次)"
	}
}

func formatBySource(m map[string]int) string {
	parts := make([]string, 0, len(m))
	for _, s := range []string{domain.SourceOpenverse, domain.SourceZhWikipedia, domain.SourceEnWikipedia} {
		if n := m[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", s, n))
		}
	}
	return strings.Join(parts, " ")
}

// formatSearchHit 描述最后一次搜索命中（未命中时帮助判断是否需要手工补图）。
func formatSearchHit(at domain.Attempt) string {
	line := fmt.Sprintf("最近搜索：%s %q -> %s", at.Site, at.Query, at.Title)
	if at.Snippet != "" {
		line += "：" + truncate(at.Snippet, 80)
	}
	return line
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
