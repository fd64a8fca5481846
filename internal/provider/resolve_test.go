package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/John-Robertt/flowerkit/internal/domain"
	"github.com/John-Robertt/flowerkit/internal/infra/httpx"
)

type stubProvider struct {
	name string
	res  domain.Resolution
	err  error

	calls []string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Resolve(ctx context.Context, name string) (domain.Resolution, error) {
	p.calls = append(p.calls, name)
	if p.err != nil {
		return domain.Resolution{}, p.err
	}
	return p.res, nil
}

func TestResolve_Hit(t *testing.T) {
	ov := &stubProvider{name: "openverse", res: domain.Resolution{
		ImageURL: "https://img.test/a.jpg",
		PageURL:  "https://page.test/a",
		Source:   domain.SourceOpenverse,
	}}
	reg, err := NewRegistry(ov)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	res, err := Resolve(context.Background(), reg, " OpenVerse ", " 牡丹 ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Found() || res.Source != domain.SourceOpenverse {
		t.Fatalf("结果不符合预期：%#v", res)
	}
	if len(ov.calls) != 1 || ov.calls[0] != "牡丹" {
		t.Fatalf("应以去空白后的花名调用一次：%v", ov.calls)
	}
}

func TestResolve_PartialResultIsMiss(t *testing.T) {
	wp := &stubProvider{name: "wikipedia", res: domain.Resolution{
		ImageURL: "https://img.test/a.jpg",
		Attempts: []domain.Attempt{{Site: domain.SourceZhWikipedia, Stage: domain.StagePageImage, Title: "玫瑰"}},
	}}
	reg, _ := NewRegistry(wp)

	res, err := Resolve(context.Background(), reg, ModeWikipedia, "玫瑰")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Found() || res.ImageURL != "" || res.PageURL != "" || res.Source != "" {
		t.Fatalf("缺少 source 的结果应视为未命中：%#v", res)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("未命中也应保留尝试记录：%#v", res.Attempts)
	}
}

func TestResolve_ErrorWrapped(t *testing.T) {
	cause := &httpx.StatusError{URL: "https://api.test", StatusCode: 429}
	ov := &stubProvider{name: "openverse", err: cause}
	reg, _ := NewRegistry(ov)

	_, err := Resolve(context.Background(), reg, ModeOpenverse, "牡丹")
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("期望 *Error，得到：%T %v", err, err)
	}
	if pe.Provider != "openverse" || pe.Stage != "fetch" {
		t.Fatalf("Error 字段不符合预期：%#v", pe)
	}
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.StatusCode != 429 {
		t.Fatalf("应可 Unwrap 到 StatusError：%v", err)
	}
	if got := Describe(err); !strings.Contains(got, "openverse") || !strings.Contains(got, "429") {
		t.Fatalf("Describe 输出不符合预期：%q", got)
	}
}

func TestResolve_UnknownMode(t *testing.T) {
	reg, _ := NewRegistry(&stubProvider{name: "openverse"})
	if _, err := Resolve(context.Background(), reg, "flickr", "牡丹"); err == nil {
		t.Fatalf("未注册的 mode 应返回错误")
	}
	if _, err := Resolve(context.Background(), reg, ModeOpenverse, "  "); err == nil {
		t.Fatalf("空花名应返回错误")
	}
}

func TestNewRegistry_RejectsDuplicate(t *testing.T) {
	_, err := NewRegistry(&stubProvider{name: "openverse"}, &stubProvider{name: "OpenVerse"})
	if err == nil {
		t.Fatalf("重复 provider 应返回错误")
	}
	reg, err := NewRegistry(&stubProvider{name: "wikipedia"}, &stubProvider{name: "openverse"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := strings.Join(reg.Names(), ","); got != "openverse,wikipedia" {
		t.Fatalf("Names 不符合预期：%q", got)
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", &Error{Provider: "wikipedia", Stage: "fetch", Err: context.DeadlineExceeded}, "请求超时"},
		{"status", &httpx.StatusError{StatusCode: 500}, "HTTP 500"},
		{"other", errors.New("connection refused"), "connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Describe(tc.err)
			if tc.want == "" {
				if got != "" {
					t.Fatalf("期望空字符串，得到：%q", got)
				}
				return
			}
			if !strings.Contains(got, tc.want) {
				t.Fatalf("Describe=%q，期望包含 %q", got, tc.want)
			}
		})
	}
}
