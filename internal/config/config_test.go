package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	fs.String("source", DefaultSource, "")
	fs.String("delay", DefaultDelay.String(), "")
	fs.Bool("offline", false, "")
	fs.String("output", DefaultOutput, "")
	fs.String("unrelated", "", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := Load(New(), cwd, "", ScopeFetch)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.File != "" {
		t.Fatalf("未提供配置文件时 File 应为空，实际=%q", eff.File)
	}
	if eff.Source != "openverse" || eff.Delay != 200*time.Millisecond || eff.Timeout != 15*time.Second {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.Input != filepath.Join(cwd, "data", "flowers.md") {
		t.Fatalf("input 应以 cwd 为基准：%q", eff.Input)
	}
	if eff.UserAgent != DefaultUserAgent || eff.LogLevel != "info" {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
}

func TestLoad_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := Load(New(), cwd, "missing.json", ScopeFetch)
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"source":`))

	_, err := Load(New(), cwd, "", ScopeFetch)
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoad_Precedence(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
  "source": "wikipedia",
  "delay": 1,
  "output": "out/file.json",
  "timeout": "30s"
}`))

	// 只有配置文件：文件 > 默认
	eff, err := Load(New(), cwd, "", ScopeFetch)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != "wikipedia" || eff.Delay != time.Second || eff.Timeout != 30*time.Second {
		t.Fatalf("配置文件未生效：%+v", eff)
	}
	if eff.File != filepath.Join(cwd, FileName) {
		t.Fatalf("File 不符合预期：%q", eff.File)
	}

	// 环境变量 > 文件
	t.Setenv("FLOWERKIT_DELAY", "500ms")
	t.Setenv("FLOWERKIT_OUTPUT", "env.json")
	eff, err = Load(New(), cwd, "", ScopeFetch)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Delay != 500*time.Millisecond {
		t.Fatalf("环境变量未覆盖配置文件：delay=%s", eff.Delay)
	}
	if eff.Output != filepath.Join(cwd, "env.json") {
		t.Fatalf("环境变量未覆盖配置文件：output=%q", eff.Output)
	}

	// flag > 环境变量；未显式设置的 flag 不覆盖下层
	v := New()
	fs := newFlagSet()
	if err := BindFlags(v, fs); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := fs.Parse([]string{"--delay=0s", "--source=openverse"}); err != nil {
		t.Fatalf("解析 flag 失败：%v", err)
	}
	eff, err = Load(v, cwd, "", ScopeFetch)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Delay != 0 || eff.Source != "openverse" {
		t.Fatalf("flag 未覆盖下层：%+v", eff)
	}
	if eff.Output != filepath.Join(cwd, "env.json") {
		t.Fatalf("未设置的 flag 不应覆盖环境变量：output=%q", eff.Output)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"bad source", `{"source":"flickr"}`},
		{"negative delay", `{"delay":"-1s"}`},
		{"zero timeout", `{"timeout":0}`},
		{"bad duration", `{"delay":"soon"}`},
		{"api base without site", `{"wikipedia_api_base":"https://zh.wikipedia.org/w/api.php"}`},
		{"page base not http", `{"wikipedia_page_base":"ftp://{site}.org/wiki"}`},
		{"openverse not url", `{"openverse_base":"api.openverse"}`},
		{"proxy without scheme", `{"proxy_url":"127.0.0.1:7890"}`},
		{"bad log level", `{"log_level":"trace"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(tc.json))

			_, err := Load(New(), cwd, "", ScopeFetch)
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoad_ExplicitConfigRelativeToCwd(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "conf", "custom.json"), []byte(`{"offline":true,"no_proxy":true}`))

	eff, err := Load(New(), cwd, filepath.Join("conf", "custom.json"), ScopeFetch)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.Offline || !eff.NoProxy {
		t.Fatalf("显式配置文件未生效：%+v", eff)
	}
}

func TestLoad_DelayFlagAcceptsSeconds(t *testing.T) {
	cases := []struct {
		arg  string
		want time.Duration
	}{
		{"--delay=0.2", 200 * time.Millisecond},
		{"--delay=1", time.Second},
		{"--delay=750ms", 750 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.arg, func(t *testing.T) {
			v := New()
			fs := newFlagSet()
			if err := BindFlags(v, fs); err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			if err := fs.Parse([]string{tc.arg}); err != nil {
				t.Fatalf("解析 flag 失败：%v", err)
			}
			eff, err := Load(v, t.TempDir(), "", ScopeFetch)
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			if eff.Delay != tc.want {
				t.Fatalf("delay=%s，期望 %s", eff.Delay, tc.want)
			}
		})
	}
}

func TestLoad_ValidateScopeIgnoresFetchKeys(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("FLOWERKIT_SOURCE", "flickr")
	t.Setenv("FLOWERKIT_PROXY_URL", "127.0.0.1:7890")
	t.Setenv("FLOWERKIT_DELAY", "soon")
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"wikipedia_api_base":"not a url","meta":"m.json"}`))

	eff, err := Load(New(), cwd, "", ScopeValidate)
	if err != nil {
		t.Fatalf("validate 不应受 fetch 专用键影响：%v", err)
	}
	if eff.Meta != filepath.Join(cwd, "m.json") {
		t.Fatalf("meta 不符合预期：%q", eff.Meta)
	}
	if eff.Source != "" || eff.ProxyURL != "" {
		t.Fatalf("validate 下 fetch 专用键应保持零值：%+v", eff)
	}

	// 同一份配置在 fetch 下仍会被拒绝。
	if _, err := Load(New(), cwd, "", ScopeFetch); Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}

	// 共用键在 validate 下仍然校验。
	t.Setenv("FLOWERKIT_LOG_LEVEL", "trace")
	if _, err := Load(New(), cwd, "", ScopeValidate); Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}
