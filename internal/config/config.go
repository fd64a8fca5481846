package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是工作目录下自动发现的配置文件名（可选）。
	FileName = "flowerkit.json"
	// EnvPrefix 是环境变量前缀，例如 FLOWERKIT_SOURCE=wikipedia。
	EnvPrefix = "FLOWERKIT"
)

// 配置键。命令行 flag 名为对应键把 "_" 换成 "-"。
const (
	KeyInput              = "input"
	KeyOutput             = "output"
	KeyMeta               = "meta"
	KeySource             = "source"
	KeyOpenverseBase      = "openverse_base"
	KeyWikipediaAPIBase   = "wikipedia_api_base"
	KeyWikipediaPageBase  = "wikipedia_page_base"
	KeyDelay              = "delay"
	KeyTimeout            = "timeout"
	KeyOffline            = "offline"
	KeyInsecure           = "insecure"
	KeyNoProxy            = "no_proxy"
	KeyProxyURL           = "proxy_url"
	KeyNoInsecureFallback = "no_insecure_fallback"
	KeyUserAgent          = "user_agent"
	KeyLogLevel           = "log_level"
)

// 内置默认值（配置文件/环境变量/flag 都未指定时）。
const (
	DefaultInput             = "data/flowers.md"
	DefaultOutput            = "data/flowers.json"
	DefaultMeta              = "data/flower_meta.json"
	DefaultSource            = "openverse"
	DefaultOpenverseBase     = "https://api.openverse.engineering/v1/images"
	DefaultWikipediaAPIBase  = "https://{site}.org/w/api.php"
	DefaultWikipediaPageBase = "https://{site}.org/wiki"
	DefaultDelay             = 200 * time.Millisecond
	DefaultTimeout           = 15 * time.Second
	DefaultUserAgent         = "FlowerImageFetcher/1.0 (+https://example.com)"
	DefaultLogLevel          = "info"
)

// Scope 决定 Load 解析与校验哪些键。
type Scope int

const (
	// ScopeFetch 解析并校验全部键。
	ScopeFetch Scope = iota
	// ScopeValidate 只解析路径与日志级别；source/网络/时长相关键保持零值，不参与校验。
	ScopeValidate
)

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// File 是实际读取的配置文件（未读取时为空）。
	File string

	Input  string
	Output string
	Meta   string

	Source            string
	OpenverseBase     string
	WikipediaAPIBase  string
	WikipediaPageBase string

	Delay   time.Duration
	Timeout time.Duration
	Offline bool

	Insecure           bool
	NoProxy            bool
	ProxyURL           string
	NoInsecureFallback bool
	UserAgent          string

	LogLevel string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// New 返回带默认值与环境变量绑定的 viper 实例。
//
// 覆盖优先级（固定）：flag > FLOWERKIT_* 环境变量 > flowerkit.json > 默认值。
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyInput, DefaultInput)
	v.SetDefault(KeyOutput, DefaultOutput)
	v.SetDefault(KeyMeta, DefaultMeta)
	v.SetDefault(KeySource, DefaultSource)
	v.SetDefault(KeyOpenverseBase, DefaultOpenverseBase)
	v.SetDefault(KeyWikipediaAPIBase, DefaultWikipediaAPIBase)
	v.SetDefault(KeyWikipediaPageBase, DefaultWikipediaPageBase)
	v.SetDefault(KeyDelay, DefaultDelay)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyOffline, false)
	v.SetDefault(KeyInsecure, false)
	v.SetDefault(KeyNoProxy, false)
	v.SetDefault(KeyProxyURL, "")
	v.SetDefault(KeyNoInsecureFallback, false)
	v.SetDefault(KeyUserAgent, DefaultUserAgent)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags 把 fs 中与配置键同名（"_" 换成 "-"）的 flag 绑定到 v。
// 未出现在 fs 中的键保持原样（例如 validate 子命令没有网络相关 flag）。
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKey(key) {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

func isKey(k string) bool {
	switch k {
	case KeyInput, KeyOutput, KeyMeta, KeySource, KeyOpenverseBase, KeyWikipediaAPIBase,
		KeyWikipediaPageBase, KeyDelay, KeyTimeout, KeyOffline, KeyInsecure, KeyNoProxy,
		KeyProxyURL, KeyNoInsecureFallback, KeyUserAgent, KeyLogLevel:
		return true
	}
	return false
}

// Load 读取配置文件（可选）并与 v 中已绑定的环境变量/flag 合并为最终配置。
//
// 发现规则（固定）：
// 1) explicit 非空：必须读取该文件（相对路径以 cwd 为基准），不存在报 config_not_found
// 2) explicit 为空：尝试读取 <cwd>/flowerkit.json（可选）
//
// 相对路径的 input/output/meta 以 cwd 为基准解析。scope 为 ScopeValidate 时跳过只有 fetch 使用的键。
func Load(v *viper.Viper, cwd string, explicit string, scope Scope) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := strings.TrimSpace(explicit) != ""
	if required {
		cfgPath = absCleanFrom(cwdAbs, explicit)
	}

	used := ""
	fi, err := os.Stat(cfgPath)
	switch {
	case err == nil && fi.IsDir():
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: errors.New("是目录")}
	case err == nil:
		v.SetConfigFile(cfgPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		used = cfgPath
	case os.IsNotExist(err):
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff, err := build(v, cwdAbs, scope)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: used, Err: err}
	}
	eff.File = used
	return eff, nil
}

func build(v *viper.Viper, cwdAbs string, scope Scope) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Input:    absCleanFrom(cwdAbs, v.GetString(KeyInput)),
		Output:   absCleanFrom(cwdAbs, v.GetString(KeyOutput)),
		Meta:     absCleanFrom(cwdAbs, v.GetString(KeyMeta)),
		LogLevel: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
	}
	if err := eff.validatePaths(); err != nil {
		return EffectiveConfig{}, err
	}
	if scope == ScopeValidate {
		return eff, nil
	}

	delay, err := durationOf(v, KeyDelay)
	if err != nil {
		return EffectiveConfig{}, err
	}
	timeout, err := durationOf(v, KeyTimeout)
	if err != nil {
		return EffectiveConfig{}, err
	}

	eff.Source = strings.ToLower(strings.TrimSpace(v.GetString(KeySource)))
	eff.OpenverseBase = strings.TrimSpace(v.GetString(KeyOpenverseBase))
	eff.WikipediaAPIBase = strings.TrimSpace(v.GetString(KeyWikipediaAPIBase))
	eff.WikipediaPageBase = strings.TrimSpace(v.GetString(KeyWikipediaPageBase))
	eff.Delay = delay
	eff.Timeout = timeout
	eff.Offline = v.GetBool(KeyOffline)
	eff.Insecure = v.GetBool(KeyInsecure)
	eff.NoProxy = v.GetBool(KeyNoProxy)
	eff.ProxyURL = strings.TrimSpace(v.GetString(KeyProxyURL))
	eff.NoInsecureFallback = v.GetBool(KeyNoInsecureFallback)
	eff.UserAgent = strings.TrimSpace(v.GetString(KeyUserAgent))

	if err := eff.validateFetch(); err != nil {
		return EffectiveConfig{}, err
	}
	return eff, nil
}

// validatePaths 校验两个子命令共用的键。
func (e EffectiveConfig) validatePaths() error {
	if e.Input == "" || e.Output == "" || e.Meta == "" {
		return errors.New("input/output/meta 不能为空")
	}
	switch e.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", e.LogLevel)
	}
	return nil
}

func (e EffectiveConfig) validateFetch() error {
	switch e.Source {
	case "openverse", "wikipedia":
	case "":
		return errors.New("source 不能为空")
	default:
		return fmt.Errorf("source 只能是 openverse 或 wikipedia，实际是 %q", e.Source)
	}

	if err := checkHTTPURL(KeyOpenverseBase, e.OpenverseBase); err != nil {
		return err
	}
	for _, key := range []string{KeyWikipediaAPIBase, KeyWikipediaPageBase} {
		tmpl := e.WikipediaAPIBase
		if key == KeyWikipediaPageBase {
			tmpl = e.WikipediaPageBase
		}
		if !strings.Contains(tmpl, "{site}") {
			return fmt.Errorf("%s 必须包含 {site} 占位符：%q", key, tmpl)
		}
		if err := checkHTTPURL(key, strings.ReplaceAll(tmpl, "{site}", "zh.wikipedia")); err != nil {
			return err
		}
	}

	if e.Delay < 0 {
		return fmt.Errorf("delay 不能为负数：%s", e.Delay)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("timeout 必须大于 0：%s", e.Timeout)
	}
	if e.ProxyURL != "" {
		u, err := url.Parse(e.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("proxy_url 无效：%q", e.ProxyURL)
		}
	}
	return nil
}

func checkHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", key, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", key, raw)
	}
	return nil
}

// durationOf 读取时长配置（flag、环境变量、配置文件三层同一套规则）。
// 字符串按 Go 时长（"200ms"）解析；纯数字按秒解析（--delay 0.2 等价于 200ms）。
func durationOf(v *viper.Viper, key string) (time.Duration, error) {
	switch t := v.Get(key).(type) {
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case int64:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(t)
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		return 0, fmt.Errorf("%s 不是合法时长：%q", key, t)
	default:
		return 0, fmt.Errorf("%s 不是合法时长：%v", key, t)
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
