package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultUserAgent 是固定的客户端标识（Wikimedia/Openverse 都要求可识别的 UA）。
	DefaultUserAgent = "FlowerImageFetcher/1.0 (+https://example.com)"
	DefaultTimeout   = 15 * time.Second
)

// Options 描述网络层的全部可配置项（代理 + 证书校验策略 + 超时 + UA）。
type Options struct {
	// ProxyURL 非空时所有请求都走该代理（优先于环境变量）。
	ProxyURL string
	// NoProxy 为 true 时忽略 HTTP_PROXY/HTTPS_PROXY 等环境变量。
	NoProxy bool

	// Insecure 为 true 时所有请求都不校验证书，同时关闭回退（已经没有可回退的余地）。
	Insecure bool
	// NoInsecureFallback 为 true 时证书校验失败直接返回错误，不做一次不校验的重试。
	NoInsecureFallback bool

	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// Transport 把“固定 UA + 证书校验失败时的一次性不安全重试”固化为统一策略。
//
// provider 只负责“拼 URL + 解析 JSON”，不关心网络策略细节。
type Transport struct {
	// Base 是正常（校验证书）的底层 RoundTripper。
	Base http.RoundTripper
	// Insecure 为 nil 表示禁用证书回退。
	Insecure http.RoundTripper

	UserAgent string
	Logger    *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	resp, err := t.Base.RoundTrip(t.prepare(req))
	if err == nil {
		return resp, nil
	}

	// 只对“可重放”的请求回退：无 body，且错误确实是证书校验失败。
	replayable := req.Body == nil || req.Body == http.NoBody
	if t.Insecure == nil || !replayable || !IsCertError(err) || req.Context().Err() != nil {
		return nil, err
	}

	t.logger().Warn("证书校验失败，改为不校验证书重试一次", "url", req.URL.String(), "error", err)
	return t.Insecure.RoundTrip(t.prepare(req))
}

func (t *Transport) prepare(req *http.Request) *http.Request {
	// Clone 会复制 Header，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		ua := t.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		r.Header.Set("User-Agent", ua)
	}
	return r
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// IsCertError 判断 err 是否为 TLS 证书校验失败（而不是普通的连接/超时错误）。
//
// 只认类型化错误，不做错误文本匹配。
func IsCertError(err error) bool {
	if err == nil {
		return false
	}
	var (
		verr *tls.CertificateVerificationError
		uerr x509.UnknownAuthorityError
		herr x509.HostnameError
		cerr x509.CertificateInvalidError
	)
	return errors.As(err, &verr) ||
		errors.As(err, &uerr) ||
		errors.As(err, &herr) ||
		errors.As(err, &cerr)
}

// NewClient 按 Options 构造 JSON 抓取用的 HTTP client。
//
// 规则：
// - 代理：ProxyURL > 环境变量 > 直连（NoProxy）
// - Insecure：所有请求不校验证书，不再回退
// - 否则：校验证书；除非 NoInsecureFallback，证书失败时回退一次
func NewClient(opts Options) (*http.Client, error) {
	proxy, err := proxyFunc(opts)
	if err != nil {
		return nil, err
	}

	verified := newBaseTransport(proxy, false)
	insecure := newBaseTransport(proxy, true)

	tr := &Transport{
		Base:      verified,
		Insecure:  insecure,
		UserAgent: strings.TrimSpace(opts.UserAgent),
		Logger:    opts.Logger,
	}
	if opts.Insecure {
		tr.Base = insecure
		tr.Insecure = nil
	} else if opts.NoInsecureFallback {
		tr.Insecure = nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func proxyFunc(opts Options) (func(*http.Request) (*url.URL, error), error) {
	raw := strings.TrimSpace(opts.ProxyURL)
	if raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy_url 必须包含 scheme 与 host：" + raw)
		}
		return http.ProxyURL(u), nil
	}
	if opts.NoProxy {
		return nil, nil
	}
	return http.ProxyFromEnvironment, nil
}

func newBaseTransport(proxy func(*http.Request) (*url.URL, error), insecure bool) *http.Transport {
	base := &http.Transport{
		Proxy:                 proxy,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	if insecure {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 仅在用户显式允许或证书回退时使用
	}
	return base
}
