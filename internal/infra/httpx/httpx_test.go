package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"testing"
)

func TestNewClient_ExplicitProxyWins(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:9999")

	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	base := tr.Base.(*http.Transport)
	if base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	req, _ := http.NewRequest(http.MethodGet, "https://zh.wikipedia.org/w/api.php", nil)
	u, err := base.Proxy(req)
	if err != nil || u == nil || u.Host != "127.0.0.1:8080" {
		t.Fatalf("期望使用显式代理 127.0.0.1:8080，实际 %v (err=%v)", u, err)
	}
}

func TestNewClient_NoProxyIgnoresEnv(t *testing.T) {
	c, err := NewClient(Options{NoProxy: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.(*http.Transport).Proxy != nil {
		t.Fatalf("no_proxy 时不应设置 Proxy")
	}
}

func TestNewClient_DefaultUsesEnvProxyAndFallback(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.(*http.Transport).Proxy == nil {
		t.Fatalf("默认应读取环境变量代理（ProxyFromEnvironment）")
	}
	if tr.Insecure == nil {
		t.Fatalf("默认应启用证书回退")
	}
	if cfg := tr.Base.(*http.Transport).TLSClientConfig; cfg != nil && cfg.InsecureSkipVerify {
		t.Fatalf("默认不应跳过证书校验")
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("期望默认超时 %s，实际 %s", DefaultTimeout, c.Timeout)
	}
}

func TestNewClient_InsecureDisablesFallback(t *testing.T) {
	c, err := NewClient(Options{Insecure: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	cfg := tr.Base.(*http.Transport).TLSClientConfig
	if cfg == nil || !cfg.InsecureSkipVerify {
		t.Fatalf("insecure=true 时应跳过证书校验")
	}
	if tr.Insecure != nil {
		t.Fatalf("insecure=true 时不应再有回退")
	}
}

func TestNewClient_NoInsecureFallback(t *testing.T) {
	c, err := NewClient(Options{NoInsecureFallback: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Transport.(*Transport).Insecure != nil {
		t.Fatalf("no_insecure_fallback=true 时应禁用回退")
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if _, err := NewClient(Options{ProxyURL: "127.0.0.1:8080"}); err == nil {
		t.Fatalf("缺少 scheme 的代理地址应报错")
	}
}

func TestIsCertError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"verification", &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}, true},
		{"unknown authority", x509.UnknownAuthorityError{}, true},
		{"hostname", x509.HostnameError{Host: "example.test"}, true},
		{"expired", x509.CertificateInvalidError{Reason: x509.Expired}, true},
		{"plain", http.ErrHandlerTimeout, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := IsCertError(tc.err); got != tc.want {
			t.Fatalf("%s：期望 %v，实际 %v", tc.name, tc.want, got)
		}
	}
}
