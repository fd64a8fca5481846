package httpx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://api.test/v1/images"

func certErr() error {
	return &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}
}

func newMockedClient(base, insecure *httpmock.MockTransport) *http.Client {
	tr := &Transport{Base: base}
	if insecure != nil {
		tr.Insecure = insecure
	}
	return &http.Client{Transport: tr}
}

func TestTransport_CertErrorFallsBackOnce(t *testing.T) {
	base := httpmock.NewMockTransport()
	insecure := httpmock.NewMockTransport()
	base.RegisterResponder(http.MethodGet, testURL, httpmock.NewErrorResponder(certErr()))
	insecure.RegisterResponder(http.MethodGet, testURL, httpmock.NewStringResponder(http.StatusOK, `{"results":[]}`))

	obj, err := GetJSON(context.Background(), newMockedClient(base, insecure), testURL)
	require.NoError(t, err)

	results, err := obj.GetObjectArray("results")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, base.GetTotalCallCount(), "正常通道只应尝试一次")
	assert.Equal(t, 1, insecure.GetTotalCallCount(), "不安全通道只应重试一次")
}

func TestTransport_CertErrorWithoutFallbackPropagates(t *testing.T) {
	base := httpmock.NewMockTransport()
	base.RegisterResponder(http.MethodGet, testURL, httpmock.NewErrorResponder(certErr()))

	_, err := GetJSON(context.Background(), newMockedClient(base, nil), testURL)
	require.Error(t, err)
	assert.True(t, IsCertError(err), "证书错误应原样向上返回：%v", err)
}

func TestTransport_OtherErrorsDoNotFallBack(t *testing.T) {
	base := httpmock.NewMockTransport()
	insecure := httpmock.NewMockTransport()
	base.RegisterResponder(http.MethodGet, testURL, httpmock.NewErrorResponder(errors.New("connection refused")))
	insecure.RegisterResponder(http.MethodGet, testURL, httpmock.NewStringResponder(http.StatusOK, `{}`))

	_, err := GetJSON(context.Background(), newMockedClient(base, insecure), testURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, insecure.GetTotalCallCount(), "非证书错误不应触发不安全重试")
}

func TestTransport_FixedUserAgent(t *testing.T) {
	base := httpmock.NewMockTransport()
	base.RegisterResponder(http.MethodGet, testURL, func(req *http.Request) (*http.Response, error) {
		return httpmock.NewStringResponse(http.StatusOK, `{"ua":"`+req.Header.Get("User-Agent")+`"}`), nil
	})

	obj, err := GetJSON(context.Background(), newMockedClient(base, nil), testURL)
	require.NoError(t, err)
	ua, err := obj.GetString("ua")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, ua)
}

func TestGetJSON_Non2xxIsStatusError(t *testing.T) {
	base := httpmock.NewMockTransport()
	base.RegisterResponder(http.MethodGet, testURL, httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	_, err := GetJSON(context.Background(), newMockedClient(base, nil), testURL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestGetJSON_InvalidBody(t *testing.T) {
	base := httpmock.NewMockTransport()
	base.RegisterResponder(http.MethodGet, testURL, httpmock.NewStringResponder(http.StatusOK, "<html>blocked</html>"))

	_, err := GetJSON(context.Background(), newMockedClient(base, nil), testURL)
	require.Error(t, err)
}
