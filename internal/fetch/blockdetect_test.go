package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock_CloudflareHeaders(t *testing.T) {
	resp := &http.Response{StatusCode: 403, Header: http.Header{}}
	resp.Header.Set("cf-ray", "abc123")

	blocked, kind := DetectBlock(resp, []byte("Access denied"))
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, kind)
}

func TestDetectBlock_Captcha(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}

	blocked, kind := DetectBlock(resp, []byte(`<div class="g-recaptcha"></div>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, kind)
}

func TestDetectBlock_JSShell(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	body := []byte(`<html><noscript>Please enable JavaScript</noscript></html>`)

	blocked, kind := DetectBlock(resp, body)
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, kind)
}

func TestDetectBlock_CleanPage(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	body := []byte(`<html><body><h1>Assembly Members</h1><p>Taro Yamada</p></body></html>`)

	blocked, _ := DetectBlock(resp, body)
	assert.False(t, blocked)
}
