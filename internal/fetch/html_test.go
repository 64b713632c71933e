package fetch

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Assembly Members",
		ExtractTitle([]byte(`<html><head><title> Assembly Members </title></head></html>`)))
	assert.Equal(t, "", ExtractTitle([]byte(`<html><body>no title</body></html>`)))
}

func TestStripHTML(t *testing.T) {
	html := `<html><head><script>var x = 1;</script><style>.a{}</style></head>
<body><nav>menu</nav><h1>Members</h1><p>Taro &amp; Hanako</p><footer>legal</footer></body></html>`

	text := StripHTML(html)

	assert.Contains(t, text, "Members")
	assert.Contains(t, text, "Taro & Hanako")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "menu")
	assert.NotContains(t, text, "legal")
}

func TestParseLinks(t *testing.T) {
	base, err := url.Parse("https://example.org/index")
	require.NoError(t, err)

	html := `<a href="/members">members</a>
<a href="about.html">about</a>
<a href="https://example.org/roster#list">roster</a>
<a href="https://other.example.com/external">external</a>
<a href="#anchor">anchor</a>
<a href="mailto:info@example.org">mail</a>
<a href="javascript:void(0)">js</a>
<a href="/members">duplicate</a>`

	links := ParseLinks(html, base)

	assert.Equal(t, []string{
		"https://example.org/members",
		"https://example.org/about.html",
		"https://example.org/roster",
	}, links)
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.org", "https://example.org/"},
		{"https://example.org", "https://example.org/"},
		{"https://example.org/members#top", "https://example.org/members"},
		{"http://example.org/a", "http://example.org/a"},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
