package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Taro Yamada", "taro yamada"},
		{"strips honorific prefix", "Mr. Taro Yamada", "taro yamada"},
		{"strips rep honorific", "Rep. Jane Smith", "jane smith"},
		{"folds full width", "Ｙａｍａｄａ　Ｔａｒｏ", "yamada taro"},
		{"strips diacritics", "José Ramírez", "jose ramirez"},
		{"interpunct to space", "山田・太郎", "山田 太郎"},
		{"comma to space", "Smith, Jane", "smith jane"},
		{"collapses whitespace", "  Taro   Yamada  ", "taro yamada"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap([]string{"a", "b"}, []string{"b", "a"}))
	assert.Equal(t, 0.0, tokenOverlap([]string{"a"}, []string{"b"}))
	assert.InDelta(t, 1.0/3.0, tokenOverlap([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
	assert.Equal(t, 0.0, tokenOverlap(nil, []string{"a"}))
}
