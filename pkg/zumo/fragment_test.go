package zumo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragmentOf(t *testing.T) {
	assert.Equal(t, "a=1", fragmentOf("https://x/login/done#a=1"))
	assert.Equal(t, "a=1#b", fragmentOf("https://x/#a=1#b"))
	assert.Empty(t, fragmentOf("https://x/login/done"))
	assert.Empty(t, fragmentOf("https://x/login/done#"))
}

func TestParseFragment(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"leading hash", "#a=1", map[string]string{"a": "1"}},
		{"several pairs", "a=1&b=two", map[string]string{"a": "1", "b": "two"}},
		{"decodes values", "token=%7B%22x%22%3A1%7D", map[string]string{"token": `{"x":1}`}},
		{"plus is a space", "error=access+denied", map[string]string{"error": "access denied"}},
		{"skips pieces without =", "flag&a=1", map[string]string{"a": "1"}},
		{"skips pieces with two =", "a=1=2&b=3", map[string]string{"b": "3"}},
		{"empty value kept", "a=", map[string]string{"a": ""}},
		{"first duplicate wins", "a=1&a=2", map[string]string{"a": "1"}},
		{"bad escape kept raw", "a=%zz", map[string]string{"a": "%zz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseFragment(tt.fragment))
		})
	}
}
