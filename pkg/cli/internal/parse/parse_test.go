package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValue(t *testing.T) {
	tests := []struct {
		in         string
		delims     []rune
		key, value string
		ok         bool
	}{
		{"a:b", nil, "a", "b", true},
		{"a=b:c", []rune{'=', ':'}, "a", "b:c", true},
		{"url:http://x", nil, "url", "http://x", true},
		{"none", nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, value, ok := KeyValue(tt.in, tt.delims...)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestHeaderPairs(t *testing.T) {
	pairs, err := HeaderPairs([]string{"Accept: text/plain", "X-A:1", "x-a: 2 "})
	require.NoError(t, err)
	assert.Equal(t, []string{"Accept", "text/plain", "X-A", "1", "x-a", "2"}, pairs)

	_, err = HeaderPairs([]string{"broken"})
	assert.ErrorContains(t, err, `invalid header "broken"`)

	_, err = HeaderPairs([]string{": value"})
	assert.Error(t, err)
}

func TestSplitTrim(t *testing.T) {
	assert.Nil(t, SplitTrim("", ","))
	assert.Equal(t, []string{"a", "b"}, SplitTrim(" a, ,b ", ","))
}
