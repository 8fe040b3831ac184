package vine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLine_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", DefaultMaxLineSize - 1, false},
		{"Exact Limit", DefaultMaxLineSize, false},
		{"Over Limit", DefaultMaxLineSize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeLine(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrLineTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeLine_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Counter.inc 1", "Counter.inc 1"},
		{"Tab", "Counter.set\t2", "Counter.set\t2"},
		{"ANSI Code", "Todo.add \x1b[31mred\x1b[0m", "Todo.add [31mred[0m"},
		{"Null Byte", "get Co\x00unter", "get Counter"},
		{"Bell", "stores\x07", "stores"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeLine(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizeLine_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxLineSize, "10")

	_, err := SanitizeLine("12345678901")
	assert.ErrorIs(t, err, ErrLineTooLarge)

	_, err = SanitizeLine("12345")
	assert.NoError(t, err)
}

func TestSanitizeLine_InvalidUTF8(t *testing.T) {
	_, err := SanitizeLine("\xbd\xb2\x3d\xbc\x20\xe2\x8c\x98")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
