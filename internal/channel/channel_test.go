package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"single", "A_ON", []string{"A_ON"}},
		{"trims whitespace", "  A , B  ", []string{"A", "B"}},
		{"drops empty parts", ",A,,B,", []string{"A", "B"}},
		{"keeps duplicates", "A,B,A", []string{"A", "B", "A"}},
		{"only separators", " , ,, ", []string{}},
		{"case sensitive", "a,A", []string{"a", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestParseValue_NonString(t *testing.T) {
	assert.Equal(t, []string{}, ParseValue(nil))
	assert.Equal(t, []string{}, ParseValue(42))
	assert.Equal(t, []string{}, ParseValue([]any{"A"}))
	assert.Equal(t, []string{"A", "B"}, ParseValue("A,B"))
}

func TestParse_RoundTripIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"A",
		" A ,B,, C ",
		"X,X,Y",
		",,,",
		"RESET, A_ON ,B_ON",
	}

	for _, in := range inputs {
		first := Parse(in)
		assert.Equal(t, first, Parse(Join(first)), "input %q", in)
	}
}

func TestContains(t *testing.T) {
	names := []string{"A", "B"}
	assert.True(t, Contains(names, "A"))
	assert.False(t, Contains(names, "a"))
	assert.False(t, Contains(nil, "A"))
}

func TestClone_DoesNotAlias(t *testing.T) {
	names := []string{"A", "B"}
	c := Clone(names)
	c[0] = "Z"
	assert.Equal(t, "A", names[0])
}
