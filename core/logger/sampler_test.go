package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, s.Allow())
	}
	assert.Equal(t, []bool{true, false, false, true, false, false}, got)

	s.Set(2, 3)
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
	assert.False(t, s.Allow())

	s.Set(0, 0)
	for i := 0; i < 5; i++ {
		assert.True(t, s.Allow(), "disabled sampler lets everything through")
	}

	s.Set(5, 2)
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"":      {0, 0},
		"1/50":  {1, 50},
		" 2/5 ": {2, 5},
		"10":    {1, 10},
		"0":     {0, 0},
		"x/y":   {0, 0},
		"junk":  {0, 0},
	}
	for spec, want := range cases {
		num, den := parseRatioSpec(spec)
		assert.Equal(t, want, [2]int{num, den}, spec)
	}
}

func TestUtil(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "fail", Status(errors.New("x")))
	assert.Equal(t, time.Duration(0), RoundMS(-time.Second))
	assert.Equal(t, 2*time.Millisecond, RoundMS(1600*time.Microsecond))

	s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", s)
	assert.True(t, cut)
	s, cut = SummarizeStrings([]string{"a"}, 2)
	assert.Equal(t, "a", s)
	assert.False(t, cut)
	s, cut = SummarizeStrings([]string{"a"}, 0)
	assert.Equal(t, "", s)
	assert.True(t, cut)
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "a***@example.org", MaskAddress("alice@example.org"))
	assert.Equal(t, "***", MaskAddress("not-an-address"))
	assert.Equal(t, "***", MaskAddress("@example.org"))
}
