package numeric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := "12,5"

	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{name: "eu grouping", in: "1.234,56", want: 1234.56, wantOK: true},
		{name: "us grouping", in: "1,234.56", want: 1234.56, wantOK: true},
		{name: "space grouping", in: "1 234,56", want: 1234.56, wantOK: true},
		{name: "nbsp grouping", in: "1\u00a0234,56", want: 1234.56, wantOK: true},
		{name: "narrow nbsp grouping", in: "1\u202f234\u202f567,5", want: 1234567.5, wantOK: true},
		{name: "figure space grouping", in: "2\u2007000", want: 2000, wantOK: true},
		{name: "comma decimal", in: "3,5", want: 3.5, wantOK: true},
		{name: "dot decimal", in: "3.5", want: 3.5, wantOK: true},
		{name: "multiple eu groups", in: "1.234.567,8", want: 1234567.8, wantOK: true},
		{name: "multiple us groups", in: "1,234,567.8", want: 1234567.8, wantOK: true},
		{name: "negative", in: "-0,25", want: -0.25, wantOK: true},
		{name: "padded", in: "  42 ", want: 42, wantOK: true},
		{name: "double sign", in: "--12", wantOK: false},
		{name: "empty", in: "", wantOK: false},
		{name: "whitespace only", in: " \t\n", wantOK: false},
		{name: "letters", in: "abc", wantOK: false},
		{name: "infinity text", in: "Inf", wantOK: false},
		{name: "nan text", in: "NaN", wantOK: false},
		{name: "hex float", in: "0x1p3", wantOK: false},
		{name: "hex float with exponent", in: "0x10p0", wantOK: false},
		{name: "digit underscores", in: "1_000", wantOK: false},
		{name: "infinity word", in: "infinity", wantOK: false},
		{name: "trailing sign", in: "12-", wantOK: false},
		{name: "exponent", in: "1e3", want: 1000, wantOK: true},
		{name: "comma decimal exponent", in: "2,5E-1", want: 0.25, wantOK: true},
		{name: "leading dot", in: ".5", want: 0.5, wantOK: true},
		{name: "trailing dot", in: "5.", want: 5, wantOK: true},
		{name: "explicit plus", in: "+7", want: 7, wantOK: true},
		{name: "hex json number", in: json.Number("0x1p3"), wantOK: false},
		{name: "nil", in: nil, wantOK: false},
		{name: "zero int", in: 0, want: 0, wantOK: true},
		{name: "int64", in: int64(7), want: 7, wantOK: true},
		{name: "float", in: 2.75, want: 2.75, wantOK: true},
		{name: "nan float", in: math.NaN(), wantOK: false},
		{name: "inf float", in: math.Inf(1), wantOK: false},
		{name: "json number", in: json.Number("1.5"), want: 1.5, wantOK: true},
		{name: "string pointer", in: &text, want: 12.5, wantOK: true},
		{name: "nil string pointer", in: (*string)(nil), wantOK: false},
		{name: "unsupported type", in: []byte("1"), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.in)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"1.234,56": "1234.56",
		"1,234.56": "1234.56",
		"1 234,56": "1234.56",
		"12":       "12",
		"0.5":      "0.5",
		" ":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, in := range []string{"0", "1", "-3", "1234.56", "0.001", "99999999.125", "-0.5"} {
		first, ok := ParseString(in)
		require.True(t, ok, in)

		second, ok := ParseString(Format(first))
		require.True(t, ok, in)
		assert.Equal(t, first, second, in)
	}
}

func FuzzParseString(f *testing.F) {
	for _, seed := range []string{"1.234,56", "1,234.56", "1 234,56", "--12", "", "3,5", "1e3", "0x1p3", "1_000"} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, s string) {
		v, ok := ParseString(s)
		if !ok {
			return
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("ParseString(%q) returned non-finite %v", s, v)
		}
		again, ok := ParseString(Format(v))
		if !ok || again != v {
			t.Fatalf("round trip of %q: got %v, %t; want %v", s, again, ok, v)
		}
	})
}
