package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain words", "GHG emissions", "GHG emissions"},
		{"small count kept", "scope 3 emissions", "scope 3 emissions"},
		{"zero kept", "0 incidents", "0 incidents"},
		{"five folded", "5 sites", "NUMERICVALUE sites"},
		{"year lower bound", "since 1900", "since 1900"},
		{"year upper bound", "until 2100", "until 2100"},
		{"just below years", "1899 units", "NUMERICVALUE units"},
		{"just above years", "2101 units", "NUMERICVALUE units"},
		{"fraction folded", "ratio 2.5", "ratio NUMERICVALUE"},
		{"integral float year kept", "2020.0", "2020.0"},
		{"currency stripped", "$1,200 spent", "NUMERICVALUE spent"},
		{"euro stripped", "€45", "NUMERICVALUE"},
		{"negative folded", "-12 degrees", "NUMERICVALUE degrees"},
		{"percent is not numeric", "12% reduction", "12% reduction"},
		{"inf is a word", "inf nan", "inf nan"},
		{"hex is a word", "0x1F", "0x1F"},
		{"underscore digits are a word", "1_000", "1_000"},
		{"whitespace collapsed", "  a \t b\n", "a b"},
		{"empty", "", ""},
		{"lone dash kept", "-", "-"},
		{"bare 3", "3", "3"},
		{"bare 2024", "2024", "2024"},
		{"bare 5", "5", "NUMERICVALUE"},
		{"bare 1899", "1899", "NUMERICVALUE"},
		{"bare 2101", "2101", "NUMERICVALUE"},
		{"thousands separator", "1,234", "NUMERICVALUE"},
		{"dollars and cents", "$5.00", "NUMERICVALUE"},
		{"euro", "€10", "NUMERICVALUE"},
		{"letters and digits", "page5", "page5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Total 1,234 tonnes in 2021 across 3 sites",
		"$5 € 7.25 £1000 NUMERICVALUE",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range []string{
		"Total 1,234 tonnes in 2021 across 3 sites",
		"$5.00 €10 £1000 page5",
		"1e3 -0 +7 .5 5. 0x10 NaN",
		"\u00a0 2024\t1899\n",
		"",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize(%q) = %q, then %q", in, once, twice)
		}
	})
}

func TestAnalyze(t *testing.T) {
	assert.Equal(t, []string{"ghg", "emissions", "scope", "1"}, Analyze("GHG-emissions (Scope 1)"))
	assert.Equal(t, []string{"numericvalue", "tco2e"}, Analyze("NUMERICVALUE tCO2e."))
	assert.Empty(t, Analyze(" -- ,, "))
}

func TestShingles(t *testing.T) {
	got := Shingles([]string{"a", "b", "c", "d"}, 3)
	assert.Equal(t, []string{
		"a", "a b", "a b c",
		"b", "b c", "b c d",
		"c", "c d",
		"d",
	}, got)

	assert.Equal(t, []string{"a", "b"}, Shingles([]string{"a", "b"}, 0))
	assert.Empty(t, Shingles(nil, 3))
}

func TestTerm(t *testing.T) {
	gram, ok := Term("GHG")
	assert.True(t, ok)
	assert.Equal(t, "ghg", gram)

	gram, ok = Term("Scope 3 emissions")
	assert.True(t, ok)
	assert.Equal(t, "scope 3 emissions", gram)

	gram, ok = Term("1,000")
	assert.True(t, ok)
	assert.Equal(t, "numericvalue", gram)

	_, ok = Term("a b c d")
	assert.False(t, ok, "longer than the longest shingle")

	_, ok = Term("--")
	assert.False(t, ok)
}

func BenchmarkNormalize(b *testing.B) {
	line := "In 2022 the company emitted 1,234,567 tCO2e across 3 scopes and 48 sites, $2.5m spent"
	for b.Loop() {
		Normalize(line)
	}
}
