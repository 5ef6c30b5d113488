package locale

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestResolve(t *testing.T) {
	r := NewResolver(language.German)

	for _, tc := range []struct {
		header   string
		expected language.Tag
	}{
		{header: "", expected: language.German},
		{header: "fr-CH, fr;q=0.9, en;q=0.8", expected: language.MustParse("fr-CH")},
		{header: "en;q=0.5, nl", expected: language.Dutch},
		{header: "*", expected: language.German},
		{header: "*, nl;q=0.5", expected: language.Dutch},
		{header: "*;q=0.8, und", expected: language.German},
		{header: "%%%", expected: language.German},
	} {
		require.Equal(t, tc.expected, r.Resolve(tc.header), "header %q", tc.header)
	}

	require.Equal(t, language.English, NewResolver(language.Und).Default())
}

func TestCollatorPrimaryStrength(t *testing.T) {
	c := Collator(language.English)

	require.Equal(t, 0, c.CompareString("Lighting", "lighting"))
	require.Equal(t, 0, c.CompareString("Cafe", "café"))
	require.Equal(t, -1, c.CompareString("Audio", "Lighting"))
	require.Equal(t, 1, c.CompareString("Security", "audio"))
}

func TestMatch(t *testing.T) {
	labels := map[string]string{
		"en": "Lighting",
		"de": "Beleuchtung",
	}

	v, ok := Match(labels, language.MustParse("de-AT"))
	require.True(t, ok)
	require.Equal(t, "Beleuchtung", v)

	v, ok = Match(labels, language.English)
	require.True(t, ok)
	require.Equal(t, "Lighting", v)

	_, ok = Match(nil, language.English)
	require.False(t, ok)

	_, ok = Match(map[string]string{"not a tag!": "x"}, language.English)
	require.False(t, ok)
}
