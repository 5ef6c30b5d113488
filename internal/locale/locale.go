// Package locale resolves request locales and provides the collation used to
// order localized labels.
package locale

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Resolver maps Accept-Language headers to a single language tag.
type Resolver struct {
	fallback language.Tag
}

// NewResolver returns a resolver that answers fallback whenever a header is
// absent or cannot be parsed.
func NewResolver(fallback language.Tag) *Resolver {
	if fallback == language.Und {
		fallback = language.English
	}
	return &Resolver{fallback: fallback}
}

// Default returns the fallback tag.
func (r *Resolver) Default() language.Tag {
	return r.fallback
}

// wildcard is the language ParseAcceptLanguage yields for "*".
var wildcard = language.MustParseBase("mul")

// Resolve returns the most preferred concrete tag of an Accept-Language
// header. Wildcards and undetermined tags are skipped.
func (r *Resolver) Resolve(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return r.fallback
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		return r.fallback
	}

	for _, tag := range tags {
		if base, _ := tag.Base(); tag != language.Und && base != wildcard {
			return tag
		}
	}
	return r.fallback
}

// Collator returns a collator for tag comparing at primary strength: strings
// that differ only in case, accents or width compare equal.
//
// Collators are not safe for concurrent use; callers create one per request.
func Collator(tag language.Tag) *collate.Collator {
	return collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics, collate.IgnoreWidth)
}

// Match picks the entry of localized whose key best matches tag. Keys are
// BCP 47 tags; unparsable keys are ignored. The second return value is false
// when localized holds no usable entry.
func Match(localized map[string]string, tag language.Tag) (string, bool) {
	if len(localized) == 0 {
		return "", false
	}

	var (
		supported []language.Tag
		values    []string
	)
	for k, v := range localized {
		t, err := language.Parse(k)
		if err != nil {
			continue
		}
		supported = append(supported, t)
		values = append(values, v)
	}
	if len(supported) == 0 {
		return "", false
	}

	_, index, confidence := language.NewMatcher(supported).Match(tag)
	if confidence == language.No {
		return "", false
	}

	return values[index], true
}
