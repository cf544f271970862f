package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes,
// so "Renée" and "Renee" normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// honorifics and suffixes carry no identity signal and are dropped
// before comparison.
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
}

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
	"phd": true, "md": true, "esq": true, "cpa": true, "cfa": true, "mba": true,
}

var companySuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "llp": true, "lp": true,
	"ltd": true, "limited": true, "corp": true, "corporation": true,
	"co": true, "company": true, "plc": true, "holdings": true, "group": true,
}

// PersonName normalizes a person name for matching: lowercase, diacritics
// stripped, punctuation removed, honorifics and generational/credential
// suffixes dropped, single-letter middle initials dropped.
func PersonName(name string) string {
	tokens := tokenize(name)

	kept := tokens[:0]
	for i, tok := range tokens {
		if i == 0 && honorifics[tok] {
			continue
		}
		if i > 0 && i == len(tokens)-1 && nameSuffixes[tok] {
			continue
		}
		// Middle initials ("John A. Smith") defeat edit distance for no
		// identity gain.
		if len(tok) == 1 && i > 0 && i < len(tokens)-1 {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// CompanyName normalizes a company name for matching: lowercase,
// diacritics and punctuation stripped, legal-form suffixes dropped.
func CompanyName(name string) string {
	tokens := tokenize(name)

	kept := tokens[:0]
	for i, tok := range tokens {
		if i > 0 && companySuffixes[tok] {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// tokenize lowercases, strips diacritics, and splits on anything that is
// not a letter or digit.
func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}

	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
