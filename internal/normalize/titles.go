package normalize

import (
	_ "embed"
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/org-intel/internal/model"
)

//go:embed titles.yaml
var embeddedTaxonomy []byte

// taxonomyEntry is one exact-match row in the taxonomy document.
type taxonomyEntry struct {
	Title string `yaml:"title"`
	Rank  int    `yaml:"rank"`
	Board bool   `yaml:"board"`
}

// keywordRule matches a tokenized raw title: every All token must be
// present, Any requires at least one, and any None token disqualifies.
type keywordRule struct {
	All   []string `yaml:"all"`
	Any   []string `yaml:"any"`
	None  []string `yaml:"none"`
	Title string   `yaml:"title"`
	Rank  int      `yaml:"rank"`
	Board bool     `yaml:"board"`
}

// Taxonomy maps raw title strings to a normalized title and seniority rank.
type Taxonomy struct {
	Exact    map[string]taxonomyEntry `yaml:"exact"`
	Keywords []keywordRule            `yaml:"keywords"`
}

// defaultRank is assigned when no rule matches; low enough to never
// outrank a recognized title.
const defaultRank = 10

// LoadTaxonomy returns the embedded taxonomy, or the override file when
// path is non-empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data := embeddedTaxonomy
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: read taxonomy %s", path)
		}
		data = b
	}

	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return nil, eris.Wrap(err, "normalize: parse taxonomy")
	}
	return &tax, nil
}

// TitleMatch is the outcome of a taxonomy lookup.
type TitleMatch struct {
	Title   string
	Rank    int
	Level   model.TitleLevel
	Board   bool
	Interim bool
}

// Lookup resolves a raw title: exact match first, then keyword rules with
// the highest-rank match winning, then the default rank.
func (t *Taxonomy) Lookup(rawTitle string) TitleMatch {
	tokens := titleTokens(rawTitle)
	interim := containsAny(tokens, "interim", "acting")

	key := strings.Join(tokens, " ")
	if e, ok := t.Exact[key]; ok {
		return TitleMatch{Title: e.Title, Rank: e.Rank, Level: LevelForRank(e.Rank, e.Board), Board: e.Board, Interim: interim}
	}

	best := TitleMatch{Title: strings.TrimSpace(rawTitle), Rank: defaultRank, Level: model.LevelUnknown, Interim: interim}
	for _, rule := range t.Keywords {
		if !rule.matches(tokens) {
			continue
		}
		if rule.Rank > best.Rank {
			best.Title = rule.Title
			best.Rank = rule.Rank
			best.Board = rule.Board
			best.Level = LevelForRank(rule.Rank, rule.Board)
		}
	}
	return best
}

func (r keywordRule) matches(tokens []string) bool {
	if len(r.None) > 0 && containsAny(tokens, r.None...) {
		return false
	}
	for _, kw := range r.All {
		if !containsAny(tokens, kw) {
			return false
		}
	}
	if len(r.Any) > 0 && !containsAny(tokens, r.Any...) {
		return false
	}
	return len(r.All) > 0 || len(r.Any) > 0
}

// LevelForRank buckets a seniority rank into a title level. Board roles
// are classified independently of the executive ladder.
func LevelForRank(rank int, board bool) model.TitleLevel {
	if board {
		return model.LevelBoard
	}
	switch {
	case rank >= 85:
		return model.LevelCSuite
	case rank >= 80:
		return model.LevelPresident
	case rank >= 70:
		return model.LevelEVP
	case rank >= 60:
		return model.LevelSVP
	case rank >= 50:
		return model.LevelVP
	case rank >= 35:
		return model.LevelDirector
	case rank >= 20:
		return model.LevelManager
	default:
		return model.LevelUnknown
	}
}

// titleTokens lowercases a raw title and splits it on punctuation and
// whitespace.
func titleTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAny(tokens []string, wanted ...string) bool {
	for _, tok := range tokens {
		for _, w := range wanted {
			if tok == w {
				return true
			}
		}
	}
	return false
}
