package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	tax, err := LoadTaxonomy("")
	require.NoError(t, err)
	return New(tax)
}

func TestNormalizeCEO(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)
	res := n.Normalize("acme", []model.Candidate{
		{FullName: "John Smith", RawTitle: "Chief Executive Officer", SourceType: model.SourceWebsite, SourceConfidence: 0.9},
	})

	require.Len(t, res.Accepted, 1)
	assert.Empty(t, res.Rejected)

	nc := res.Accepted[0]
	assert.Equal(t, "john smith", nc.NormalizedName)
	assert.Equal(t, "Chief Executive Officer", nc.Title)
	assert.Equal(t, 100, nc.SeniorityRank)
	assert.Equal(t, model.LevelCSuite, nc.TitleLevel)
	assert.False(t, nc.IsBoard)
	assert.False(t, nc.IsInterim)
	// 0.8 reliability * 0.6 + 0.9 extractor * 0.4
	assert.InDelta(t, 0.84, nc.Confidence, 1e-9)
}

func TestNormalizeRejections(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)

	tests := []struct {
		name      string
		candidate model.Candidate
		reason    string
	}{
		{
			name:      "empty name",
			candidate: model.Candidate{FullName: "  ", RawTitle: "CEO", SourceType: model.SourceWebsite},
			reason:    "empty name",
		},
		{
			name:      "empty title",
			candidate: model.Candidate{FullName: "John Smith", RawTitle: "", SourceType: model.SourceWebsite},
			reason:    "empty title",
		},
		{
			name:      "single token",
			candidate: model.Candidate{FullName: "Cher", RawTitle: "CEO", SourceType: model.SourceWebsite},
			reason:    "single token",
		},
		{
			name:      "all digits",
			candidate: model.Candidate{FullName: "123 456", RawTitle: "CEO", SourceType: model.SourceWebsite},
			reason:    "all digits",
		},
		{
			name:      "unknown source",
			candidate: model.Candidate{FullName: "John Smith", RawTitle: "CEO", SourceType: "carrier_pigeon"},
			reason:    "unknown source type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := n.Normalize("acme", []model.Candidate{tt.candidate})
			assert.Empty(t, res.Accepted)
			require.Len(t, res.Rejected, 1)
			assert.Contains(t, res.Rejected[0].Reason, tt.reason)
		})
	}
}

func TestNormalizeBatchContinuesPastBadRecords(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)
	res := n.Normalize("acme", []model.Candidate{
		{FullName: "Jane Doe", RawTitle: "CFO", SourceType: model.SourceFiling, SourceConfidence: 1.0},
		{FullName: "", RawTitle: "CEO", SourceType: model.SourceWebsite},
		{FullName: "Bob Lee", RawTitle: "VP of Sales", SourceType: model.SourceNews, SourceConfidence: 0.5},
	})

	assert.Len(t, res.Accepted, 2)
	assert.Len(t, res.Rejected, 1)
}

func TestNormalizeOneSentinel(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)
	_, err := n.normalizeOne(model.Candidate{FullName: "", RawTitle: "CEO", SourceType: model.SourceWebsite})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCandidate))
}

func TestTaxonomyLookup(t *testing.T) {
	t.Parallel()

	tax, err := LoadTaxonomy("")
	require.NoError(t, err)

	tests := []struct {
		raw     string
		title   string
		rank    int
		level   model.TitleLevel
		board   bool
		interim bool
	}{
		{"Chief Executive Officer", "Chief Executive Officer", 100, model.LevelCSuite, false, false},
		{"President & CEO", "Chief Executive Officer", 100, model.LevelCSuite, false, false},
		{"Chief Financial Officer", "Chief Financial Officer", 90, model.LevelCSuite, false, false},
		{"EVP, Global Operations", "Executive Vice President", 75, model.LevelEVP, false, false},
		{"Senior Vice President of Engineering", "Senior Vice President", 65, model.LevelSVP, false, false},
		{"VP Marketing", "Vice President", 55, model.LevelVP, false, false},
		{"Director of Product", "Director", 40, model.LevelDirector, false, false},
		{"Engineering Manager", "Manager", 25, model.LevelManager, false, false},
		{"Chairman of the Board", "Chairman of the Board", 95, model.LevelBoard, true, false},
		{"Member of the Board of Directors", "Board Member", 88, model.LevelBoard, true, false},
		{"Interim CFO", "Chief Financial Officer", 90, model.LevelCSuite, false, true},
		{"Acting Chief Executive Officer", "Chief Executive Officer", 100, model.LevelCSuite, false, true},
		{"Wizard of Lightbulb Moments", "Wizard of Lightbulb Moments", 10, model.LevelUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			m := tax.Lookup(tt.raw)
			assert.Equal(t, tt.title, m.Title)
			assert.Equal(t, tt.rank, m.Rank)
			assert.Equal(t, tt.level, m.Level)
			assert.Equal(t, tt.board, m.Board)
			assert.Equal(t, tt.interim, m.Interim)
		})
	}
}

func TestLevelForRank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.LevelBoard, LevelForRank(100, true))
	assert.Equal(t, model.LevelCSuite, LevelForRank(100, false))
	assert.Equal(t, model.LevelPresident, LevelForRank(82, false))
	assert.Equal(t, model.LevelEVP, LevelForRank(75, false))
	assert.Equal(t, model.LevelSVP, LevelForRank(65, false))
	assert.Equal(t, model.LevelVP, LevelForRank(55, false))
	assert.Equal(t, model.LevelDirector, LevelForRank(40, false))
	assert.Equal(t, model.LevelManager, LevelForRank(25, false))
	assert.Equal(t, model.LevelUnknown, LevelForRank(10, false))
}
