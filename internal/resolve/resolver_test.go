package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memStore is an in-memory Store for resolver tests.
type memStore struct {
	persons map[string]*model.Person
	roles   map[string]*model.Role
	company map[string]string // company id -> name
}

func newMemStore() *memStore {
	return &memStore{
		persons: make(map[string]*model.Person),
		roles:   make(map[string]*model.Role),
		company: map[string]string{"acme": "Acme, Inc."},
	}
}

func (s *memStore) GetPerson(_ context.Context, id string) (*model.Person, error) {
	if p, ok := s.persons[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) GetPersonByProfileURL(_ context.Context, url string) (*model.Person, error) {
	for _, p := range s.persons {
		if p.ProfileURL == url {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListRoster(_ context.Context, companyID string, currentOnly bool) ([]model.RosterEntry, error) {
	var out []model.RosterEntry
	for _, r := range s.roles {
		if r.CompanyID != companyID {
			continue
		}
		if currentOnly && !r.IsCurrent {
			continue
		}
		p := s.persons[r.PersonID]
		out = append(out, model.RosterEntry{Person: *p, Role: *r, CompanyName: s.company[companyID]})
	}
	return out, nil
}

func (s *memStore) CreatePerson(_ context.Context, p *model.Person) error {
	if p.Version == 0 {
		p.Version = 1
	}
	cp := *p
	s.persons[p.ID] = &cp
	return nil
}

// UpdatePerson mirrors the real stores' optimistic concurrency: a stale
// submitted version is a conflict, a successful write bumps it.
func (s *memStore) UpdatePerson(_ context.Context, p *model.Person) error {
	stored, ok := s.persons[p.ID]
	if !ok {
		return eris.Errorf("persons %s: not found", p.ID)
	}
	if stored.Version != p.Version {
		return eris.Errorf("persons %s: version conflict", p.ID)
	}
	p.Version++
	cp := *p
	s.persons[p.ID] = &cp
	return nil
}

func (s *memStore) CreateRole(_ context.Context, r *model.Role) error {
	if r.Version == 0 {
		r.Version = 1
	}
	cr := *r
	s.roles[r.ID] = &cr
	return nil
}

func (s *memStore) UpdateRole(_ context.Context, r *model.Role) error {
	stored, ok := s.roles[r.ID]
	if !ok {
		return eris.Errorf("roles %s: not found", r.ID)
	}
	if stored.Version != r.Version {
		return eris.Errorf("roles %s: version conflict", r.ID)
	}
	r.Version++
	cr := *r
	s.roles[r.ID] = &cr
	return nil
}

func (s *memStore) ReassignRoles(_ context.Context, fromID, toID string) error {
	for _, r := range s.roles {
		if r.PersonID == fromID {
			r.PersonID = toID
		}
	}
	return nil
}

func (s *memStore) currentRoles(companyID string) []*model.Role {
	var out []*model.Role
	for _, r := range s.roles {
		if r.CompanyID == companyID && r.IsCurrent {
			out = append(out, r)
		}
	}
	return out
}

func ceoCandidate() model.NormalizedCandidate {
	return model.NormalizedCandidate{
		FullName:       "John Smith",
		NormalizedName: "john smith",
		RawTitle:       "Chief Executive Officer",
		Title:          "Chief Executive Officer",
		TitleLevel:     model.LevelCSuite,
		SeniorityRank:  100,
		SourceType:     model.SourceWebsite,
		Confidence:     0.84,
		ObservedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolveCreatesNewPerson(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())

	delta, err := r.Resolve(context.Background(), "acme", "Acme, Inc.", []model.NormalizedCandidate{ceoCandidate()})
	require.NoError(t, err)

	assert.Len(t, delta.Created, 1)
	assert.Empty(t, delta.Updated)
	assert.Len(t, st.persons, 1)
	assert.Len(t, st.roles, 1)

	role := delta.Created[0]
	assert.True(t, role.IsCurrent)
	assert.Equal(t, 100, role.SeniorityRank)
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	first, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{ceoCandidate()})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	second, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{ceoCandidate()})
	require.NoError(t, err)

	assert.Empty(t, second.Created, "second run must create nothing")
	assert.Len(t, st.persons, 1)
	assert.Len(t, st.roles, 1)
}

func TestResolveRepeatedMentionInBatch(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	_, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{ceoCandidate()})
	require.NoError(t, err)

	// The same executive listed twice on one page is normal input: both
	// mentions must fold into the existing record without the second one
	// submitting a stale version.
	mention := ceoCandidate()
	mention.SourceType = model.SourceNews
	mention.ObservedAt = mention.ObservedAt.AddDate(0, 1, 0)
	delta, err := r.Resolve(ctx, "acme", "Acme, Inc.",
		[]model.NormalizedCandidate{mention, mention})
	require.NoError(t, err)

	assert.Empty(t, delta.Created)
	assert.Len(t, st.persons, 1)
	assert.Len(t, st.roles, 1)
	for _, p := range st.persons {
		assert.ElementsMatch(t, []string{"website", "news"}, p.Sources)
	}
}

func TestResolveFuzzyMatchMergesSpelling(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	cfoA := model.NormalizedCandidate{
		FullName:       "John A. Smith",
		NormalizedName: "john smith",
		RawTitle:       "CFO",
		Title:          "Chief Financial Officer",
		TitleLevel:     model.LevelCSuite,
		SeniorityRank:  90,
		SourceType:     model.SourceNews,
		Confidence:     0.6,
		ObservedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{cfoA})
	require.NoError(t, err)

	cfoB := model.NormalizedCandidate{
		FullName:       "Jon Smith",
		NormalizedName: "jon smith",
		RawTitle:       "Chief Financial Officer",
		Title:          "Chief Financial Officer",
		TitleLevel:     model.LevelCSuite,
		SeniorityRank:  90,
		ProfileURL:     "https://x/jsmith",
		SourceType:     model.SourceFiling,
		Confidence:     0.95,
		ObservedAt:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	delta, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{cfoB})
	require.NoError(t, err)

	// Fuzzy pass should fold the differently spelled record into one
	// person rather than creating a second CFO.
	assert.Empty(t, delta.Created)
	assert.Len(t, st.persons, 1)

	for _, p := range st.persons {
		assert.Equal(t, "https://x/jsmith", p.ProfileURL)
		assert.InDelta(t, 0.95, p.Confidence, 1e-9)
		assert.ElementsMatch(t, []string{"news", "filing"}, p.Sources)
	}
}

func TestResolveURLMatchTriggersMergeOfDuplicate(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	// Seed two separate persons: one URL-anchored under a different
	// display name, one name-only.
	withURL := ceoCandidate()
	withURL.FullName = "John R. Smith"
	withURL.NormalizedName = "john r smith"
	withURL.ProfileURL = "https://x/jsmith"
	_, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{withURL})
	require.NoError(t, err)

	nameOnly := ceoCandidate()
	nameOnly.NormalizedName = "johnny smithe" // too far for fuzzy
	nameOnly.FullName = "Johnny Smithe"
	_, err = r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{nameOnly})
	require.NoError(t, err)
	require.Len(t, st.persons, 2)

	// A later candidate carries both the URL and the second person's
	// exact name: deterministic signal proves they are the same human.
	both := ceoCandidate()
	both.NormalizedName = "johnny smithe"
	both.FullName = "Johnny Smithe"
	both.ProfileURL = "https://x/jsmith"
	delta, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{both})
	require.NoError(t, err)

	require.Len(t, delta.Merges, 1)

	merged := 0
	for _, p := range st.persons {
		if p.IsMerged() {
			merged++
			assert.Equal(t, delta.Merges[0].WinnerID, *p.CanonicalID)
		}
	}
	assert.Equal(t, 1, merged)

	// All roles now belong to the canonical person.
	for _, role := range st.roles {
		assert.Equal(t, delta.Merges[0].WinnerID, role.PersonID)
	}
}

func TestDereferenceCycleDetected(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	aID, bID := "person-a", "person-b"
	st.persons[aID] = &model.Person{ID: aID, CanonicalID: &bID}
	st.persons[bID] = &model.Person{ID: bID, CanonicalID: &aID}

	_, err := r.Dereference(ctx, st.persons[aID])
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCycleDetected))
}

func TestMergeRefusedOnCycle(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	aID, bID := "person-a", "person-b"
	a := &model.Person{ID: aID, CanonicalID: &bID}
	b := &model.Person{ID: bID}
	st.persons[aID] = a
	st.persons[bID] = b

	// A already points at B; merging B into A would close the loop.
	_, err := r.mergePersons(ctx, &matchResult{person: a, matchType: "profile_url"}, b)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCycleDetected))

	// Both records remain independent.
	assert.Nil(t, st.persons[bID].CanonicalID)
}

func TestResolveAmbiguousTieCreatesNew(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	seen := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"jon smath", "jon smeth"} {
		pid := []string{"p1", "p2"}[i]
		st.persons[pid] = &model.Person{ID: pid, NormalizedName: name, LastSeenAt: seen, Confidence: 0.8}
		st.roles["r"+pid] = &model.Role{
			ID: "r" + pid, CompanyID: "acme", PersonID: pid,
			Title: "Chief Financial Officer", SeniorityRank: 90, IsCurrent: true,
		}
	}

	cand := model.NormalizedCandidate{
		FullName:       "Jon Smith",
		NormalizedName: "jon smith",
		RawTitle:       "CFO",
		Title:          "Chief Financial Officer",
		SeniorityRank:  90,
		SourceType:     model.SourceNews,
		Confidence:     0.6,
		ObservedAt:     seen.AddDate(0, 1, 0),
	}

	delta, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{cand})
	require.NoError(t, err)

	// Equal similarity and equal last-seen: resolver must not guess.
	require.Len(t, delta.Created, 1)
	assert.Len(t, st.persons, 3)

	created := st.persons[delta.Created[0].PersonID]
	assert.InDelta(t, DefaultConfig().AmbiguousConfidence, created.Confidence, 1e-9)
}

func TestResolveTitleChangeEndsPriorRole(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	cfo := ceoCandidate()
	cfo.RawTitle = "CFO"
	cfo.Title = "Chief Financial Officer"
	cfo.SeniorityRank = 90
	_, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{cfo})
	require.NoError(t, err)

	promoted := ceoCandidate()
	promoted.ObservedAt = cfo.ObservedAt.AddDate(0, 2, 0)
	delta, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{promoted})
	require.NoError(t, err)

	require.Len(t, delta.Created, 1)
	assert.Len(t, st.persons, 1, "same person, new role")

	current := st.currentRoles("acme")
	require.Len(t, current, 1)
	assert.Equal(t, "Chief Executive Officer", current[0].Title)

	// The CFO role is closed with an end date.
	for _, role := range st.roles {
		if role.Title == "Chief Financial Officer" {
			assert.False(t, role.IsCurrent)
			require.NotNil(t, role.EndDate)
			assert.Equal(t, promoted.ObservedAt, *role.EndDate)
		}
	}
}

func TestResolveLowerConfidenceDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := New(st, DefaultConfig())
	ctx := context.Background()

	high := ceoCandidate()
	high.SourceType = model.SourceFiling
	high.Confidence = 0.95
	high.Bio = "from the proxy statement"
	_, err := r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{high})
	require.NoError(t, err)

	low := ceoCandidate()
	low.SourceType = model.SourceNews
	low.Confidence = 0.5
	low.Bio = "from a blog post"
	_, err = r.Resolve(ctx, "acme", "Acme, Inc.", []model.NormalizedCandidate{low})
	require.NoError(t, err)

	for _, p := range st.persons {
		assert.Equal(t, "from the proxy statement", p.Bio)
		assert.InDelta(t, 0.95, p.Confidence, 1e-9)
		// Both sources are still recorded as provenance.
		assert.ElementsMatch(t, []string{"filing", "news"}, p.Sources)
	}
}
