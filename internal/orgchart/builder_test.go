package orgchart

import (
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

var snapDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func entry(roleID, name, title string, rank int, opts ...func(*model.RosterEntry)) model.RosterEntry {
	e := model.RosterEntry{
		Person: model.Person{ID: "p-" + roleID, FullName: name},
		Role: model.Role{
			ID:            roleID,
			CompanyID:     "acme",
			PersonID:      "p-" + roleID,
			Title:         title,
			SeniorityRank: rank,
			IsCurrent:     true,
		},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func withDept(d string) func(*model.RosterEntry) {
	return func(e *model.RosterEntry) { e.Role.Department = d }
}

func withReportsTo(roleID string) func(*model.RosterEntry) {
	return func(e *model.RosterEntry) { e.Role.ReportsTo = roleID }
}

func withStart(t time.Time) func(*model.RosterEntry) {
	return func(e *model.RosterEntry) { e.Role.StartDate = &t }
}

func withEnded() func(*model.RosterEntry) {
	return func(e *model.RosterEntry) {
		e.Role.IsCurrent = false
		end := snapDate.AddDate(0, -1, 0)
		e.Role.EndDate = &end
	}
}

func TestBuildEmptyRoster(t *testing.T) {
	t.Parallel()

	snap, err := Build("acme", nil, snapDate)
	require.NoError(t, err)
	assert.Nil(t, snap)

	// Only ended roles counts as empty too.
	snap, err = Build("acme", []model.RosterEntry{
		entry("r1", "Jane Roe", "CEO", 100, withEnded()),
	}, snapDate)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestBuildSingleRoot(t *testing.T) {
	t.Parallel()

	roster := []model.RosterEntry{
		entry("r-cfo", "Mary Major", "CFO", 90, withDept("finance")),
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-cto", "John Doe", "CTO", 88, withDept("engineering")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, "acme", snap.CompanyID)
	assert.False(t, snap.MultiRoot)
	assert.Equal(t, 3, snap.NodeCount)
	assert.Equal(t, 1, snap.MaxDepth)

	require.Len(t, snap.Roots, 1)
	root := snap.Roots[0]
	assert.Equal(t, "r-ceo", root.RoleID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "r-cfo", root.Children[0].RoleID)
	assert.Equal(t, "r-cto", root.Children[1].RoleID)
}

func TestBuildReportsToHintWins(t *testing.T) {
	t.Parallel()

	// The hint places the VP of Finance under the CTO even though the
	// CFO is the department match.
	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-cfo", "Mary Major", "CFO", 90, withDept("finance")),
		entry("r-cto", "John Doe", "CTO", 88, withDept("engineering")),
		entry("r-vp", "Pat Quinn", "VP of Finance", 55,
			withDept("finance"), withReportsTo("r-cto")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)
	require.Len(t, snap.Roots, 1)

	cto := findNode(t, snap, "r-cto")
	require.Len(t, cto.Children, 1)
	assert.Equal(t, "r-vp", cto.Children[0].RoleID)

	cfo := findNode(t, snap, "r-cfo")
	assert.Empty(t, cfo.Children)
}

func TestBuildHintByPersonName(t *testing.T) {
	t.Parallel()

	// Extraction hints carry the manager's name as written on the page,
	// not a role id.
	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-cto", "Alan Turing", "CTO", 88, withDept("engineering")),
		entry("r-vp", "Bob Lee", "VP of Product", 55,
			withReportsTo("Dr. Alan M. Turing")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)

	cto := findNode(t, snap, "r-cto")
	require.Len(t, cto.Children, 1)
	assert.Equal(t, "r-vp", cto.Children[0].RoleID)

	root := snap.Roots[0]
	require.Equal(t, "r-ceo", root.RoleID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "r-cto", root.Children[0].RoleID)
}

func TestBuildDanglingHintFallsBack(t *testing.T) {
	t.Parallel()

	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-cfo", "Mary Major", "CFO", 90, withDept("finance")),
		entry("r-vp", "Pat Quinn", "VP of Finance", 55,
			withDept("finance"), withReportsTo("r-gone")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)

	// Unknown hint target, so department match picks the CFO.
	cfo := findNode(t, snap, "r-cfo")
	require.Len(t, cfo.Children, 1)
	assert.Equal(t, "r-vp", cfo.Children[0].RoleID)
}

func TestBuildDepartmentMatch(t *testing.T) {
	t.Parallel()

	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-cto", "John Doe", "CTO", 88, withDept("engineering")),
		entry("r-cfo", "Mary Major", "CFO", 90, withDept("finance")),
		entry("r-dir", "Sam Lee", "Director of Engineering", 40,
			withDept("engineering")),
		entry("r-mgr", "Ada King", "Engineering Manager", 25,
			withDept("engineering")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)

	// Both the director and the manager land under the CTO: the manager
	// matches the director's department too, but the CTO is more senior
	// and is checked first.
	cto := findNode(t, snap, "r-cto")
	require.Len(t, cto.Children, 2)
	assert.Equal(t, "r-dir", cto.Children[0].RoleID)
	assert.Equal(t, "r-mgr", cto.Children[1].RoleID)
	assert.Equal(t, 2, snap.MaxDepth)
}

func TestBuildNoDepartmentFallsToMostSenior(t *testing.T) {
	t.Parallel()

	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-cfo", "Mary Major", "CFO", 90, withDept("finance")),
		entry("r-head", "Sam Lee", "Head of Special Projects", 50),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)

	// No department and no hint: the most senior strictly-greater-rank
	// role is the CEO.
	root := snap.Roots[0]
	require.Equal(t, "r-ceo", root.RoleID)
	var ids []string
	for _, c := range root.Children {
		ids = append(ids, c.RoleID)
	}
	assert.Equal(t, []string{"r-cfo", "r-head"}, ids)
}

func TestBuildMultiRoot(t *testing.T) {
	t.Parallel()

	earlier := snapDate.AddDate(-3, 0, 0)
	later := snapDate.AddDate(-1, 0, 0)
	roster := []model.RosterEntry{
		entry("r-co2", "Jane Roe", "Co-CEO", 100, withStart(later)),
		entry("r-co1", "John Doe", "Co-CEO", 100, withStart(earlier)),
		entry("r-cfo", "Mary Major", "CFO", 90, withDept("finance")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)

	assert.True(t, snap.MultiRoot)
	require.Len(t, snap.Roots, 2)
	// Earliest start date orders the sibling group; subordinates without
	// a hint or department match attach to the first root.
	assert.Equal(t, "r-co1", snap.Roots[0].RoleID)
	assert.Equal(t, "r-co2", snap.Roots[1].RoleID)
	require.Len(t, snap.Roots[0].Children, 1)
	assert.Equal(t, "r-cfo", snap.Roots[0].Children[0].RoleID)
	assert.Empty(t, snap.Roots[1].Children)

	assert.Equal(t, 3, snap.NodeCount)
	assert.Equal(t, 1, snap.MaxDepth)
}

func TestBuildSelfHintIgnored(t *testing.T) {
	t.Parallel()

	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-vp", "Pat Quinn", "VP of Sales", 55, withReportsTo("r-vp")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)

	root := snap.Roots[0]
	require.Len(t, root.Children, 1)
	assert.Equal(t, "r-vp", root.Children[0].RoleID)
}

func TestBuildDuplicateRole(t *testing.T) {
	t.Parallel()

	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-ceo", "Jane Roe", "CEO", 100),
	}

	_, err := Build("acme", roster, snapDate)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicateRole))
}

func TestBuildCountsDeepTree(t *testing.T) {
	t.Parallel()

	roster := []model.RosterEntry{
		entry("r-ceo", "Jane Roe", "CEO", 100),
		entry("r-cto", "John Doe", "CTO", 88, withDept("engineering")),
		entry("r-vp", "Pat Quinn", "VP of Engineering", 55,
			withDept("engineering"), withReportsTo("r-cto")),
		entry("r-dir", "Sam Lee", "Director of Platform", 40,
			withReportsTo("r-vp")),
		entry("r-mgr", "Ada King", "Platform Manager", 25,
			withReportsTo("r-dir")),
	}

	snap, err := Build("acme", roster, snapDate)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.NodeCount)
	assert.Equal(t, 4, snap.MaxDepth)

	// Every role is reachable exactly once from the root set.
	visited := map[string]int{}
	for _, root := range snap.Roots {
		root.Walk(func(n *model.OrgNode, _ int) {
			visited[n.RoleID]++
		})
	}
	require.Len(t, visited, 5)
	for id, count := range visited {
		assert.Equal(t, 1, count, "role %s visited more than once", id)
	}
}

func findNode(t *testing.T, snap *model.OrgSnapshot, roleID string) *model.OrgNode {
	t.Helper()
	var found *model.OrgNode
	for _, root := range snap.Roots {
		root.Walk(func(n *model.OrgNode, _ int) {
			if n.RoleID == roleID {
				found = n
			}
		})
	}
	require.NotNil(t, found, "role %s not in snapshot", roleID)
	return found
}
