// Package orgchart infers a reporting tree from a company's current
// roster using seniority ranking and extraction-provided reports_to
// hints, and freezes it into an immutable dated snapshot.
package orgchart

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/match"
	"github.com/sells-group/org-intel/internal/model"
)

// ErrDuplicateRole reports a roster carrying the same role id twice,
// which would corrupt the tree.
var ErrDuplicateRole = eris.New("orgchart: duplicate role id in roster")

// Build constructs an OrgSnapshot from the current roster entries of one
// company. A company with no current roles produces no snapshot: that is
// reported by the (nil, nil) return, not an error.
func Build(companyID string, roster []model.RosterEntry, date time.Time) (*model.OrgSnapshot, error) {
	entries := make([]model.RosterEntry, 0, len(roster))
	seen := make(map[string]bool, len(roster))
	for _, e := range roster {
		if !e.Role.IsCurrent {
			continue
		}
		if seen[e.Role.ID] {
			return nil, eris.Wrapf(ErrDuplicateRole, "role %s", e.Role.ID)
		}
		seen[e.Role.ID] = true
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		zap.L().Info("orgchart: no current roles, skipping snapshot",
			zap.String("company_id", companyID),
		)
		return nil, nil
	}

	// Most senior first; rank ties break by earliest start date, then
	// role id so the tree is deterministic.
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := entries[i].Role, entries[j].Role
		if ri.SeniorityRank != rj.SeniorityRank {
			return ri.SeniorityRank > rj.SeniorityRank
		}
		si, sj := startOrZero(ri), startOrZero(rj)
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return ri.ID < rj.ID
	})

	// Hints from extraction name a person, not a role id, so placed
	// nodes are indexed both ways. Placement runs in rank order, which
	// keeps the most senior role for a duplicated name.
	nodes := make(map[string]*model.OrgNode, len(entries))
	byName := make(map[string]*model.OrgNode, len(entries))
	newNode := func(e model.RosterEntry) *model.OrgNode {
		n := &model.OrgNode{
			RoleID:        e.Role.ID,
			PersonID:      e.Role.PersonID,
			PersonName:    e.Person.FullName,
			Title:         e.Role.Title,
			TitleLevel:    e.Role.TitleLevel,
			SeniorityRank: e.Role.SeniorityRank,
			Department:    e.Role.Department,
		}
		nodes[e.Role.ID] = n
		if key := match.PersonName(e.Person.FullName); key != "" {
			if _, ok := byName[key]; !ok {
				byName[key] = n
			}
		}
		return n
	}

	// The top rank band forms the root set: usually one node, but
	// co-CEOs become root-level siblings instead of a forced hierarchy.
	topRank := entries[0].Role.SeniorityRank
	var roots []*model.OrgNode
	var rest []model.RosterEntry
	for _, e := range entries {
		if e.Role.SeniorityRank == topRank {
			roots = append(roots, newNode(e))
		} else {
			rest = append(rest, e)
		}
	}

	// attached tracks placement order so department matching prefers the
	// most senior eligible parent (entries are rank-sorted).
	attached := make([]model.RosterEntry, 0, len(entries))
	for _, e := range entries {
		if e.Role.SeniorityRank == topRank {
			attached = append(attached, e)
		}
	}

	for _, e := range rest {
		// Parent selection runs before the node exists so a hint can
		// never attach a role to itself.
		parent := pickParent(e, attached, nodes, byName)
		node := newNode(e)
		if parent == nil {
			parent = roots[0]
		}
		parent.Children = append(parent.Children, node)
		attached = append(attached, e)
	}

	nodeCount := 0
	maxDepth := 0
	for _, root := range roots {
		root.Walk(func(_ *model.OrgNode, depth int) {
			nodeCount++
			if depth > maxDepth {
				maxDepth = depth
			}
		})
	}

	snap := &model.OrgSnapshot{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Date:      date,
		Roots:     roots,
		MultiRoot: len(roots) > 1,
		NodeCount: nodeCount,
		MaxDepth:  maxDepth,
		CreatedAt: time.Now().UTC(),
	}

	zap.L().Debug("orgchart: snapshot built",
		zap.String("company_id", companyID),
		zap.Int("nodes", snap.NodeCount),
		zap.Int("max_depth", snap.MaxDepth),
		zap.Bool("multi_root", snap.MultiRoot),
	)
	return snap, nil
}

// pickParent chooses where to attach a role: the reports_to hint when it
// names a placed role id or person, otherwise the most senior placed
// role with a strictly greater rank whose department matches when both
// are known.
func pickParent(e model.RosterEntry, attached []model.RosterEntry, nodes, byName map[string]*model.OrgNode) *model.OrgNode {
	if hint := e.Role.ReportsTo; hint != "" {
		if n, ok := nodes[hint]; ok {
			return n
		}
		if n, ok := byName[match.PersonName(hint)]; ok {
			return n
		}
	}

	var fallback *model.OrgNode
	for _, a := range attached {
		if a.Role.SeniorityRank <= e.Role.SeniorityRank {
			continue
		}
		if fallback == nil {
			fallback = nodes[a.Role.ID]
		}
		if e.Role.Department != "" && a.Role.Department == e.Role.Department {
			return nodes[a.Role.ID]
		}
	}
	return fallback
}

func startOrZero(r model.Role) time.Time {
	if r.StartDate != nil {
		return *r.StartDate
	}
	return time.Time{}
}
