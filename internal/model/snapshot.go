package model

import "time"

// OrgNode is one node in a reporting tree. Children are ordered by
// seniority rank descending, then earliest start date, so traversal is
// deterministic.
type OrgNode struct {
	RoleID        string     `json:"role_id"`
	PersonID      string     `json:"person_id"`
	PersonName    string     `json:"person_name"`
	Title         string     `json:"title"`
	TitleLevel    TitleLevel `json:"title_level"`
	SeniorityRank int        `json:"seniority_rank"`
	Department    string     `json:"department,omitempty"`
	Children      []*OrgNode `json:"children,omitempty"`
}

// Walk visits the node and all descendants depth-first.
func (n *OrgNode) Walk(fn func(node *OrgNode, depth int)) {
	n.walk(fn, 0)
}

func (n *OrgNode) walk(fn func(node *OrgNode, depth int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// OrgSnapshot is an immutable dated reporting tree for one company.
// A new collection run that changes the roster produces a new snapshot;
// existing snapshots are never mutated.
type OrgSnapshot struct {
	ID        string     `json:"id" db:"id"`
	CompanyID string     `json:"company_id" db:"company_id"`
	Date      time.Time  `json:"date" db:"date"`
	Roots     []*OrgNode `json:"roots"`
	MultiRoot bool       `json:"multi_root" db:"multi_root"`
	NodeCount int        `json:"node_count" db:"node_count"`
	MaxDepth  int        `json:"max_depth" db:"max_depth"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
