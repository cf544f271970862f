package model

// RosterEntry pairs a role with its person for read-model queries and
// for the resolver's matching passes.
type RosterEntry struct {
	Person      Person `json:"person"`
	Role        Role   `json:"role"`
	CompanyName string `json:"company_name,omitempty"`
}
