package workflow

// Role is a normalized reviewer role label
type Role string

// DefaultOverrideRole may act on any stage
const DefaultOverrideRole Role = "admin"

// NewRole returns the normalized role for a raw label
func NewRole(label string) Role {
	return Role(Normalize(label))
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// RoleMap binds each stage to the single role authorized to act on it
type RoleMap struct {
	byStage  map[Stage]Role
	override Role
}

// DefaultStageRoles is the stage to role binding used when none is configured
func DefaultStageRoles() map[string]string {
	return map[string]string{
		"faculty":   "faculty_admin",
		"committee": "committee_member",
		"rectorate": "rector",
	}
}

// NewRoleMap builds a role map from raw stage and role labels
func NewRoleMap(stageRoles map[string]string, override string) *RoleMap {
	m := &RoleMap{
		byStage:  make(map[Stage]Role, len(stageRoles)),
		override: NewRole(override),
	}
	for stage, role := range stageRoles {
		m.byStage[NewStage(stage)] = NewRole(role)
	}
	return m
}

// RoleFor returns the role authorized for a stage
func (m *RoleMap) RoleFor(stage Stage) (Role, bool) {
	r, ok := m.byStage[stage]
	return r, ok
}

// Override returns the universal override role, empty when disabled
func (m *RoleMap) Override() Role {
	return m.override
}

// Authorizes reports whether a raw role label may act on the stage
func (m *RoleMap) Authorizes(role string, stage Stage) bool {
	r := NewRole(role)
	if r == "" {
		return false
	}
	if m.override != "" && r == m.override {
		return true
	}
	want, ok := m.byStage[stage]
	return ok && want == r
}

// ActsByOverride reports whether the role reaches the stage only through the
// override role
func (m *RoleMap) ActsByOverride(role string, stage Stage) bool {
	r := NewRole(role)
	if r == "" || m.override == "" || r != m.override {
		return false
	}
	want, ok := m.byStage[stage]
	return !ok || want != r
}

// Covers reports whether every stage has an authorizing role
func (m *RoleMap) Covers(stages Stages) (Stage, bool) {
	for _, s := range stages {
		if _, ok := m.byStage[s]; !ok {
			return s, false
		}
	}
	return "", true
}
