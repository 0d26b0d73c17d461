package pipeline

import (
	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
)

// Directory is an in-memory view of the org hierarchy
type Directory struct {
	profiles []domain.UserProfile
	byID     map[uuid.UUID]int
	byUser   map[string]int
	teams    map[uuid.UUID][]uuid.UUID
	mapped   map[uuid.UUID]bool
}

// NewDirectory indexes profiles and explicit team memberships
func NewDirectory(profiles []domain.UserProfile, memberships []domain.TeamMembership) *Directory {
	d := &Directory{
		profiles: profiles,
		byID:     make(map[uuid.UUID]int, len(profiles)),
		byUser:   make(map[string]int, len(profiles)),
		teams:    make(map[uuid.UUID][]uuid.UUID),
		mapped:   make(map[uuid.UUID]bool),
	}
	for i, p := range profiles {
		d.byID[p.ID] = i
		d.byUser[p.UserID] = i
	}
	for _, m := range memberships {
		d.teams[m.ManagerID] = append(d.teams[m.ManagerID], m.MemberID)
		d.mapped[m.MemberID] = true
	}
	return d
}

// Profile returns the profile with the given id
func (d *Directory) Profile(id uuid.UUID) (domain.UserProfile, bool) {
	i, ok := d.byID[id]
	if !ok {
		return domain.UserProfile{}, false
	}
	return d.profiles[i], true
}

// ProfileByUserID returns the profile linked to an authenticated user id
func (d *Directory) ProfileByUserID(userID string) (domain.UserProfile, bool) {
	i, ok := d.byUser[userID]
	if !ok {
		return domain.UserProfile{}, false
	}
	return d.profiles[i], true
}

// Profiles returns every profile in directory order
func (d *Directory) Profiles() []domain.UserProfile {
	return d.profiles
}

func (d *Directory) filter(keep func(p domain.UserProfile) bool) []domain.UserProfile {
	var out []domain.UserProfile
	for _, p := range d.profiles {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// ScopeStrategy is one tier of the manager fallback chain
type ScopeStrategy struct {
	Name    string
	Members func(viewer domain.UserProfile, dir *Directory) []domain.UserProfile
}

// Strategy names reported on OrgScope
const (
	StrategySelf        = "self"
	StrategyTeamMapping = "team_mapping"
	StrategyDepartment  = "department"
	StrategyUnassigned  = "unassigned_account_managers"
	StrategyDivision    = "division"
	StrategyEveryone    = "everyone"
)

// TeamMappingStrategy returns explicit team members and profiles whose
// manager link points at the viewer
func TeamMappingStrategy() ScopeStrategy {
	return ScopeStrategy{
		Name: StrategyTeamMapping,
		Members: func(viewer domain.UserProfile, dir *Directory) []domain.UserProfile {
			members := make(map[uuid.UUID]bool)
			for _, id := range dir.teams[viewer.ID] {
				members[id] = true
			}
			return dir.filter(func(p domain.UserProfile) bool {
				if p.ID == viewer.ID {
					return false
				}
				return members[p.ID] || (p.ManagerID != nil && *p.ManagerID == viewer.ID)
			})
		},
	}
}

// DepartmentStrategy returns active account managers in the viewer's department
func DepartmentStrategy() ScopeStrategy {
	return ScopeStrategy{
		Name: StrategyDepartment,
		Members: func(viewer domain.UserProfile, dir *Directory) []domain.UserProfile {
			if viewer.DepartmentID == nil {
				return nil
			}
			return dir.filter(func(p domain.UserProfile) bool {
				return p.ID != viewer.ID &&
					p.IsActive &&
					p.Role == domain.RoleAccountManager &&
					p.DepartmentID != nil && *p.DepartmentID == *viewer.DepartmentID
			})
		},
	}
}

// UnassignedAccountManagersStrategy returns active account managers that no
// manager claims, either by manager link or team membership.
func UnassignedAccountManagersStrategy() ScopeStrategy {
	return ScopeStrategy{
		Name: StrategyUnassigned,
		Members: func(viewer domain.UserProfile, dir *Directory) []domain.UserProfile {
			return dir.filter(func(p domain.UserProfile) bool {
				return p.ID != viewer.ID &&
					p.IsActive &&
					p.Role == domain.RoleAccountManager &&
					p.ManagerID == nil &&
					!dir.mapped[p.ID]
			})
		},
	}
}

// ManagerStrategies returns the manager fallback chain in evaluation order
func ManagerStrategies(includeUnassigned bool) []ScopeStrategy {
	strategies := []ScopeStrategy{TeamMappingStrategy(), DepartmentStrategy()}
	if includeUnassigned {
		strategies = append(strategies, UnassignedAccountManagersStrategy())
	}
	return strategies
}

// OrgScope is the set of owners and target assignees visible to a viewer
type OrgScope struct {
	ViewerID   uuid.UUID
	Role       domain.UserRoleType
	Strategy   string
	ProfileIDs []uuid.UUID
	OwnerIDs   []string
	owners     map[string]bool
	profileSet map[uuid.UUID]bool
}

// IncludesOwner reports whether opportunities of ownerID are visible
func (s *OrgScope) IncludesOwner(ownerID string) bool {
	return s.owners[ownerID]
}

// IncludesProfile reports whether targets assigned to id are visible
func (s *OrgScope) IncludesProfile(id uuid.UUID) bool {
	return s.profileSet[id]
}

func newScope(viewer domain.UserProfile, strategy string, members []domain.UserProfile) *OrgScope {
	s := &OrgScope{
		ViewerID:   viewer.ID,
		Role:       viewer.Role,
		Strategy:   strategy,
		owners:     make(map[string]bool),
		profileSet: make(map[uuid.UUID]bool),
	}
	add := func(p domain.UserProfile) {
		if s.profileSet[p.ID] {
			return
		}
		s.profileSet[p.ID] = true
		s.ProfileIDs = append(s.ProfileIDs, p.ID)
		if p.UserID != "" && !s.owners[p.UserID] {
			s.owners[p.UserID] = true
			s.OwnerIDs = append(s.OwnerIDs, p.UserID)
		}
	}
	add(viewer)
	for _, m := range members {
		add(m)
	}
	return s
}

// ScopeResolver walks the org hierarchy for a viewer
type ScopeResolver struct {
	managerStrategies []ScopeStrategy
}

// NewScopeResolver creates a resolver evaluating managerStrategies in order
func NewScopeResolver(managerStrategies ...ScopeStrategy) *ScopeResolver {
	return &ScopeResolver{managerStrategies: managerStrategies}
}

// Resolve computes the viewer's scope. Managers get the first non-empty
// strategy tier; tiers are never merged.
func (r *ScopeResolver) Resolve(viewer domain.UserProfile, dir *Directory) (*OrgScope, error) {
	switch viewer.Role {
	case domain.RoleAccountManager:
		return newScope(viewer, StrategySelf, nil), nil

	case domain.RoleManager:
		for _, strategy := range r.managerStrategies {
			if members := strategy.Members(viewer, dir); len(members) > 0 {
				return newScope(viewer, strategy.Name, members), nil
			}
		}
		return newScope(viewer, StrategySelf, nil), nil

	case domain.RoleHead:
		members := dir.filter(func(p domain.UserProfile) bool {
			if p.ID == viewer.ID {
				return false
			}
			inDivision := viewer.DivisionID != nil && p.DivisionID != nil && *p.DivisionID == *viewer.DivisionID
			reportsToHead := p.HeadID != nil && *p.HeadID == viewer.ID
			return inDivision || reportsToHead
		})
		return newScope(viewer, StrategyDivision, members), nil

	case domain.RoleAdmin, domain.RoleAPIService:
		return newScope(viewer, StrategyEveryone, dir.Profiles()), nil
	}

	return nil, domain.InvalidArgument("unknown role %q for profile %s", viewer.Role, viewer.ID)
}
