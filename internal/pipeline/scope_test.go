package pipeline_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type org struct {
	dept, otherDept, division uuid.UUID
	admin, head, manager, lonelyManager,
	amTeam, amDept, amUnassigned, amOtherDivision domain.UserProfile
}

func profile(userID string, role domain.UserRoleType) domain.UserProfile {
	p := domain.UserProfile{UserID: userID, DisplayName: userID, Role: role, IsActive: true}
	p.ID = uuid.New()
	return p
}

func newOrg() *org {
	o := &org{dept: uuid.New(), otherDept: uuid.New(), division: uuid.New()}

	o.admin = profile("admin", domain.RoleAdmin)
	o.head = profile("head", domain.RoleHead)
	o.head.DivisionID = &o.division

	o.manager = profile("manager", domain.RoleManager)
	o.manager.DepartmentID = &o.dept
	o.manager.DivisionID = &o.division

	o.lonelyManager = profile("lonely", domain.RoleManager)
	o.lonelyManager.DepartmentID = &o.otherDept

	o.amTeam = profile("am-team", domain.RoleAccountManager)
	o.amTeam.DepartmentID = &o.dept
	o.amTeam.DivisionID = &o.division

	o.amDept = profile("am-dept", domain.RoleAccountManager)
	o.amDept.DepartmentID = &o.dept
	o.amDept.DivisionID = &o.division
	o.amDept.ManagerID = &o.lonelyManager.ID

	o.amUnassigned = profile("am-free", domain.RoleAccountManager)

	o.amOtherDivision = profile("am-far", domain.RoleAccountManager)
	o.amOtherDivision.HeadID = &o.head.ID
	return o
}

func (o *org) profiles() []domain.UserProfile {
	return []domain.UserProfile{o.admin, o.head, o.manager, o.lonelyManager, o.amTeam, o.amDept, o.amUnassigned, o.amOtherDivision}
}

func TestResolveScope_AccountManagerSeesSelf(t *testing.T) {
	o := newOrg()
	dir := pipeline.NewDirectory(o.profiles(), nil)
	r := pipeline.NewScopeResolver(pipeline.ManagerStrategies(true)...)

	scope, err := r.Resolve(o.amTeam, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"am-team"}, scope.OwnerIDs)
	assert.Equal(t, pipeline.StrategySelf, scope.Strategy)
	assert.True(t, scope.IncludesOwner("am-team"))
	assert.False(t, scope.IncludesOwner("am-dept"))
}

func TestResolveScope_ManagerFallbackOrder(t *testing.T) {
	t.Run("team mapping wins and tiers are not merged", func(t *testing.T) {
		o := newOrg()
		dir := pipeline.NewDirectory(o.profiles(), []domain.TeamMembership{
			{ManagerID: o.manager.ID, MemberID: o.amTeam.ID},
		})
		r := pipeline.NewScopeResolver(pipeline.ManagerStrategies(true)...)

		scope, err := r.Resolve(o.manager, dir)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StrategyTeamMapping, scope.Strategy)
		assert.ElementsMatch(t, []string{"manager", "am-team"}, scope.OwnerIDs)
		assert.False(t, scope.IncludesOwner("am-dept"), "department tier must not be merged in")
	})

	t.Run("manager link counts as team mapping", func(t *testing.T) {
		o := newOrg()
		dir := pipeline.NewDirectory(o.profiles(), nil)
		r := pipeline.NewScopeResolver(pipeline.ManagerStrategies(true)...)

		scope, err := r.Resolve(o.lonelyManager, dir)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StrategyTeamMapping, scope.Strategy)
		assert.ElementsMatch(t, []string{"lonely", "am-dept"}, scope.OwnerIDs)
	})

	t.Run("department match when no mapping exists", func(t *testing.T) {
		o := newOrg()
		dir := pipeline.NewDirectory(o.profiles(), nil)
		r := pipeline.NewScopeResolver(pipeline.ManagerStrategies(true)...)

		scope, err := r.Resolve(o.manager, dir)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StrategyDepartment, scope.Strategy)
		assert.ElementsMatch(t, []string{"manager", "am-team", "am-dept"}, scope.OwnerIDs)
	})

	t.Run("unassigned account managers as last tier", func(t *testing.T) {
		o := newOrg()
		o.manager.DepartmentID = nil
		dir := pipeline.NewDirectory(o.profiles(), nil)

		scope, err := pipeline.NewScopeResolver(pipeline.ManagerStrategies(true)...).Resolve(o.manager, dir)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StrategyUnassigned, scope.Strategy)
		assert.True(t, scope.IncludesOwner("am-free"))
		assert.False(t, scope.IncludesOwner("am-dept"))

		scope, err = pipeline.NewScopeResolver(pipeline.ManagerStrategies(false)...).Resolve(o.manager, dir)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StrategySelf, scope.Strategy)
		assert.Equal(t, []string{"manager"}, scope.OwnerIDs)
	})
}

func TestResolveScope_HeadSeesDivision(t *testing.T) {
	o := newOrg()
	dir := pipeline.NewDirectory(o.profiles(), nil)
	r := pipeline.NewScopeResolver(pipeline.ManagerStrategies(true)...)

	scope, err := r.Resolve(o.head, dir)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StrategyDivision, scope.Strategy)
	assert.ElementsMatch(t, []string{"head", "manager", "am-team", "am-dept", "am-far"}, scope.OwnerIDs)
	assert.True(t, scope.IncludesProfile(o.amDept.ID))
	assert.False(t, scope.IncludesProfile(o.amUnassigned.ID))
}

func TestResolveScope_AdminSeesEveryone(t *testing.T) {
	o := newOrg()
	dir := pipeline.NewDirectory(o.profiles(), nil)

	scope, err := pipeline.NewScopeResolver().Resolve(o.admin, dir)
	require.NoError(t, err)
	assert.Len(t, scope.ProfileIDs, len(o.profiles()))
	assert.Equal(t, o.admin.ID, scope.ProfileIDs[0])
}

func TestResolveScope_UnknownRole(t *testing.T) {
	p := profile("ghost", domain.UserRoleType("intern"))
	_, err := pipeline.NewScopeResolver().Resolve(p, pipeline.NewDirectory(nil, nil))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDirectory_Lookup(t *testing.T) {
	o := newOrg()
	dir := pipeline.NewDirectory(o.profiles(), nil)

	p, ok := dir.ProfileByUserID("am-dept")
	require.True(t, ok)
	assert.Equal(t, o.amDept.ID, p.ID)

	_, ok = dir.Profile(uuid.New())
	assert.False(t, ok)
}
