package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/pipeline-api/internal/domain"
)

// Action names a stage-transition action
type Action string

const (
	ActionCreate  Action = "create"
	ActionAdvance Action = "advance"
	ActionWin     Action = "win"
	ActionLose    Action = "lose"
	ActionReopen  Action = "reopen"
	ActionHold    Action = "hold"
	ActionResume  Action = "resume"
)

// Actor identifies who performs a transition
type Actor struct {
	ID   string
	Name string
}

// Step is the outcome of a planned transition: the updated opportunity and
// the history entry to append in the same unit of work
type Step struct {
	Action      Action
	Opportunity domain.Opportunity
	Entry       domain.StageHistoryEntry
}

// Machine plans opportunity transitions against a catalog.
// It never mutates its input; callers persist the returned Step.
type Machine struct {
	catalog    *Catalog
	thresholds Thresholds
}

// NewMachine creates a state machine for the catalog
func NewMachine(c *Catalog, t Thresholds) *Machine {
	return &Machine{catalog: c, thresholds: t}
}

// Catalog returns the catalog the machine plans against
func (m *Machine) Catalog() *Catalog {
	return m.catalog
}

func (m *Machine) step(action Action, opp domain.Opportunity, from *string, actor Actor, note string, now time.Time) *Step {
	return &Step{
		Action:      action,
		Opportunity: opp,
		Entry: domain.StageHistoryEntry{
			OpportunityID: opp.ID,
			FromStage:     from,
			ToStage:       opp.Stage,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			Note:          note,
			ChangedAt:     now,
		},
	}
}

func closeDate(now time.Time) *time.Time {
	d := calendarDate(now)
	return &d
}

// Create places a new opportunity in the first catalog stage
func (m *Machine) Create(opp domain.Opportunity, actor Actor, now time.Time) (*Step, error) {
	first := m.catalog.First()

	opp.Stage = first.Key
	opp.StageEnteredAt = now
	opp.Probability = first.Probability
	opp.Status = domain.OpportunityStatusOpen
	opp.ActualCloseDate = nil
	opp.Version = 1
	if opp.CategoryLocked && (!opp.ForecastCategory.IsValid() || opp.ForecastCategory == domain.ForecastClosed) {
		return nil, domain.InvalidArgument("forecast category %q cannot be assigned to an open opportunity", opp.ForecastCategory)
	}
	opp.ForecastCategory = Classify(&opp, m.thresholds)

	return m.step(ActionCreate, opp, nil, actor, "Opportunity created", now), nil
}

func (m *Machine) currentStage(opp *domain.Opportunity) (domain.Stage, int, error) {
	stage, err := m.catalog.Lookup(opp.Stage)
	if err != nil {
		return domain.Stage{}, 0, err
	}
	idx, _ := m.catalog.Order(stage.Key)
	return stage, idx, nil
}

// Advance moves an open opportunity forward to a later open stage
func (m *Machine) Advance(opp domain.Opportunity, to string, actor Actor, note string, now time.Time) (*Step, error) {
	current, currentIdx, err := m.currentStage(&opp)
	if err != nil {
		return nil, err
	}
	target, err := m.catalog.Lookup(to)
	if err != nil {
		return nil, domain.InvalidArgument("unknown target stage %q", to)
	}
	if target.IsTerminal() {
		return nil, domain.InvalidArgument("stage %q is terminal, use win or lose", target.Key)
	}
	if opp.Status != domain.OpportunityStatusOpen {
		return nil, domain.Conflict("opportunity %s is %s, only open opportunities can advance", opp.ID, opp.Status)
	}
	targetIdx, _ := m.catalog.Order(target.Key)
	if targetIdx <= currentIdx {
		return nil, domain.Conflict("cannot move opportunity %s from %q back to %q", opp.ID, current.Key, target.Key)
	}

	from := current.Key
	opp.Stage = target.Key
	opp.StageEnteredAt = now
	opp.Probability = target.Probability
	opp.ForecastCategory = Classify(&opp, m.thresholds)

	return m.step(ActionAdvance, opp, &from, actor, note, now), nil
}

func (m *Machine) requireClosable(opp *domain.Opportunity) (domain.Stage, error) {
	current, _, err := m.currentStage(opp)
	if err != nil {
		return domain.Stage{}, err
	}
	if !opp.Status.IsActive() || current.IsTerminal() {
		return domain.Stage{}, domain.Conflict("opportunity %s is already closed (%s)", opp.ID, opp.Status)
	}
	return current, nil
}

// MarkWon closes an open opportunity as won
func (m *Machine) MarkWon(opp domain.Opportunity, actor Actor, note string, now time.Time) (*Step, error) {
	current, err := m.requireClosable(&opp)
	if err != nil {
		return nil, err
	}

	from := current.Key
	opp.Stage = m.catalog.Won().Key
	opp.StageEnteredAt = now
	opp.Probability = 100
	opp.Status = domain.OpportunityStatusWon
	opp.ForecastCategory = domain.ForecastClosed
	opp.ActualCloseDate = closeDate(now)
	opp.LossReason = ""
	opp.LossReasonCategory = nil

	if note == "" {
		note = "Opportunity won"
	}
	return m.step(ActionWin, opp, &from, actor, note, now), nil
}

// MarkLost closes an open opportunity as lost; a reason is required
func (m *Machine) MarkLost(opp domain.Opportunity, category domain.LossReasonCategory, reason string, actor Actor, now time.Time) (*Step, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.InvalidArgument("a loss reason is required")
	}
	if category == "" {
		category = domain.LossReasonOther
	}
	if !category.IsValid() {
		return nil, domain.InvalidArgument("unknown loss reason category %q", category)
	}

	current, err := m.requireClosable(&opp)
	if err != nil {
		return nil, err
	}

	from := current.Key
	opp.Stage = m.catalog.Lost().Key
	opp.StageEnteredAt = now
	opp.Probability = 0
	opp.Status = domain.OpportunityStatusLost
	opp.ForecastCategory = domain.ForecastClosed
	opp.ActualCloseDate = closeDate(now)
	opp.LossReason = reason
	opp.LossReasonCategory = &category

	return m.step(ActionLose, opp, &from, actor, fmt.Sprintf("[%s] %s", category, reason), now), nil
}

// Reopen returns a lost opportunity to the first stage as a new explicit transition
func (m *Machine) Reopen(opp domain.Opportunity, actor Actor, note string, now time.Time) (*Step, error) {
	current, _, err := m.currentStage(&opp)
	if err != nil {
		return nil, err
	}
	if opp.Status != domain.OpportunityStatusLost || !current.IsLost {
		return nil, domain.Conflict("only lost opportunities can be reopened, %s is %s", opp.ID, opp.Status)
	}

	first := m.catalog.First()
	from := current.Key
	opp.Stage = first.Key
	opp.StageEnteredAt = now
	opp.Probability = first.Probability
	opp.Status = domain.OpportunityStatusOpen
	opp.ActualCloseDate = nil
	opp.LossReason = ""
	opp.LossReasonCategory = nil
	opp.CategoryLocked = false
	opp.ForecastCategory = Classify(&opp, m.thresholds)

	if note == "" {
		note = "Opportunity reopened"
	}
	return m.step(ActionReopen, opp, &from, actor, note, now), nil
}

// Hold parks an open opportunity without changing its stage
func (m *Machine) Hold(opp domain.Opportunity, actor Actor, note string, now time.Time) (*Step, error) {
	if _, _, err := m.currentStage(&opp); err != nil {
		return nil, err
	}
	if opp.Status != domain.OpportunityStatusOpen {
		return nil, domain.Conflict("only open opportunities can be put on hold, %s is %s", opp.ID, opp.Status)
	}

	from := opp.Stage
	opp.Status = domain.OpportunityStatusOnHold
	if note == "" {
		note = "Put on hold"
	}
	return m.step(ActionHold, opp, &from, actor, note, now), nil
}

// Resume reactivates an opportunity that is on hold
func (m *Machine) Resume(opp domain.Opportunity, actor Actor, note string, now time.Time) (*Step, error) {
	if _, _, err := m.currentStage(&opp); err != nil {
		return nil, err
	}
	if opp.Status != domain.OpportunityStatusOnHold {
		return nil, domain.Conflict("only opportunities on hold can be resumed, %s is %s", opp.ID, opp.Status)
	}

	from := opp.Stage
	opp.Status = domain.OpportunityStatusOpen
	if note == "" {
		note = "Resumed"
	}
	return m.step(ActionResume, opp, &from, actor, note, now), nil
}
