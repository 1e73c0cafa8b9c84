// Package stage implements the linear development workflow a project moves
// through, including the cost-approval gate between Prototype and Red Seal.
package stage

import (
	"errors"
	"fmt"

	"github.com/solefab/rndtrack/internal/rnd/entity"
)

var (
	// ErrTerminal 已到最后阶段，无法继续推进
	ErrTerminal = errors.New("stage: project already complete")
	// ErrGateUnsatisfied 样品 → 红封样需先通过核价审批
	ErrGateUnsatisfied = errors.New("stage: cost approval required before Red Seal")
	// ErrUnknownStage 非法阶段值
	ErrUnknownStage = errors.New("stage: unknown stage")
)

type definition struct {
	stage    entity.Stage
	progress int
}

// 顺序即阶段序号 0-7
var stages = []definition{
	{entity.StageIdeaSubmitted, 10},
	{entity.StageCostingPending, 20},
	{entity.StageCostingReceived, 35},
	{entity.StagePrototype, 50},
	{entity.StageRedSeal, 65},
	{entity.StageGreenSeal, 80},
	{entity.StageFinalApproved, 95},
	{entity.StagePOIssued, 100},
}

// All returns the stages in workflow order.
func All() []entity.Stage {
	out := make([]entity.Stage, len(stages))
	for i, d := range stages {
		out[i] = d.stage
	}
	return out
}

// Index returns the display order of s, or -1 when s is not a known stage.
func Index(s entity.Stage) int {
	for i, d := range stages {
		if d.stage == s {
			return i
		}
	}
	return -1
}

// Parse validates a stage name.
func Parse(name string) (entity.Stage, error) {
	s := entity.Stage(name)
	if Index(s) < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return s, nil
}

// Progress returns the percent-complete weight for s. Unknown stages are 0.
func Progress(s entity.Stage) int {
	i := Index(s)
	if i < 0 {
		return 0
	}
	return stages[i].progress
}

// Current returns the project's stage, treating an empty value as the
// initial stage.
func Current(p entity.Project) entity.Stage {
	if p.Stage == "" {
		return entity.StageIdeaSubmitted
	}
	return p.Stage
}

// Next returns the stage after the project's current one.
func Next(p entity.Project) (entity.Stage, bool) {
	i := Index(Current(p))
	if i < 0 || i+1 >= len(stages) {
		return "", false
	}
	return stages[i+1].stage, true
}

// IsClosed reports whether the project reached Final Approved or PO Issued.
func IsClosed(p entity.Project) bool {
	return Index(Current(p)) >= Index(entity.StageFinalApproved)
}

// IsGated reports whether moving from the current stage requires cost
// approval.
func IsGated(p entity.Project) bool {
	next, ok := Next(p)
	return ok && Current(p) == entity.StagePrototype && next == entity.StageRedSeal
}

// GateSatisfied reports whether the project carries a cost approval.
func GateSatisfied(p entity.Project) bool {
	return p.CostApprovedAt != nil && p.FinalCost != nil
}

// Advance moves the project one stage forward. The input is not modified.
func Advance(p entity.Project) (entity.Project, error) {
	cur := Current(p)
	if Index(cur) < 0 {
		return p, fmt.Errorf("%w: %q", ErrUnknownStage, cur)
	}
	next, ok := Next(p)
	if !ok {
		return p, ErrTerminal
	}
	if IsGated(p) && !GateSatisfied(p) {
		return p, ErrGateUnsatisfied
	}
	p.Stage = next
	return p, nil
}

// StepStatus 阶段展示状态
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepCurrent   StepStatus = "current"
	StepUpcoming  StepStatus = "upcoming"
)

// Step 阶段进度条中的一格
type Step struct {
	Index    int          `json:"index"`
	Stage    entity.Stage `json:"stage"`
	Progress int          `json:"progress"`
	Status   StepStatus   `json:"status"`
}

// Steps lays out every stage relative to current.
func Steps(current entity.Stage) []Step {
	ci := Index(current)
	out := make([]Step, len(stages))
	for i, d := range stages {
		st := StepUpcoming
		switch {
		case i < ci:
			st = StepCompleted
		case i == ci:
			st = StepCurrent
		}
		out[i] = Step{Index: i, Stage: d.stage, Progress: d.progress, Status: st}
	}
	return out
}
