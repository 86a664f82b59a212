package workflow

import "fmt"

//Reason is the discriminated rejection category
type Reason string

//ReasonRoleForbidden - the actor role may never perform this change
const ReasonRoleForbidden Reason = "role_forbidden"

//ReasonInvalidTarget - the requested target is not reachable for this actor
const ReasonInvalidTarget Reason = "invalid_target"

//ReasonWrongCurrentState - the line is not in a state the change starts from
const ReasonWrongCurrentState Reason = "wrong_current_state"

//ReasonMissingPrerequisite - a completion prerequisite does not hold
const ReasonMissingPrerequisite Reason = "missing_prerequisite"

//Prerequisite sub reasons
const (
	DetailMissingFinishing = "missing_finishing"
	DetailMissingAgent     = "missing_agent"
	DetailWrongStage       = "wrong_stage"
	DetailMissingIssue     = "missing_issue"
)

//Rejection is a structured refusal of a transition request.
//It is a value, not an error: validation never partially mutates anything.
type Rejection struct {
	Reason  Reason `json:"reason"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message"`
}

func (r *Rejection) String() string {
	if r.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", r.Reason, r.Detail, r.Message)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func reject(reason Reason, detail, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Detail: detail, Message: fmt.Sprintf(format, args...)}
}

//Validate checks a requested transition against the current line and the
//actor role. Returns nil when allowed, a Rejection otherwise.
//Stage and status are validated independently; completion prerequisites are
//checked against the stage as it will be after the request applies.
func Validate(current OrderLine, req TransitionRequest, actor Role) *Rejection {
	if !actor.Valid() {
		return reject(ReasonRoleForbidden, "", "unknown role %q", actor)
	}
	if req.Stage == nil && req.Status == nil {
		return reject(ReasonInvalidTarget, "", "nothing requested")
	}
	if current.Status.Terminal() {
		return reject(ReasonWrongCurrentState, "", "line is %s, no further changes", current.Status)
	}

	if req.Stage != nil && *req.Stage != current.Stage {
		if r := validateStage(current, *req.Stage, actor); r != nil {
			return r
		}
	}
	if req.Status != nil && *req.Status != current.Status {
		if r := validateStatus(current, req, actor); r != nil {
			return r
		}
	}
	return nil
}

func validateStage(current OrderLine, target Stage, actor Role) *Rejection {
	if !target.Valid() || target == StageNone {
		return reject(ReasonInvalidTarget, "", "unknown stage %q", target)
	}

	switch actor {
	case RoleWorkshop:
		//workshop never touches stages, whatever the current value
		return reject(ReasonRoleForbidden, "", "workshop role may not change stage")
	case RoleSales:
		if !salesStages[target] {
			return reject(ReasonInvalidTarget, "", "sales role may not set stage %s", target)
		}
	case RoleDesign:
		//one step along the chain only
		if next := NextStage(current.Stage); next == StageNone || next != target {
			return reject(ReasonInvalidTarget, "", "design role may only advance %s by one step", current.Stage)
		}
	case RoleAdmin:
		//any valid stage
	}

	//agent gates apply to every role
	switch target {
	case StagePrinting, StageExternalProduction:
		if current.Designer == "" {
			return reject(ReasonMissingPrerequisite, DetailMissingAgent, "no designer assigned")
		}
	case StageFinishing:
		if current.PrintAgent == "" {
			return reject(ReasonMissingPrerequisite, DetailMissingAgent, "no print agent assigned")
		}
	}
	return nil
}

func validateStatus(current OrderLine, req TransitionRequest, actor Role) *Rejection {
	target := *req.Status
	if !target.Valid() {
		return reject(ReasonInvalidTarget, "", "unknown status %q", target)
	}

	//stage the line will have once the request applies
	stage := current.Stage
	if req.Stage != nil {
		stage = *req.Stage
	}

	switch target {
	case StatusDelivered:
		if actor == RoleWorkshop || actor == RoleDesign {
			return reject(ReasonRoleForbidden, "", "%s role may not deliver", actor)
		}
		if current.Status != StatusDone {
			return reject(ReasonWrongCurrentState, "", "must be done first")
		}

	case StatusDone:
		if r := validateDone(current, stage, actor); r != nil {
			return r
		}

	case StatusTechnicalProblem:
		if req.Issue == "" {
			return reject(ReasonMissingPrerequisite, DetailMissingIssue, "technical problem needs an issue description")
		}
	}
	return nil
}

//validateDone checks the workshop specific completion gates
func validateDone(current OrderLine, stage Stage, actor Role) *Rejection {
	switch current.Workshop {
	case WorkshopSubcontracting:
		if stage != StageQualityControl {
			return reject(ReasonMissingPrerequisite, DetailWrongStage, "subcontracting completes from quality_control, not %s", stage)
		}
		if !current.HasFinishingItems {
			return reject(ReasonMissingPrerequisite, DetailMissingFinishing, "no finishing items attached")
		}
	case WorkshopSmallFormat, WorkshopLargeFormat:
		if !current.HasFinishingItems {
			return reject(ReasonMissingPrerequisite, DetailMissingFinishing, "no finishing items attached")
		}
		if stage != StageFinishing {
			return reject(ReasonMissingPrerequisite, DetailWrongStage, "completes from finishing, not %s", stage)
		}
	case WorkshopCreativeService:
		//design bypass, observed behavior kept as is
		if actor == RoleDesign {
			return nil
		}
		if stage != StageFinishing {
			return reject(ReasonMissingPrerequisite, DetailWrongStage, "completes from finishing, not %s", stage)
		}
	}
	//unassigned workshop, no extra gate
	return nil
}
