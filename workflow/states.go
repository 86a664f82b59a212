package workflow

//Status represent order line status
type Status string

//StatusTechnicalProblem represent order line status
const StatusTechnicalProblem Status = "technical_problem"

//StatusInProgress represent order line status
const StatusInProgress Status = "in_progress"

//StatusAwaitingValidation represent order line status
const StatusAwaitingValidation Status = "awaiting_validation"

//StatusModification represent order line status
const StatusModification Status = "modification"

//StatusDone represent order line status
const StatusDone Status = "done"

//StatusDelivered represent order line status
const StatusDelivered Status = "delivered"

//StatusCancelled represent order line status
const StatusCancelled Status = "cancelled"

//Terminal reports if the status stops all tracking (reminders included)
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

//Valid reports if s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusTechnicalProblem, StatusInProgress, StatusAwaitingValidation,
		StatusModification, StatusDone, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

//Stage represent production stage, empty value means not staged yet
type Stage string

//StageNone represent unset stage
const StageNone Stage = ""

//StageConception represent production stage
const StageConception Stage = "conception"

//StagePrePress represent production stage
const StagePrePress Stage = "pre_press"

//StageGraphicWork represent production stage
const StageGraphicWork Stage = "graphic_work"

//StagePrinting represent production stage
const StagePrinting Stage = "printing"

//StageFinishing represent production stage
const StageFinishing Stage = "finishing"

//StageExternalProduction represent production stage
const StageExternalProduction Stage = "external_production"

//StageQualityControl represent production stage
const StageQualityControl Stage = "quality_control"

//Valid reports if s is a known stage (empty is valid, means none)
func (s Stage) Valid() bool {
	switch s {
	case StageNone, StageConception, StagePrePress, StageGraphicWork,
		StagePrinting, StageFinishing, StageExternalProduction, StageQualityControl:
		return true
	}
	return false
}

//stageChain is the one-step path the design role walks
var stageChain = []Stage{StageConception, StagePrePress, StageGraphicWork, StagePrinting, StageFinishing}

//NextStage returns the stage following s on the design chain, StageNone if off chain or last
func NextStage(s Stage) Stage {
	for i, c := range stageChain {
		if c == s && i+1 < len(stageChain) {
			return stageChain[i+1]
		}
	}
	return StageNone
}

//salesStages are the stages the sales role may set directly
var salesStages = map[Stage]bool{
	StageConception:  true,
	StagePrePress:    true,
	StageGraphicWork: true,
	StagePrinting:    true,
	StageFinishing:   true,
}

//Workshop represent the production track of a line, empty value means unassigned
type Workshop string

//WorkshopNone represent unassigned workshop
const WorkshopNone Workshop = ""

//WorkshopSmallFormat represent workshop
const WorkshopSmallFormat Workshop = "small_format"

//WorkshopLargeFormat represent workshop
const WorkshopLargeFormat Workshop = "large_format"

//WorkshopSubcontracting represent workshop
const WorkshopSubcontracting Workshop = "subcontracting"

//WorkshopCreativeService represent workshop
const WorkshopCreativeService Workshop = "creative_service"

//Role represent an actor role, closed set
type Role string

//RoleSales represent actor role
const RoleSales Role = "sales"

//RoleDesign represent actor role
const RoleDesign Role = "design"

//RoleWorkshop represent actor role
const RoleWorkshop Role = "workshop"

//RoleAdmin represent actor role
const RoleAdmin Role = "admin"

//Valid reports if r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSales, RoleDesign, RoleWorkshop, RoleAdmin:
		return true
	}
	return false
}

//Channel returns the broadcast channel name of the role (role-sales etc)
func (r Role) Channel() string {
	return "role-" + string(r)
}

//Express represent the express marker of a line
type Express string

//ExpressYes represent express marker
const ExpressYes Express = "yes"

//ExpressNo represent express marker
const ExpressNo Express = "no"

//ExpressPending represent express marker
const ExpressPending Express = "pending"
