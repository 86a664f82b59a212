package workflow

import (
	"testing"
)

func stageReq(s Stage) TransitionRequest {
	return TransitionRequest{Stage: &s}
}

func statusReq(s Status) TransitionRequest {
	return TransitionRequest{Status: &s}
}

func expectAllowed(t *testing.T, current OrderLine, req TransitionRequest, actor Role) {
	t.Helper()
	if rej := Validate(current, req, actor); rej != nil {
		t.Errorf("Expected allowed got %s", rej)
	}
}

func expectRejected(t *testing.T, current OrderLine, req TransitionRequest, actor Role, reason Reason, detail string) {
	t.Helper()
	rej := Validate(current, req, actor)
	if rej == nil {
		t.Errorf("Expected rejection %s/%s got allowed", reason, detail)
		return
	}
	if rej.Reason != reason {
		t.Errorf("Expected reason %s got %s (%s)", reason, rej.Reason, rej)
	}
	if detail != "" && rej.Detail != detail {
		t.Errorf("Expected detail %s got %s (%s)", detail, rej.Detail, rej)
	}
}

func TestWorkshopNeverChangesStage(t *testing.T) {
	//role_forbidden whatever the current or target stage
	for _, cur := range []Stage{StageNone, StageConception, StagePrinting, StageQualityControl} {
		for _, target := range []Stage{StageConception, StagePrePress, StageGraphicWork, StagePrinting, StageFinishing, StageExternalProduction, StageQualityControl} {
			if cur == target {
				continue
			}
			line := OrderLine{Status: StatusInProgress, Stage: cur, Designer: "d", PrintAgent: "p"}
			expectRejected(t, line, stageReq(target), RoleWorkshop, ReasonRoleForbidden, "")
		}
	}
}

func TestSalesStageTargets(t *testing.T) {
	line := OrderLine{Status: StatusInProgress, Designer: "d", PrintAgent: "p"}
	//from unset to conception
	expectAllowed(t, line, stageReq(StageConception), RoleSales)
	//any stage of the main chain
	line.Stage = StageConception
	expectAllowed(t, line, stageReq(StageFinishing), RoleSales)
	expectAllowed(t, line, stageReq(StagePrinting), RoleSales)
	//but not the off chain stages
	expectRejected(t, line, stageReq(StageQualityControl), RoleSales, ReasonInvalidTarget, "")
	expectRejected(t, line, stageReq(StageExternalProduction), RoleSales, ReasonInvalidTarget, "")
}

func TestDesignOneStepOnly(t *testing.T) {
	line := OrderLine{Status: StatusInProgress, Stage: StageConception, Designer: "d", PrintAgent: "p"}
	expectAllowed(t, line, stageReq(StagePrePress), RoleDesign)
	//skipping is rejected
	expectRejected(t, line, stageReq(StageGraphicWork), RoleDesign, ReasonInvalidTarget, "")
	expectRejected(t, line, stageReq(StagePrinting), RoleDesign, ReasonInvalidTarget, "")
	//backwards is rejected
	line.Stage = StagePrinting
	expectRejected(t, line, stageReq(StageConception), RoleDesign, ReasonInvalidTarget, "")
	//printing to finishing is the one legal step from printing
	expectAllowed(t, line, stageReq(StageFinishing), RoleDesign)
	//off the end of the chain there is no next step
	line.Stage = StageFinishing
	expectRejected(t, line, stageReq(StageQualityControl), RoleDesign, ReasonInvalidTarget, "")
}

func TestAgentGates(t *testing.T) {
	//no designer assigned, printing is out for everyone
	line := OrderLine{Status: StatusInProgress, Stage: StageGraphicWork, Workshop: WorkshopLargeFormat, PrintAgent: "p"}
	expectRejected(t, line, stageReq(StagePrinting), RoleSales, ReasonMissingPrerequisite, DetailMissingAgent)
	expectRejected(t, line, stageReq(StageExternalProduction), RoleAdmin, ReasonMissingPrerequisite, DetailMissingAgent)
	line.Designer = "d"
	expectAllowed(t, line, stageReq(StagePrinting), RoleSales)

	//no print agent, finishing is gated
	line = OrderLine{Status: StatusInProgress, Stage: StagePrinting, Designer: "d"}
	expectRejected(t, line, stageReq(StageFinishing), RoleSales, ReasonMissingPrerequisite, DetailMissingAgent)
	line.PrintAgent = "p"
	expectAllowed(t, line, stageReq(StageFinishing), RoleSales)
}

func TestDeliveredRules(t *testing.T) {
	line := OrderLine{Status: StatusDone, Stage: StageFinishing}
	expectAllowed(t, line, statusReq(StatusDelivered), RoleSales)
	expectAllowed(t, line, statusReq(StatusDelivered), RoleAdmin)
	//workshop and design never deliver
	expectRejected(t, line, statusReq(StatusDelivered), RoleWorkshop, ReasonRoleForbidden, "")
	expectRejected(t, line, statusReq(StatusDelivered), RoleDesign, ReasonRoleForbidden, "")
	//must be done first
	line.Status = StatusInProgress
	expectRejected(t, line, statusReq(StatusDelivered), RoleSales, ReasonWrongCurrentState, "")
}

func TestDoneSubcontracting(t *testing.T) {
	line := OrderLine{
		Status:            StatusInProgress,
		Workshop:          WorkshopSubcontracting,
		HasFinishingItems: true,
	}
	//always rejected outside quality control
	for _, s := range []Stage{StageConception, StagePrinting, StageFinishing} {
		line.Stage = s
		expectRejected(t, line, statusReq(StatusDone), RoleWorkshop, ReasonMissingPrerequisite, DetailWrongStage)
	}
	line.Stage = StageQualityControl
	expectAllowed(t, line, statusReq(StatusDone), RoleWorkshop)
	//quality control alone is not enough without finishing items
	line.HasFinishingItems = false
	expectRejected(t, line, statusReq(StatusDone), RoleWorkshop, ReasonMissingPrerequisite, DetailMissingFinishing)
}

func TestDoneFinishingGate(t *testing.T) {
	//small format without finishing items can never reach done
	line := OrderLine{Status: StatusInProgress, Stage: StageFinishing, Workshop: WorkshopSmallFormat}
	expectRejected(t, line, statusReq(StatusDone), RoleWorkshop, ReasonMissingPrerequisite, DetailMissingFinishing)
	line.HasFinishingItems = true
	expectAllowed(t, line, statusReq(StatusDone), RoleWorkshop)
	//and the stage must be finishing
	line.Stage = StagePrinting
	expectRejected(t, line, statusReq(StatusDone), RoleWorkshop, ReasonMissingPrerequisite, DetailWrongStage)
}

func TestDoneCreativeService(t *testing.T) {
	line := OrderLine{Status: StatusInProgress, Stage: StageGraphicWork, Workshop: WorkshopCreativeService}
	//design bypass, observed behavior
	expectAllowed(t, line, statusReq(StatusDone), RoleDesign)
	//everyone else needs the finishing stage
	expectRejected(t, line, statusReq(StatusDone), RoleSales, ReasonMissingPrerequisite, DetailWrongStage)
	line.Stage = StageFinishing
	expectAllowed(t, line, statusReq(StatusDone), RoleSales)
}

func TestDoneNoWorkshop(t *testing.T) {
	//no workshop, no extra gate
	line := OrderLine{Status: StatusInProgress, Stage: StageConception}
	expectAllowed(t, line, statusReq(StatusDone), RoleSales)
}

func TestTechnicalProblemNeedsIssue(t *testing.T) {
	line := OrderLine{Status: StatusInProgress, Stage: StagePrinting}
	expectRejected(t, line, statusReq(StatusTechnicalProblem), RoleWorkshop, ReasonMissingPrerequisite, DetailMissingIssue)
	req := statusReq(StatusTechnicalProblem)
	req.Issue = "laminator jammed"
	expectAllowed(t, line, req, RoleWorkshop)
}

func TestTerminalLineRejectsEverything(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCancelled} {
		line := OrderLine{Status: s, Stage: StageFinishing, Designer: "d", PrintAgent: "p"}
		expectRejected(t, line, stageReq(StageConception), RoleAdmin, ReasonWrongCurrentState, "")
		expectRejected(t, line, statusReq(StatusInProgress), RoleAdmin, ReasonWrongCurrentState, "")
	}
}

func TestEmptyRequest(t *testing.T) {
	line := OrderLine{Status: StatusInProgress}
	expectRejected(t, line, TransitionRequest{}, RoleAdmin, ReasonInvalidTarget, "")
}

func TestCombinedStageAndStatus(t *testing.T) {
	//prerequisites see the stage as it will be after the request applies
	line := OrderLine{
		Status:            StatusInProgress,
		Stage:             StagePrinting,
		Workshop:          WorkshopSmallFormat,
		HasFinishingItems: true,
		Designer:          "d",
		PrintAgent:        "p",
	}
	fin := StageFinishing
	done := StatusDone
	expectAllowed(t, line, TransitionRequest{Stage: &fin, Status: &done}, RoleSales)
}
