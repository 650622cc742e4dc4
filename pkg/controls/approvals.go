package controls

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gatekeeper-hq/gatekeeper/pkg/config"
)

// ApprovalsControlID identifies the approval enforcement control.
const ApprovalsControlID = "SEC-PR-004"

// ReviewApproved is the review state that counts towards a requirement.
const ReviewApproved = "APPROVED"

// defaultReviewerRole applies to reviewers without configured roles.
const defaultReviewerRole = "developer"

// ApprovalsControl checks that a change carries the configured approvals.
type ApprovalsControl struct{}

// NewApprovalsControl creates the control.
func NewApprovalsControl() *ApprovalsControl {
	return &ApprovalsControl{}
}

// ID implements Control.
func (c *ApprovalsControl) ID() string { return ApprovalsControlID }

type approvalOutcome struct {
	req       config.ApprovalRequirement
	valid     []string
	stale     []string
	satisfied bool
	missing   int
}

// Execute implements Control. Without configured requirements the change
// passes.
func (c *ApprovalsControl) Execute(ctx context.Context, cctx *Context) (*SignalSet, error) {
	out := NewSignalSet()

	var reqs []config.ApprovalRequirement
	var roles map[string][]string
	if cctx.Config != nil {
		reqs = cctx.Config.ApprovalRequirements
		roles = cctx.Config.ReviewerRoles
	}
	if len(reqs) == 0 {
		out.Signals["approvals.required"] = false
		out.Signals["approvals.satisfied"] = true
		return out, nil
	}

	var reviews []Review
	if cctx.Reviews != nil {
		var err error
		reviews, err = cctx.Reviews.Reviews(ctx, cctx.Repo, cctx.ChangeID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reviews: %w", err)
		}
	}

	allSatisfied := true
	unsatisfied := 0
	for _, req := range reqs {
		o := evaluateRequirement(req, reviews, roles, cctx.HeadSHA)
		if !o.satisfied {
			allSatisfied = false
			unsatisfied++
		}

		out.Signals["approvals."+req.Role+".satisfied"] = o.satisfied
		out.Signals["approvals."+req.Role+".count"] = len(o.valid)
		out.Signals["approvals."+req.Role+".required"] = req.Count
		out.Findings = append(out.Findings, approvalFinding(o))
	}

	out.Signals["approvals.required"] = true
	out.Signals["approvals.satisfied"] = allSatisfied
	out.Signals["approvals.unsatisfied_count"] = unsatisfied
	out.Signals["approvals.total_requirements"] = len(reqs)
	return out, nil
}

func evaluateRequirement(req config.ApprovalRequirement, reviews []Review, roles map[string][]string, headSHA string) approvalOutcome {
	valid := map[string]bool{}
	stale := map[string]bool{}
	for _, r := range reviews {
		if r.State != ReviewApproved || !hasRole(r.Reviewer, req.Role, roles) {
			continue
		}
		if r.CommitID != headSHA {
			stale[r.Reviewer] = true
		} else {
			valid[r.Reviewer] = true
		}
	}

	o := approvalOutcome{req: req, valid: sortedKeys(valid), stale: sortedKeys(stale)}
	o.satisfied = len(o.valid) >= req.Count
	if m := req.Count - len(o.valid); m > 0 {
		o.missing = m
	}
	return o
}

func approvalFinding(o approvalOutcome) Finding {
	severity := SeverityLow
	message := fmt.Sprintf("Approval requirement satisfied: %d %s approval(s)", o.req.Count, o.req.Role)
	if !o.satisfied {
		severity = SeverityMedium
		if o.req.Role == "security" || o.req.Role == "compliance" {
			severity = SeverityHigh
		}
		message = fmt.Sprintf("Missing %d required %s approval(s)", o.missing, o.req.Role)
	}

	return Finding{
		ControlID: ApprovalsControlID,
		RuleID:    ApprovalsControlID + "." + strings.ToUpper(o.req.Role),
		Severity:  severity,
		Message:   message,
		Evidence: map[string]interface{}{
			"requirement_role":  o.req.Role,
			"requirement_count": o.req.Count,
			"actual_count":      len(o.valid),
			"satisfied":         o.satisfied,
			"valid_reviewers":   o.valid,
			"stale_reviewers":   o.stale,
			"missing_count":     o.missing,
		},
	}
}

func hasRole(reviewer, role string, roles map[string][]string) bool {
	assigned, ok := roles[reviewer]
	if !ok {
		assigned = []string{defaultReviewerRole}
	}
	for _, r := range assigned {
		if r == role {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
