package engine

// Approver recorded for label overrides.
const overrideApprover = "label_holder"

// ApplyOverride forces result to COMPLIANT when one of labels is in allowed.
// The first matching label, in label order, is returned. Per-rule results
// are left untouched. Applying it again keeps the first override record, so
// the call is idempotent.
func ApplyOverride(result *RunResult, labels, allowed []string) (string, bool) {
	label, ok := firstAllowed(labels, allowed)
	if !ok {
		return "", false
	}

	if result.Metadata.Override == nil || !result.Metadata.Override.Active {
		result.Metadata.Override = &Override{
			Active:         true,
			Reason:         "Label present: " + label,
			OriginalStatus: result.OverallStatus,
			Approver:       overrideApprover,
		}
	}
	result.OverallStatus = StatusCompliant
	return label, true
}

func firstAllowed(labels, allowed []string) (string, bool) {
	for _, l := range labels {
		for _, a := range allowed {
			if l == a {
				return l, true
			}
		}
	}
	return "", false
}
