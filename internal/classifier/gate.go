// gate.go bird/no-bird decision over raw classification results
package classifier

import "strings"

// Decision is the gate's verdict for one capture session.
type Decision int

const (
	// DecisionUndetermined means classification failed; artifacts are still
	// persisted but no thumbnail is derived.
	DecisionUndetermined Decision = iota
	// DecisionNoBird means the still was classified below threshold or as a
	// label outside the accepted set.
	DecisionNoBird
	// DecisionBird means an accepted label at or above the confidence
	// threshold.
	DecisionBird
)

// String returns a log-friendly name for the decision.
func (d Decision) String() string {
	switch d {
	case DecisionBird:
		return "bird"
	case DecisionNoBird:
		return "no-bird"
	default:
		return "undetermined"
	}
}

// Gate maps a raw classification result to a binary bird/no-bird decision
// using a configured accepted label set and minimum confidence. Judging is a
// pure function of the inputs so the gate can be tuned from configuration
// without touching pipeline logic.
type Gate struct {
	accepted  map[string]bool
	threshold float64
}

// NewGate builds a gate from the accepted label list and confidence
// threshold. Labels are matched case-insensitively on their primary name,
// ignoring ImageNet synonym suffixes ("great grey owl, great gray owl, ...").
func NewGate(acceptedLabels []string, threshold float64) *Gate {
	accepted := make(map[string]bool, len(acceptedLabels))
	for _, label := range acceptedLabels {
		accepted[normalizeLabel(label)] = true
	}
	return &Gate{accepted: accepted, threshold: threshold}
}

// Judge returns DecisionBird iff the label is in the accepted set and the
// confidence meets the threshold.
func (g *Gate) Judge(result Result) Decision {
	if g.accepted[normalizeLabel(result.Label)] && result.Confidence >= g.threshold {
		return DecisionBird
	}
	return DecisionNoBird
}

// JudgeResult folds a classification error into the decision: a failed
// classification is undetermined, never fatal.
func (g *Gate) JudgeResult(result Result, err error) Decision {
	if err != nil {
		return DecisionUndetermined
	}
	return g.Judge(result)
}

// Threshold returns the configured confidence threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// normalizeLabel lowercases a label and strips synonym suffixes.
func normalizeLabel(label string) string {
	if i := strings.IndexByte(label, ','); i >= 0 {
		label = label[:i]
	}
	return strings.ToLower(strings.TrimSpace(label))
}
