package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Step is the workflow phase of a retro. Any step may follow any other.
type Step string

const (
	StepWriting   Step = "Writing"
	StepGrouping  Step = "Grouping"
	StepVoting    Step = "Voting"
	StepReviewing Step = "Reviewing"
)

var Steps = []Step{StepWriting, StepGrouping, StepVoting, StepReviewing}

func (s Step) Valid() bool {
	for _, known := range Steps {
		if s == known {
			return true
		}
	}
	return false
}

func (s Step) String() string { return string(s) }

// ParseStep accepts the canonical names case-insensitively.
func ParseStep(raw string) (Step, error) {
	raw = strings.TrimSpace(raw)
	for _, known := range Steps {
		if strings.EqualFold(raw, string(known)) {
			return known, nil
		}
	}
	return "", NewError(CodeValidation, "domain.parse_step", fmt.Sprintf("unknown step %q", raw), nil)
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStep(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
