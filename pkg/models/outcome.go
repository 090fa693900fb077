package models

import "fmt"

// Outcome is the terminal classification of one pipeline run.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeAccepted
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "ACCEPTED"
	case OutcomeRejected:
		return "REJECTED"
	default:
		return "FAILED"
	}
}

func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "ACCEPTED":
		return OutcomeAccepted, true
	case "REJECTED":
		return OutcomeRejected, true
	case "FAILED":
		return OutcomeFailed, true
	default:
		return OutcomeFailed, false
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, ok := ParseOutcome(string(text))
	if !ok {
		return fmt.Errorf("unknown outcome %q", string(text))
	}
	*o = parsed
	return nil
}
