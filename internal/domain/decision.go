package domain

// AdmissionOutcome is the result of an admission check.
type AdmissionOutcome string

const (
	OutcomeAccepted AdmissionOutcome = "accepted"
	OutcomeRejected AdmissionOutcome = "rejected"
	OutcomeDeferred AdmissionOutcome = "deferred"
)

func (o AdmissionOutcome) String() string {
	return string(o)
}

// Decision carries the admission outcome and, for rejections, the rule
// that produced it.
type Decision struct {
	Outcome AdmissionOutcome
	Reason  string
}

func Accepted() Decision {
	return Decision{Outcome: OutcomeAccepted}
}

func Rejected(reason string) Decision {
	return Decision{Outcome: OutcomeRejected, Reason: reason}
}

func Deferred(reason string) Decision {
	return Decision{Outcome: OutcomeDeferred, Reason: reason}
}

func (d Decision) IsAccepted() bool {
	return d.Outcome == OutcomeAccepted
}
