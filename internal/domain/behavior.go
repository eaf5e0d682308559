package domain

// BehaviorAlpha is the exponential moving average rate for behavior
// profile updates.
const BehaviorAlpha = 0.1

// BehaviorProfile holds the learned per-category interaction ratios.
// All ratios stay within [0,1].
type BehaviorProfile struct {
	BatchAcceptance float64 `json:"batch_acceptance"`
	InteractionRate float64 `json:"interaction_rate"`
	DismissRate     float64 `json:"dismiss_rate"`
	Samples         int     `json:"samples"`
}

// DefaultBehaviorProfile is the neutral starting point for a category
// with no observed behavior.
func DefaultBehaviorProfile() BehaviorProfile {
	return BehaviorProfile{
		BatchAcceptance: 0.5,
		InteractionRate: 0.5,
		DismissRate:     0.5,
	}
}

// Valid reports whether every ratio is inside [0,1].
func (p BehaviorProfile) Valid() bool {
	for _, v := range []float64{p.BatchAcceptance, p.InteractionRate, p.DismissRate} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return p.Samples >= 0
}

// ObserveBatchOutcome blends a batch/no-batch decision into the profile
// and returns the updated copy.
func (p BehaviorProfile) ObserveBatchOutcome(batched bool) BehaviorProfile {
	p.BatchAcceptance = ema(p.BatchAcceptance, boolObservation(batched))
	p.Samples++
	return p
}

// ObserveInteraction blends a click/action event into the profile.
func (p BehaviorProfile) ObserveInteraction(interacted bool) BehaviorProfile {
	p.InteractionRate = ema(p.InteractionRate, boolObservation(interacted))
	p.Samples++
	return p
}

// ObserveDismissal blends a dismiss event into the profile.
func (p BehaviorProfile) ObserveDismissal(dismissed bool) BehaviorProfile {
	p.DismissRate = ema(p.DismissRate, boolObservation(dismissed))
	p.Samples++
	return p
}

// BatchPreference derives the learned batching preference: a category
// the user tends to dismiss is a category worth batching.
func (p BehaviorProfile) BatchPreference() float64 {
	return clamp01(0.5*p.BatchAcceptance + 0.5*p.DismissRate)
}

func ema(prev, observation float64) float64 {
	return clamp01((1-BehaviorAlpha)*prev + BehaviorAlpha*observation)
}

func boolObservation(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
