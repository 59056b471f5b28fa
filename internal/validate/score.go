package validate

// Reliability classifies how much of a plate number could be verified.
type Reliability int

// Reliability levels.
const (
	Invalid Reliability = -1
	Partial Reliability = 0 // lower band only
	Full    Reliability = 1
)

// String returns the level name.
func (r Reliability) String() string {
	switch r {
	case Full:
		return "full"
	case Partial:
		return "partial"
	default:
		return "invalid"
	}
}

// SuccessPolicy decides which reliability levels count as a successful read.
type SuccessPolicy string

// Success policies.
const (
	FullOnly      SuccessPolicy = "full-only"
	FullOrPartial SuccessPolicy = "full-or-partial"
)

// Succeeded reports whether r counts as success under p.
func (p SuccessPolicy) Succeeded(r Reliability) bool {
	switch p {
	case FullOrPartial:
		return r == Full || r == Partial
	default:
		return r == Full
	}
}

// Score applies the precedence: both bands valid is Full, a valid lower band
// alone is Partial, anything else is Invalid.
func Score(upperValid, lowerValid bool) Reliability {
	switch {
	case upperValid && lowerValid:
		return Full
	case lowerValid:
		return Partial
	default:
		return Invalid
	}
}

// Outcome is the validated reading of one plate.
type Outcome struct {
	Upper       string      `json:"upper"`
	Lower       string      `json:"lower"`
	UpperValid  bool        `json:"upper_valid"`
	LowerValid  bool        `json:"lower_valid"`
	Reliability Reliability `json:"reliability"`
	PlateText   string      `json:"plate_text"`
	Success     bool        `json:"success"`
}

// Validator turns raw band texts into an Outcome.
type Validator struct {
	cfg Config
}

// New creates a Validator.
func New(cfg Config) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Validator{cfg: cfg}, nil
}

// join concatenates the band texts; the separator is only used between two non-empty parts.
func (v *Validator) join(upper, lower string) string {
	if upper == "" || lower == "" {
		return upper + lower
	}
	return upper + v.cfg.Separator + lower
}

// Evaluate cleans, validates and scores the raw texts. The plate text is built
// even when validation fails so low-confidence reads stay inspectable.
func (v *Validator) Evaluate(rawUpper, rawLower string) Outcome {
	upper := CleanUpper(rawUpper)
	lower := CleanLower(rawLower, v.cfg.LowerMode)
	o := Outcome{
		Upper:      upper,
		Lower:      lower,
		UpperValid: ValidUpper(upper),
		LowerValid: ValidLower(lower),
		PlateText:  v.join(upper, lower),
	}
	o.Reliability = Score(o.UpperValid, o.LowerValid)
	o.Success = v.cfg.SuccessPolicy.Succeeded(o.Reliability)
	return o
}
