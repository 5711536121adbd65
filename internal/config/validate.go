package config

// ValidationResult lists every finding of one validation pass.
type ValidationResult struct {
	Valid       bool         `yaml:"valid" json:"valid"`
	Errors      []FieldError `yaml:"errors,omitempty" json:"errors,omitempty"`
	Warnings    []FieldError `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	RuleVersion string       `yaml:"rule_version" json:"rule_version"`
}

// Validator evaluates a RuleSet. It holds no configuration state.
type Validator struct {
	rules RuleSet
}

// NewValidator creates a validator for the given rules.
func NewValidator(rules RuleSet) *Validator {
	return &Validator{rules: rules}
}

// RuleSet returns the rules in use.
func (v *Validator) RuleSet() RuleSet {
	return v.rules
}

// Validate runs every rule against c.
func (v *Validator) Validate(c ForceLayoutConfig) ValidationResult {
	res := ValidationResult{RuleVersion: v.rules.Version}
	for _, rule := range v.rules.Rules {
		for _, fe := range rule.Check(&c) {
			if fe.Field == "" {
				fe.Field = rule.Field
			}
			if fe.Severity == SeverityWarning {
				res.Warnings = append(res.Warnings, fe)
			} else {
				res.Errors = append(res.Errors, fe)
			}
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// ValidatePatch validates base with p applied and returns the candidate.
// Neither base nor p is modified.
func (v *Validator) ValidatePatch(base ForceLayoutConfig, p Patch) (ForceLayoutConfig, ValidationResult) {
	candidate, decodeErrs := applyPatch(base, p)
	res := v.Validate(candidate)
	if len(decodeErrs) > 0 {
		res.Errors = append(decodeErrs, res.Errors...)
		res.Valid = false
	}
	return candidate, res
}
