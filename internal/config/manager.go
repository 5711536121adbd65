package config

import (
	"sync"

	"taskmap/internal/logging"
	"taskmap/internal/notify"
)

// Source identifies who changed the configuration.
type Source string

const (
	SourceHost     Source = "host"     // explicit Merge/Replace from the host application
	SourceGovernor Source = "governor" // engine-initiated performance tuning
)

// ConfigChange is delivered to subscribers after every applied change.
type ConfigChange struct {
	Source   Source
	Changes  []FieldChange
	Previous ForceLayoutConfig
	Current  ForceLayoutConfig
}

// Fields returns the changed field paths.
func (c ConfigChange) Fields() []string {
	return ChangedFields(c.Changes)
}

// Manager owns the live configuration. Merges are all-or-nothing: a
// rejected merge leaves Get() identical to its pre-call value.
type Manager struct {
	mu        sync.RWMutex
	cfg       ForceLayoutConfig
	validator *Validator
	changes   notify.Dispatcher[ConfigChange]
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithRules injects a rule set in place of DefaultRules.
func WithRules(rs RuleSet) ManagerOption {
	return func(m *Manager) { m.validator = NewValidator(rs) }
}

// NewManager validates initial and returns a manager holding it.
func NewManager(initial ForceLayoutConfig, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{validator: NewValidator(DefaultRules())}
	for _, opt := range opts {
		opt(m)
	}
	if res := m.validator.Validate(initial); !res.Valid {
		return nil, &ConfigurationError{Errors: res.Errors, Warnings: res.Warnings}
	}
	m.cfg = initial
	return m, nil
}

// Get returns a copy of the live configuration.
func (m *Manager) Get() ForceLayoutConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Validator returns the validator in use.
func (m *Manager) Validator() *Validator {
	return m.validator
}

// governorOwned lists the performance fields only Tune may change. Host
// patches naming them are rejected; Replace still overwrites them whole.
var governorOwned = map[string]bool{
	"performance.throttle_level":        true,
	"performance.baseline_level":        true,
	"performance.collision_sample_rate": true,
	"performance.index_capacity":        true,
	"performance.theta_boost":           true,
	"performance.tick_rate_cap":         true,
	"performance.spacing_interval":      true,
	"performance.frozen":                true,
}

// GovernorOwned reports whether field is written only by the governor.
func GovernorOwned(field string) bool {
	return governorOwned[field]
}

func ownershipErrors(p Patch) []FieldError {
	flat := Patch{}
	for _, k := range p.Keys() {
		if sub, ok := p[k].(map[string]interface{}); ok {
			flatten(k, sub, flat)
			continue
		}
		flat[k] = p[k]
	}
	var errs []FieldError
	for _, k := range flat.Keys() {
		if governorOwned[k] {
			errs = append(errs, FieldError{Field: k, Message: "managed by the performance governor", Value: flat[k]})
		}
	}
	return errs
}

func (m *Manager) validatePatch(prev ForceLayoutConfig, p Patch) (ForceLayoutConfig, ValidationResult) {
	candidate, res := m.validator.ValidatePatch(prev, p)
	if errs := ownershipErrors(p); len(errs) > 0 {
		res.Errors = append(errs, res.Errors...)
		res.Valid = false
	}
	return candidate, res
}

// Validate reports what merging p would produce without applying it.
func (m *Manager) Validate(p Patch) ValidationResult {
	_, res := m.validatePatch(m.Get(), p)
	return res
}

// Merge applies p when the result validates. Warnings are returned in the
// result even on success. Governor-owned performance fields cannot be
// merged.
func (m *Manager) Merge(p Patch) (ValidationResult, error) {
	m.mu.Lock()
	prev := m.cfg
	candidate, res := m.validatePatch(prev, p)
	if !res.Valid {
		m.mu.Unlock()
		logging.Get(logging.CategoryConfig).Warn("config merge rejected: %d errors", len(res.Errors))
		return res, &ConfigurationError{Errors: res.Errors, Warnings: res.Warnings}
	}
	m.cfg = candidate
	m.mu.Unlock()

	for _, w := range res.Warnings {
		logging.Get(logging.CategoryConfig).Warn("config warning: %s", w.String())
	}
	m.publish(SourceHost, prev, candidate)
	return res, nil
}

// MergeYAML merges a partial YAML document.
func (m *Manager) MergeYAML(doc []byte) (ValidationResult, error) {
	p, err := PatchFromYAML(doc)
	if err != nil {
		fe := FieldError{Message: err.Error()}
		return ValidationResult{Errors: []FieldError{fe}, RuleVersion: m.validator.RuleSet().Version},
			&ConfigurationError{Errors: []FieldError{fe}}
	}
	return m.Merge(p)
}

// Replace swaps in a complete configuration (imports), governor-owned
// fields included. The governor adjusts from the imported values.
func (m *Manager) Replace(cfg ForceLayoutConfig) (ValidationResult, error) {
	res := m.validator.Validate(cfg)
	if !res.Valid {
		return res, &ConfigurationError{Errors: res.Errors, Warnings: res.Warnings}
	}
	m.mu.Lock()
	prev := m.cfg
	m.cfg = cfg
	m.mu.Unlock()
	m.publish(SourceHost, prev, cfg)
	return res, nil
}

// Tune lets the performance governor adjust the performance group. Any
// other group is left untouched regardless of what fn does. Invalid tuning
// is dropped and reported.
func (m *Manager) Tune(fn func(*PerformanceConfig)) bool {
	m.mu.Lock()
	prev := m.cfg
	perf := prev.Performance
	fn(&perf)
	candidate := prev
	candidate.Performance = perf
	if res := m.validator.Validate(candidate); !res.Valid {
		m.mu.Unlock()
		logging.Get(logging.CategoryConfig).Error("governor tuning rejected: %v", (&ConfigurationError{Errors: res.Errors}).Error())
		return false
	}
	m.cfg = candidate
	m.mu.Unlock()
	m.publish(SourceGovernor, prev, candidate)
	return true
}

// Subscribe registers fn for change notifications.
func (m *Manager) Subscribe(fn func(ConfigChange)) (unsubscribe func()) {
	return m.changes.Subscribe(fn)
}

func (m *Manager) publish(src Source, prev, cur ForceLayoutConfig) {
	changes := DiffForTransition(prev, cur)
	if len(changes) == 0 {
		return
	}
	logging.Get(logging.CategoryConfig).Debug("config changed by %s: %v", src, ChangedFields(changes))
	m.changes.Emit(ConfigChange{Source: src, Changes: changes, Previous: prev, Current: cur})
}
