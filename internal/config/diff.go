package config

import (
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// FieldChange is one field that differs between two configurations.
type FieldChange struct {
	Field string      `yaml:"field" json:"field"`
	From  interface{} `yaml:"from" json:"from"`
	To    interface{} `yaml:"to" json:"to"`
}

type diffReporter struct {
	path    cmp.Path
	changes []FieldChange
}

func (r *diffReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *diffReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	from, to := r.path.Last().Values()
	r.changes = append(r.changes, FieldChange{
		Field: yamlPath(r.path),
		From:  valueOf(from),
		To:    valueOf(to),
	})
}

func (r *diffReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func valueOf(v reflect.Value) interface{} {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// yamlPath renders a cmp path with yaml tag names: "forces.charge_strength".
func yamlPath(p cmp.Path) string {
	var parts []string
	for i, step := range p {
		sf, ok := step.(cmp.StructField)
		if !ok || i == 0 {
			continue
		}
		parent := p[i-1].Type()
		name := sf.Name()
		if parent.Kind() == reflect.Struct {
			if tag := parent.Field(sf.Index()).Tag.Get("yaml"); tag != "" {
				name = strings.Split(tag, ",")[0]
			}
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ".")
}

// DiffForTransition lists the fields that differ between a and b in
// declaration order.
func DiffForTransition(a, b ForceLayoutConfig) []FieldChange {
	var r diffReporter
	cmp.Equal(a, b, cmp.Reporter(&r))
	return r.changes
}

// ChangedFields returns only the field paths of changes.
func ChangedFields(changes []FieldChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Field)
	}
	return out
}

// RequiresReheat reports whether any change alters layout physics, so a
// running layout should be re-energized to settle under the new values.
func RequiresReheat(changes []FieldChange) bool {
	for _, c := range changes {
		group := strings.SplitN(c.Field, ".", 2)[0]
		switch group {
		case "simulation", "forces", "dimensions", "focus", "smart_spacing":
			return true
		}
	}
	return false
}
