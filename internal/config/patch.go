package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Patch is a partial configuration keyed by dotted field path, e.g.
// {"forces.charge_strength": -200, "viewport.easing": "linear"}.
type Patch map[string]interface{}

// Keys returns the patch keys in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PatchFromYAML flattens a partial YAML document into a Patch.
func PatchFromYAML(doc []byte) (Patch, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(doc, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse patch: %w", err)
	}
	p := Patch{}
	flatten("", tree, p)
	return p, nil
}

func flatten(prefix string, tree map[string]interface{}, out Patch) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

func (p Patch) nested() (map[string]interface{}, error) {
	root := map[string]interface{}{}
	for _, key := range p.Keys() {
		parts := strings.Split(key, ".")
		cur := root
		for i, part := range parts {
			if part == "" {
				return nil, fmt.Errorf("empty path segment in %q", key)
			}
			if i == len(parts)-1 {
				if _, exists := cur[part]; exists {
					return nil, fmt.Errorf("conflicting keys at %q", key)
				}
				cur[part] = p[key]
				break
			}
			next, exists := cur[part]
			if !exists {
				m := map[string]interface{}{}
				cur[part] = m
				cur = m
				continue
			}
			m, ok := next.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("conflicting keys at %q", key)
			}
			cur = m
		}
	}
	return root, nil
}

var (
	knownOnce   sync.Once
	knownFields map[string]bool
)

// KnownFields returns every dotted leaf path of ForceLayoutConfig.
func KnownFields() map[string]bool {
	knownOnce.Do(func() {
		knownFields = map[string]bool{}
		data, err := yaml.Marshal(DefaultConfig())
		if err != nil {
			return
		}
		var tree map[string]interface{}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return
		}
		flat := Patch{}
		flatten("", tree, flat)
		for k := range flat {
			knownFields[k] = true
		}
	})
	return knownFields
}

// applyPatch decodes p on top of a copy of base. Keys that are unknown or
// carry a value of the wrong type are reported and skipped; the remaining
// keys are still applied so rule validation can report on them too. base is
// never modified.
func applyPatch(base ForceLayoutConfig, p Patch) (ForceLayoutConfig, []FieldError) {
	known := KnownFields()
	var errs []FieldError
	good := Patch{}
	for _, key := range p.Keys() {
		if !known[key] {
			errs = append(errs, FieldError{Field: key, Message: "unknown field", Value: p[key]})
			continue
		}
		scratch := base
		if err := decodePatch(Patch{key: p[key]}, &scratch); err != nil {
			errs = append(errs, FieldError{Field: key, Message: "invalid value: " + describeYAMLError(err), Value: p[key]})
			continue
		}
		good[key] = p[key]
	}

	out := base
	if err := decodePatch(good, &out); err != nil {
		return base, append(errs, FieldError{Message: describeYAMLError(err)})
	}
	return out, errs
}

func decodePatch(p Patch, out *ForceLayoutConfig) error {
	tree, err := p.nested()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	return decodeStrict(data, out)
}

func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func describeYAMLError(err error) string {
	var te *yaml.TypeError
	if errors.As(err, &te) {
		return strings.Join(te.Errors, "; ")
	}
	return err.Error()
}
