package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Variant is a buyer's selection of product attributes (size, color, style).
type Variant map[string]string

// VariantKey is the normalized identity of a Variant: attributes sorted by
// name, names lowercased, values trimmed, empty values dropped, joined as
// name=value;name=value. Names and values have '%', ';' and '=' escaped
// as %25, %3B and %3D, so no two selections share a key. Two lines for the
// same product are the same line iff their keys are equal.
type VariantKey string

var (
	keyEscaper   = strings.NewReplacer("%", "%25", ";", "%3B", "=", "%3D")
	keyUnescaper = strings.NewReplacer("%25", "%", "%3B", ";", "%3D", "=", "%3b", ";", "%3d", "=")
)

// normalize returns the selection keyed by normalized name. Names that only
// differ by case or surrounding space collide; the raw name that sorts
// first wins so the result does not depend on map order.
func (v Variant) normalize() (map[string]string, []string) {
	raw := make([]string, 0, len(v))
	for k := range v {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	norm := make(map[string]string, len(v))
	var dup []string
	for _, k := range raw {
		name := strings.ToLower(strings.TrimSpace(k))
		val := strings.TrimSpace(v[k])
		if name == "" || val == "" {
			continue
		}
		if _, seen := norm[name]; seen {
			dup = append(dup, name)
			continue
		}
		norm[name] = val
	}
	return norm, dup
}

// Validate rejects selections that name the same attribute twice once
// normalized, e.g. "Size" and "size".
func (v Variant) Validate() error {
	if _, dup := v.normalize(); len(dup) > 0 {
		return fmt.Errorf("variant attribute %q given more than once", dup[0])
	}
	return nil
}

func (v Variant) Key() VariantKey {
	if len(v) == 0 {
		return ""
	}
	norm, _ := v.normalize()
	names := make([]string, 0, len(norm))
	for name := range norm {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(keyEscaper.Replace(name))
		b.WriteByte('=')
		b.WriteString(keyEscaper.Replace(norm[name]))
	}
	return VariantKey(b.String())
}

// Variant rebuilds the attribute map from a key.
func (k VariantKey) Variant() Variant {
	if k == "" {
		return Variant{}
	}
	out := Variant{}
	for _, pair := range strings.Split(string(k), ";") {
		name, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[keyUnescaper.Replace(name)] = keyUnescaper.Replace(val)
	}
	return out
}
