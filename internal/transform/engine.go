// Package transform applies the scale rule table to parsed documents. The
// input document is never mutated; every call returns a fresh copy so
// scale variants cannot cross-contaminate.
package transform

import (
	"fmt"

	"github.com/coastertools/buildscale/internal/doc"
	"github.com/coastertools/buildscale/internal/rules"
)

// Apply produces the scaled variant of d for one factor. Fields without a
// matching rule pass through untouched; that policy keeps future format
// fields from being corrupted silently.
func Apply(d *doc.Document, f rules.Factor, dt *rules.DocType, tbl *rules.Table) (*doc.Document, error) {
	if !tbl.Supports(f) {
		return nil, &rules.UnsupportedScaleError{Factor: f}
	}
	if d.Root == nil || d.Root.Tag != dt.Root {
		return nil, fmt.Errorf("%s: root element is not <%s>", d.Path, dt.Root)
	}

	out := d.Clone()
	for _, r := range dt.Rules {
		if r.Kind == rules.Identity {
			continue
		}
		for _, n := range resolve(out.Root, r.Path.Segs) {
			if err := applyRule(n, r, f, dt, tbl); err != nil {
				return nil, fmt.Errorf("%s: field %s: %w", d.Path, r.Path, err)
			}
		}
	}
	return out, nil
}

func applyRule(n *doc.Node, r rules.Rule, f rules.Factor, dt *rules.DocType, tbl *rules.Table) error {
	get := func() (string, bool) {
		if r.Path.Attr != "" {
			return n.Attr(r.Path.Attr)
		}
		return n.Text, len(n.Children) == 0
	}
	set := func(v string) {
		if r.Path.Attr != "" {
			n.SetAttr(r.Path.Attr, v)
		} else {
			n.Text = v
		}
	}

	raw, ok := get()
	if !ok {
		return nil // field absent in this document, nothing to do
	}

	switch r.Kind {
	case rules.ScaleLinear, rules.ScaleInverse:
		scaled, err := scaleToken(raw, f, r.Kind == rules.ScaleInverse)
		if err != nil {
			return err
		}
		set(scaled)
	case rules.FilenameSuffix:
		set(rewriteRef(raw, f, dt, tbl))
	}
	return nil
}

// rewriteRef maps a referenced filename to the name the batch writer will
// give the referenced document at the same factor. The naming convention
// of the referenced file's own document type governs, since that type
// decides how its outputs are written.
func rewriteRef(raw string, f rules.Factor, dt *rules.DocType, tbl *rules.Table) string {
	prefix, token, suffix := splitToken(raw)
	if token == "" {
		return raw
	}
	naming := dt.Naming
	if refType := tbl.TypeFor(token); refType != nil {
		naming = refType.Naming
	}
	return prefix + rules.OutputName(token, f, naming) + suffix
}

// resolve walks the path segments below root and returns every matching
// node. A "*" segment matches any tag at that level.
func resolve(root *doc.Node, segs []string) []*doc.Node {
	current := []*doc.Node{root}
	for _, seg := range segs {
		var next []*doc.Node
		for _, n := range current {
			for _, c := range n.Elements() {
				if seg == "*" || c.Tag == seg {
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// FieldValues returns the trimmed values of every field the path matches.
// Used for asset references and integrity checks.
func FieldValues(d *doc.Document, p rules.FieldPath) []string {
	var out []string
	for _, n := range resolve(d.Root, p.Segs) {
		var raw string
		var ok bool
		if p.Attr != "" {
			raw, ok = n.Attr(p.Attr)
		} else {
			raw, ok = n.Text, len(n.Children) == 0
		}
		if !ok {
			continue
		}
		if _, token, _ := splitToken(raw); token != "" {
			out = append(out, token)
		}
	}
	return out
}

// MaterialRefs returns the material filenames an object document points
// at, i.e. the values of every filename-suffix field.
func MaterialRefs(d *doc.Document, dt *rules.DocType) []string {
	var out []string
	for _, r := range dt.Rules {
		if r.Kind != rules.FilenameSuffix {
			continue
		}
		out = append(out, FieldValues(d, r.Path)...)
	}
	return out
}
