// Package rules holds the scale rule table: the supported factor set, the
// per-document-type transform rules loaded from template files, and the
// naming convention shared by the transform engine and the batch writer.
package rules

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind tags how a field's value changes under a scale factor.
type Kind int

const (
	// Identity leaves the value alone. Fields with no rule at all get the
	// same treatment; an explicit identity rule just documents the field.
	Identity Kind = iota
	// ScaleLinear multiplies the value by the factor (dimensions, tiling
	// widths).
	ScaleLinear
	// ScaleInverse divides the value by the factor (tiling densities, UV
	// mapping rates).
	ScaleInverse
	// FilenameSuffix rewrites a referenced filename through the shared
	// naming convention so references track the scaled outputs.
	FilenameSuffix
)

var kindNames = map[Kind]string{
	Identity:       "identity",
	ScaleLinear:    "scale-linear",
	ScaleInverse:   "scale-inverse",
	FilenameSuffix: "filename-suffix",
}

func (k Kind) String() string { return kindNames[k] }

// ParseKind reads a transform kind token from a template file.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown transform kind %q", s)
}

// FieldPath addresses a field inside a document: a chain of element tags
// relative to the root, optionally ending in an attribute name. A "*"
// segment matches any tag.
type FieldPath struct {
	Segs []string
	Attr string
}

// ParseFieldPath reads a path token like "a/b/c" or "a/b/c@attr".
func ParseFieldPath(s string) (FieldPath, error) {
	var p FieldPath
	if i := strings.IndexByte(s, '@'); i >= 0 {
		p.Attr = s[i+1:]
		s = s[:i]
		if p.Attr == "" {
			return FieldPath{}, fmt.Errorf("field path %q has an empty attribute", s)
		}
	}
	if s == "" {
		return FieldPath{}, fmt.Errorf("empty field path")
	}
	p.Segs = strings.Split(s, "/")
	for _, seg := range p.Segs {
		if seg == "" {
			return FieldPath{}, fmt.Errorf("field path %q has an empty segment", s)
		}
	}
	return p, nil
}

func (p FieldPath) String() string {
	s := strings.Join(p.Segs, "/")
	if p.Attr != "" {
		s += "@" + p.Attr
	}
	return s
}

// Rule is one entry of the rule table.
type Rule struct {
	Name string
	Path FieldPath
	Kind Kind
}

// Role distinguishes material documents from object documents.
type Role int

const (
	RoleMaterial Role = iota
	RoleObject
)

func (r Role) String() string {
	if r == RoleObject {
		return "object"
	}
	return "material"
}

// Naming selects how scaled output filenames are derived.
type Naming int

const (
	// NamingDir keeps basenames unchanged; the scale-tag directory
	// partitions variants.
	NamingDir Naming = iota
	// NamingStem appends the scale tag to the file stem, for flat layouts
	// that merge all scales into one directory.
	NamingStem
)

func (n Naming) String() string {
	if n == NamingStem {
		return "stem"
	}
	return "dir"
}

// OutputName derives the filename of a scaled output from its source
// basename. It is the single naming function used both when writing
// material files and when rewriting references to them, so referential
// integrity holds by construction.
func OutputName(name string, f Factor, naming Naming) string {
	if naming == NamingDir || f.IsCanonical() {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + f.Tag() + ext
}

// DocType is the compiled rule set for one document type.
type DocType struct {
	Name   string
	Match  string
	Root   string
	Role   Role
	Naming Naming
	Assets []FieldPath
	Rules  []Rule
}

// Matches reports whether a filename belongs to this document type.
func (t *DocType) Matches(name string) bool {
	ok, err := doublestar.Match(t.Match, path.Base(strings.ReplaceAll(name, "\\", "/")))
	return err == nil && ok
}

// Table is the immutable rule table for one run: the supported factor set
// plus every loaded document type. Built once at startup and passed
// explicitly into the orchestrator.
type Table struct {
	Scales []Factor
	Types  []*DocType
}

// TypeFor returns the document type matching a filename, or nil.
func (t *Table) TypeFor(name string) *DocType {
	for _, dt := range t.Types {
		if dt.Matches(name) {
			return dt
		}
	}
	return nil
}

// Supports reports whether the factor is in the supported set.
func (t *Table) Supports(f Factor) bool {
	for _, s := range t.Scales {
		if s == f {
			return true
		}
	}
	return false
}
