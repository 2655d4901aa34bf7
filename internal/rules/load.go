package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/coastertools/buildscale/api"
)

// TemplateError reports a malformed or inconsistent template file. The
// tool cannot run without a valid template set, so these are fatal at
// startup.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// defaultScaleTokens is the factor set used when no template declares one.
var defaultScaleTokens = []string{"1", "2", "3", "4"}

// Load reads every *.hcl file in the templates directory and compiles the
// rule table. Each file defines rules for one document type.
func Load(dir string) (*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read templates directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".hcl" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, &TemplateError{Path: dir, Err: fmt.Errorf("no template files found")}
	}

	tbl := &Table{}
	var scaleTokens []string
	var scaleSource string
	seen := map[string]string{} // type name -> file

	for _, p := range paths {
		var tpl api.Template
		if err := hclsimple.DecodeFile(p, nil, &tpl); err != nil {
			return nil, &TemplateError{Path: p, Err: err}
		}
		if tpl.Document == nil {
			return nil, &TemplateError{Path: p, Err: fmt.Errorf("missing document block")}
		}
		if len(tpl.Scales) > 0 {
			if scaleTokens != nil && !sameTokens(scaleTokens, tpl.Scales) {
				return nil, &TemplateError{Path: p, Err: fmt.Errorf(
					"scales %v conflict with %v declared in %s", tpl.Scales, scaleTokens, scaleSource)}
			}
			scaleTokens = tpl.Scales
			scaleSource = p
		}

		dt, err := compileDocType(tpl.Document)
		if err != nil {
			return nil, &TemplateError{Path: p, Err: err}
		}
		if prev, ok := seen[dt.Name]; ok {
			return nil, &TemplateError{Path: p, Err: fmt.Errorf(
				"document type %q already defined in %s", dt.Name, prev)}
		}
		seen[dt.Name] = p
		tbl.Types = append(tbl.Types, dt)
	}

	if scaleTokens == nil {
		scaleTokens = defaultScaleTokens
	}
	for _, tok := range scaleTokens {
		f, err := ParseFactor(tok)
		if err != nil {
			return nil, &TemplateError{Path: scaleSource, Err: err}
		}
		if tbl.Supports(f) {
			return nil, &TemplateError{Path: scaleSource, Err: fmt.Errorf("duplicate scale factor %s", f)}
		}
		tbl.Scales = append(tbl.Scales, f)
	}
	return tbl, nil
}

func compileDocType(d *api.Document) (*DocType, error) {
	if d.Match == "" {
		return nil, fmt.Errorf("document %q: match is required", d.Type)
	}
	if d.Root == "" {
		return nil, fmt.Errorf("document %q: root is required", d.Type)
	}
	dt := &DocType{Name: d.Type, Match: d.Match, Root: d.Root}

	switch d.Role {
	case "material":
		dt.Role = RoleMaterial
	case "object":
		dt.Role = RoleObject
	default:
		return nil, fmt.Errorf("document %q: role must be \"material\" or \"object\", got %q", d.Type, d.Role)
	}

	switch d.Naming {
	case "", "dir":
		dt.Naming = NamingDir
	case "stem":
		dt.Naming = NamingStem
	default:
		return nil, fmt.Errorf("document %q: unknown naming %q", d.Type, d.Naming)
	}

	for _, a := range d.Assets {
		p, err := ParseFieldPath(a)
		if err != nil {
			return nil, fmt.Errorf("document %q: asset %v", d.Type, err)
		}
		dt.Assets = append(dt.Assets, p)
	}

	for _, r := range d.Rules {
		p, err := ParseFieldPath(r.Path)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %v", r.Name, err)
		}
		k, err := ParseKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %v", r.Name, err)
		}
		dt.Rules = append(dt.Rules, Rule{Name: r.Name, Path: p, Kind: k})
	}
	return dt, nil
}

func sameTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
