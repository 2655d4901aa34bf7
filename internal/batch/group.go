// Package batch discovers related file groups and drives them through
// parse, transform and write for every supported scale factor.
package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/coastertools/buildscale/internal/rules"
)

// Group is one discovered unit of work: the files of a single source
// folder, at most one object file plus its materials. Groups are created
// during discovery, consumed during a run and carry no identity beyond it.
type Group struct {
	// Base anchors relative output paths; outputs land under
	// <out>/<scale-tag>/<path relative to Base>.
	Base string
	// Dir is the source folder the group was discovered in.
	Dir       string
	Object    string
	Materials []string
}

// Files returns every source file of the group, object first.
func (g *Group) Files() []string {
	var out []string
	if g.Object != "" {
		out = append(out, g.Object)
	}
	return append(out, g.Materials...)
}

// DiscoverOptions filters discovery and receives its warnings.
type DiscoverOptions struct {
	// Include and Exclude are doublestar patterns matched against the
	// path relative to each input's base. Empty Include admits all files.
	Include []string
	Exclude []string
	// Warnf receives non-fatal discovery findings (extra object files,
	// unsupported loose files). Nil discards them.
	Warnf func(format string, a ...any)
}

func (o DiscoverOptions) warnf(format string, a ...any) {
	if o.Warnf != nil {
		o.Warnf(format, a...)
	}
}

// Discover walks the given paths and assembles Batch Groups: one group
// per folder that contains recognized files, and loose files grouped by
// their parent folder. The second return value lists explicitly supplied
// files no document template recognizes; they surface as skipped results.
func Discover(inputs []string, tbl *rules.Table, opts DiscoverOptions) ([]*Group, []string, error) {
	byDir := map[string]*Group{}
	var order []string
	var unsupported []string

	add := func(base, file string) {
		dir := filepath.Dir(file)
		g, ok := byDir[dir]
		if !ok {
			g = &Group{Base: base, Dir: dir}
			byDir[dir] = g
			order = append(order, dir)
		}
		dt := tbl.TypeFor(file)
		if dt.Role == rules.RoleObject {
			if g.Object != "" {
				opts.warnf("found more than one object file in %q; only %q will be used",
					dir, filepath.Base(g.Object))
				return
			}
			g.Object = file
			return
		}
		g.Materials = append(g.Materials, file)
	}

	for _, input := range inputs {
		input = filepath.Clean(input)
		info, err := os.Stat(input)
		if err != nil {
			return nil, nil, fmt.Errorf("stat input: %w", err)
		}
		base := filepath.Dir(input)

		if !info.IsDir() {
			if tbl.TypeFor(input) == nil {
				opts.warnf("skipping %q: no document template matches", input)
				unsupported = append(unsupported, input)
				continue
			}
			if opts.admits(base, input) {
				add(base, input)
			}
			continue
		}

		err = filepath.WalkDir(input, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || tbl.TypeFor(p) == nil {
				return nil
			}
			if opts.admits(base, p) {
				add(base, p)
			}
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walk %s: %w", input, err)
		}
	}

	groups := make([]*Group, 0, len(order))
	for _, dir := range order {
		g := byDir[dir]
		sort.Strings(g.Materials)
		groups = append(groups, g)
	}
	return groups, unsupported, nil
}

func (o DiscoverOptions) admits(base, file string) bool {
	rel, err := filepath.Rel(base, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	for _, pat := range o.Exclude {
		if ok, _ := doublestar.PathMatch(pat, rel); ok {
			return false
		}
	}
	if len(o.Include) == 0 {
		return true
	}
	for _, pat := range o.Include {
		if ok, _ := doublestar.PathMatch(pat, rel); ok {
			return true
		}
	}
	return false
}
