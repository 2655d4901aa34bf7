package batch

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/coastertools/buildscale/internal/doc"
	"github.com/coastertools/buildscale/internal/rules"
	"github.com/coastertools/buildscale/internal/transform"
)

// Runner executes Batch Groups against an output filesystem. Groups share
// no mutable state, so they run in parallel; each owns its parsed
// documents and reports its own results.
type Runner struct {
	Table *rules.Table
	// Out is the destination root. Scale partitions are created below it.
	Out billy.Filesystem
	// Jobs bounds concurrent groups; <= 0 means NumCPU.
	Jobs int
	// Logf receives progress lines. Nil discards them.
	Logf func(format string, a ...any)
}

func (r *Runner) logf(format string, a ...any) {
	if r.Logf != nil {
		r.Logf(format, a...)
	}
}

// Run processes every group for every supported scale factor. Failures
// become result entries; nothing unwinds past this function. A cancelled
// context stops dispatching further groups, and outputs of completed
// groups stay valid.
func (r *Runner) Run(ctx context.Context, groups []*Group) *Report {
	start := time.Now()
	jobs := r.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	results := make([]*GroupResult, len(groups))
	var eg errgroup.Group
	eg.SetLimit(jobs)
	for i, g := range groups {
		if ctx.Err() != nil {
			break
		}
		i, g := i, g
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = r.runGroup(g)
			return nil
		})
	}
	_ = eg.Wait()

	report := &Report{Cancelled: ctx.Err() != nil}
	for _, res := range results {
		if res != nil {
			report.Groups = append(report.Groups, res)
		}
	}
	report.tally()
	report.Elapsed = time.Since(start)
	return report
}

// runGroup takes one group through parse, transform and write. Each
// source is parsed exactly once; a parse failure aborts only that file's
// scale variants.
func (r *Runner) runGroup(g *Group) *GroupResult {
	res := &GroupResult{Dir: g.Dir}
	defer res.finish()

	parsed := map[string]*doc.Document{}
	for _, file := range g.Files() {
		src, err := os.ReadFile(file)
		if err != nil {
			res.fail(file, "", err)
			continue
		}
		d, err := doc.Parse(file, src)
		if err != nil {
			res.fail(file, "", err)
			continue
		}
		parsed[file] = d
	}

	copiedAssets := map[string]bool{}
	for _, f := range r.Table.Scales {
		matOutputs := map[string]bool{}

		for _, mat := range g.Materials {
			d, ok := parsed[mat]
			if !ok {
				continue
			}
			out := r.outputPath(g, mat, f)
			if err := r.writeDocument(d, f, out); err != nil {
				res.fail(mat, f.Tag(), err)
				continue
			}
			matOutputs[out] = true
			res.written(mat, f.Tag(), out)
			r.copyAssets(g, d, f, copiedAssets, res)
		}

		if g.Object == "" {
			continue
		}
		d, ok := parsed[g.Object]
		if !ok {
			continue
		}
		out := r.outputPath(g, g.Object, f)
		dt := r.Table.TypeFor(g.Object)
		scaled, err := transform.Apply(d, f, dt, r.Table)
		if err != nil {
			res.fail(g.Object, f.Tag(), err)
			continue
		}
		if err := r.writeFile(out, scaled.Bytes()); err != nil {
			res.fail(g.Object, f.Tag(), err)
			continue
		}
		// The object is written either way; a dangling reference marks
		// the variant incomplete without suppressing the materials.
		if err := checkIntegrity(g.Object, scaled, dt, out, matOutputs, f); err != nil {
			res.fail(g.Object, f.Tag(), err)
			continue
		}
		res.written(g.Object, f.Tag(), out)
		r.copyAssets(g, d, f, copiedAssets, res)
	}

	r.logf("processed %s (%d files)", g.Dir, len(g.Files()))
	return res
}

// outputPath derives <scale-tag>/<relative-source-path> with the basename
// run through the shared naming function.
func (r *Runner) outputPath(g *Group, file string, f rules.Factor) string {
	rel, err := filepath.Rel(g.Base, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	dir, base := path.Split(rel)
	naming := rules.NamingDir
	if dt := r.Table.TypeFor(file); dt != nil {
		naming = dt.Naming
	}
	return path.Join(f.Tag(), dir, rules.OutputName(base, f, naming))
}

func (r *Runner) writeDocument(d *doc.Document, f rules.Factor, out string) error {
	dt := r.Table.TypeFor(d.Path)
	scaled, err := transform.Apply(d, f, dt, r.Table)
	if err != nil {
		return err
	}
	return r.writeFile(out, scaled.Bytes())
}

func (r *Runner) writeFile(name string, data []byte) error {
	if dir := path.Dir(name); dir != "." {
		if err := r.Out.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return util.WriteFile(r.Out, name, data, 0o644)
}

// checkIntegrity verifies that every material reference of a written
// object variant resolves among the materials written for the same
// factor.
func checkIntegrity(source string, scaled *doc.Document, dt *rules.DocType, out string, matOutputs map[string]bool, f rules.Factor) error {
	outDir := path.Dir(out)
	for _, ref := range transform.MaterialRefs(scaled, dt) {
		resolved := path.Clean(path.Join(outDir, strings.ReplaceAll(ref, "\\", "/")))
		if !matOutputs[resolved] {
			return &IntegrityError{Object: source, Ref: ref, Scale: f}
		}
	}
	return nil
}

// copyAssets copies files referenced by the document's asset fields
// (textures, previews) into the scale partition. A missing or unreadable
// asset is a warning, not a failure, matching how unrelated simulator
// resources behave.
func (r *Runner) copyAssets(g *Group, d *doc.Document, f rules.Factor, copied map[string]bool, res *GroupResult) {
	dt := r.Table.TypeFor(d.Path)
	if dt == nil {
		return
	}
	relDir := ""
	if rel, err := filepath.Rel(g.Base, filepath.Dir(d.Path)); err == nil {
		relDir = strings.ReplaceAll(rel, "\\", "/")
	}
	for _, ap := range dt.Assets {
		for _, name := range transform.FieldValues(d, ap) {
			dst := path.Join(f.Tag(), relDir, strings.ReplaceAll(name, "\\", "/"))
			if copied[dst] {
				continue
			}
			copied[dst] = true
			data, err := os.ReadFile(filepath.Join(g.Dir, filepath.FromSlash(name)))
			if err != nil {
				res.warnf("skipped asset %q: %v", name, err)
				continue
			}
			if err := r.writeFile(dst, data); err != nil {
				res.warnf("skipped asset %q: %v", name, err)
			}
		}
	}
}
