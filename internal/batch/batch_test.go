package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastertools/buildscale/internal/rules"
)

const matSource = `<?xml version="1.0"?>
<nl2mat>
  <material>
    <renderpass>
      <texunit>
        <map>rails.png</map>
        <tiling width="10.0"/>
      </texunit>
      <color r="0.8" g="0.8" b="0.8"/>
    </renderpass>
  </material>
</nl2mat>
`

const scoSource = `<?xml version="1.0"?>
<sceneobject>
  <preview>track.png</preview>
  <piece name="straight">
    <material>rail.nl2mat</material>
  </piece>
</sceneobject>
`

func mustPath(t *testing.T, s string) rules.FieldPath {
	t.Helper()
	p, err := rules.ParseFieldPath(s)
	require.NoError(t, err)
	return p
}

func testTable(t *testing.T, naming rules.Naming) *rules.Table {
	t.Helper()
	return &rules.Table{
		Scales: []rules.Factor{{Num: 1, Den: 1}, {Num: 2, Den: 1}, {Num: 3, Den: 1}},
		Types: []*rules.DocType{
			{
				Name: "nl2mat", Match: "*.nl2mat", Root: "nl2mat",
				Role: rules.RoleMaterial, Naming: naming,
				Assets: []rules.FieldPath{mustPath(t, "material/renderpass/texunit/map")},
				Rules: []rules.Rule{
					{Name: "tiling-width", Path: mustPath(t, "material/renderpass/texunit/tiling@width"), Kind: rules.ScaleLinear},
				},
			},
			{
				Name: "nl2sco", Match: "*.nl2sco", Root: "sceneobject",
				Role: rules.RoleObject, Naming: naming,
				Assets: []rules.FieldPath{mustPath(t, "sceneobject/preview")},
				Rules: []rules.Rule{
					{Name: "piece-material", Path: mustPath(t, "sceneobject/piece/material"), Kind: rules.FilenameSuffix},
				},
			},
		},
	}
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// shapesDir lays out the canonical scenario: shapes/track.nl2sco
// referencing shapes/rail.nl2mat with its texture beside it.
func shapesDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeSource(t, root, "shapes/track.nl2sco", scoSource)
	writeSource(t, root, "shapes/rail.nl2mat", matSource)
	writeSource(t, root, "shapes/rails.png", "png-bytes")
	writeSource(t, root, "shapes/track.png", "png-bytes")
	return filepath.Join(root, "shapes")
}

func TestDiscover_GroupsByFolder(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	dir := shapesDir(t)
	writeSource(t, filepath.Dir(dir), "bare/wood.nl2mat", matSource)

	groups, unmatched, err := Discover([]string{filepath.Dir(dir)}, tbl, DiscoverOptions{})
	require.NoError(t, err)
	require.Empty(t, unmatched)
	require.Len(t, groups, 2)

	var shapes, bare *Group
	for _, g := range groups {
		switch filepath.Base(g.Dir) {
		case "shapes":
			shapes = g
		case "bare":
			bare = g
		}
	}
	require.NotNil(t, shapes)
	require.NotNil(t, bare)

	assert.Equal(t, "track.nl2sco", filepath.Base(shapes.Object))
	require.Len(t, shapes.Materials, 1)
	assert.Empty(t, bare.Object)
	require.Len(t, bare.Materials, 1)
}

func TestDiscover_LooseFilesAndWarnings(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	dir := t.TempDir()
	mat := writeSource(t, dir, "rail.nl2mat", matSource)
	txt := writeSource(t, dir, "notes.txt", "hi")

	var warnings []string
	groups, unmatched, err := Discover([]string{mat, txt}, tbl, DiscoverOptions{
		Warnf: func(format string, a ...any) {
			warnings = append(warnings, fmt.Sprintf(format, a...))
		},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{mat}, groups[0].Materials)
	assert.Equal(t, []string{txt}, unmatched)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no document template")
}

func TestDiscover_MultipleObjectsWarns(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	dir := t.TempDir()
	writeSource(t, dir, "shapes/a.nl2sco", scoSource)
	writeSource(t, dir, "shapes/b.nl2sco", scoSource)

	var warnings []string
	groups, _, err := Discover([]string{dir}, tbl, DiscoverOptions{
		Warnf: func(format string, a ...any) {
			warnings = append(warnings, fmt.Sprintf(format, a...))
		},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "a.nl2sco", filepath.Base(groups[0].Object))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "more than one object file")
}

func TestDiscover_IncludeExclude(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	dir := shapesDir(t)

	groups, _, err := Discover([]string{filepath.Dir(dir)}, tbl, DiscoverOptions{
		Exclude: []string{"**/*.nl2sco"},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Object)

	groups, _, err = Discover([]string{filepath.Dir(dir)}, tbl, DiscoverOptions{
		Include: []string{"**/track.*"},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.NotEmpty(t, groups[0].Object)
	assert.Empty(t, groups[0].Materials)
}
