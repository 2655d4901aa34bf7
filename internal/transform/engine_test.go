package transform

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastertools/buildscale/internal/doc"
	"github.com/coastertools/buildscale/internal/rules"
)

const matSource = `<?xml version="1.0"?>
<nl2mat version="1.0">
  <material>
    <renderpass>
      <texunit>
        <map>rails.png</map>
        <coordgen mode="planar" scaleu="10.0" scalev="4"/>
        <tiling width="10.0" height="5.25"/>
      </texunit>
      <color type="diffuse" r="0.8" g="0.8" b="0.8"/>
      <glow strength="0.5"/>
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
  <piece name="curved">
    <material>rail.nl2mat</material>
  </piece>
  <usercolor r="1.0" g="0.0" b="0.0"/>
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
	mat := &rules.DocType{
		Name: "nl2mat", Match: "*.nl2mat", Root: "nl2mat",
		Role: rules.RoleMaterial, Naming: naming,
		Assets: []rules.FieldPath{mustPath(t, "material/renderpass/texunit/map")},
		Rules: []rules.Rule{
			{Name: "tiling-width", Path: mustPath(t, "material/renderpass/texunit/tiling@width"), Kind: rules.ScaleLinear},
			{Name: "tiling-height", Path: mustPath(t, "material/renderpass/texunit/tiling@height"), Kind: rules.ScaleLinear},
			{Name: "coordgen-u", Path: mustPath(t, "material/renderpass/texunit/coordgen@scaleu"), Kind: rules.ScaleInverse},
			{Name: "color", Path: mustPath(t, "material/renderpass/color"), Kind: rules.Identity},
		},
	}
	sco := &rules.DocType{
		Name: "nl2sco", Match: "*.nl2sco", Root: "sceneobject",
		Role: rules.RoleObject, Naming: naming,
		Rules: []rules.Rule{
			{Name: "piece-material", Path: mustPath(t, "sceneobject/piece/material"), Kind: rules.FilenameSuffix},
		},
	}
	return &rules.Table{
		Scales: []rules.Factor{{Num: 1, Den: 1}, {Num: 2, Den: 1}, {Num: 3, Den: 1}},
		Types:  []*rules.DocType{mat, sco},
	}
}

func parseMat(t *testing.T) *doc.Document {
	t.Helper()
	d, err := doc.Parse("rail.nl2mat", []byte(matSource))
	require.NoError(t, err)
	return d
}

func attrAt(t *testing.T, d *doc.Document, path, attr string) string {
	t.Helper()
	p := mustPath(t, path+"@"+attr)
	vals := FieldValues(d, p)
	require.Len(t, vals, 1)
	return vals[0]
}

func TestApply_ScalesFields(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	d := parseMat(t)

	out, err := Apply(d, rules.Factor{Num: 2, Den: 1}, tbl.Types[0], tbl)
	require.NoError(t, err)

	assert.Equal(t, "20.0", attrAt(t, out, "material/renderpass/texunit/tiling", "width"))
	assert.Equal(t, "10.50", attrAt(t, out, "material/renderpass/texunit/tiling", "height"))
	assert.Equal(t, "5.0", attrAt(t, out, "material/renderpass/texunit/coordgen", "scaleu"))

	// No rule for scalev, glow or color values: untouched.
	assert.Equal(t, "4", attrAt(t, out, "material/renderpass/texunit/coordgen", "scalev"))
	assert.Equal(t, "0.5", attrAt(t, out, "material/renderpass/glow", "strength"))
	assert.Equal(t, "0.8", attrAt(t, out, "material/renderpass/color", "r"))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	d := parseMat(t)

	_, err := Apply(d, rules.Factor{Num: 3, Den: 1}, tbl.Types[0], tbl)
	require.NoError(t, err)
	assert.Equal(t, matSource, string(d.Bytes()))
}

func TestApply_CanonicalFactorIsIdentity(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	d := parseMat(t)

	out, err := Apply(d, rules.Factor{Num: 1, Den: 1}, tbl.Types[0], tbl)
	require.NoError(t, err)
	assert.True(t, d.Equal(out))
	assert.Equal(t, matSource, string(out.Bytes()))
}

func TestApply_UntouchedFieldsAreByteStable(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	d := parseMat(t)

	out, err := Apply(d, rules.Factor{Num: 2, Den: 1}, tbl.Types[0], tbl)
	require.NoError(t, err)

	got := string(out.Bytes())
	// Only the three ruled tokens differ from the source.
	want := strings.NewReplacer(
		`width="10.0"`, `width="20.0"`,
		`height="5.25"`, `height="10.50"`,
		`scaleu="10.0"`, `scaleu="5.0"`,
	).Replace(matSource)
	assert.Equal(t, want, got)
}

func TestApply_UnsupportedFactor(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	d := parseMat(t)

	_, err := Apply(d, rules.Factor{Num: 7, Den: 1}, tbl.Types[0], tbl)
	var uerr *rules.UnsupportedScaleError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, rules.Factor{Num: 7, Den: 1}, uerr.Factor)
}

func TestApply_WrongRoot(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	d, err := doc.Parse("odd.nl2mat", []byte(`<wrong/>`))
	require.NoError(t, err)

	_, err = Apply(d, rules.Factor{Num: 2, Den: 1}, tbl.Types[0], tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<nl2mat>")
}

func TestApply_NonNumericField(t *testing.T) {
	tbl := testTable(t, rules.NamingDir)
	d, err := doc.Parse("bad.nl2mat", []byte(
		`<nl2mat><material><renderpass><texunit><tiling width="wide"/></texunit></renderpass></material></nl2mat>`))
	require.NoError(t, err)

	_, err = Apply(d, rules.Factor{Num: 2, Den: 1}, tbl.Types[0], tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiling@width")
	assert.Contains(t, err.Error(), "not numeric")
}

func TestApply_RewritesReferences(t *testing.T) {
	d, err := doc.Parse("track.nl2sco", []byte(scoSource))
	require.NoError(t, err)

	t.Run("dir naming keeps basenames", func(t *testing.T) {
		tbl := testTable(t, rules.NamingDir)
		out, err := Apply(d, rules.Factor{Num: 2, Den: 1}, tbl.Types[1], tbl)
		require.NoError(t, err)
		assert.Equal(t, []string{"rail.nl2mat", "rail.nl2mat"}, MaterialRefs(out, tbl.Types[1]))
	})

	t.Run("stem naming tags the reference", func(t *testing.T) {
		tbl := testTable(t, rules.NamingStem)
		out, err := Apply(d, rules.Factor{Num: 2, Den: 1}, tbl.Types[1], tbl)
		require.NoError(t, err)
		assert.Equal(t, []string{"rail_x2.nl2mat", "rail_x2.nl2mat"}, MaterialRefs(out, tbl.Types[1]))

		// The rewritten reference equals the name the writer gives the
		// material output: one shared naming function.
		assert.Equal(t, rules.OutputName("rail.nl2mat", rules.Factor{Num: 2, Den: 1}, rules.NamingStem),
			MaterialRefs(out, tbl.Types[1])[0])
	})

	t.Run("canonical factor leaves references alone", func(t *testing.T) {
		tbl := testTable(t, rules.NamingStem)
		out, err := Apply(d, rules.Factor{Num: 1, Den: 1}, tbl.Types[1], tbl)
		require.NoError(t, err)
		assert.True(t, d.Equal(out))
	})
}

func TestFieldValues(t *testing.T) {
	d := parseMat(t)
	vals := FieldValues(d, mustPath(t, "material/renderpass/texunit/map"))
	assert.Equal(t, []string{"rails.png"}, vals)

	// Wildcard segment.
	vals = FieldValues(d, mustPath(t, "material/*/texunit/map"))
	assert.Equal(t, []string{"rails.png"}, vals)

	// Absent path.
	assert.Empty(t, FieldValues(d, mustPath(t, "material/nothing/here")))
}

func TestScaleComposition(t *testing.T) {
	// round(v * f) at the token's own precision, half away from zero.
	cases := []struct {
		token   string
		factor  rules.Factor
		inverse bool
		want    string
	}{
		{"10.0", rules.Factor{Num: 2, Den: 1}, false, "20.0"},
		{"10", rules.Factor{Num: 3, Den: 1}, false, "30"},
		{"0.125", rules.Factor{Num: 2, Den: 1}, false, "0.250"},
		{"1.5", rules.Factor{Num: 3, Den: 2}, false, "2.3"},   // 2.25 rounds up, away from zero
		{"-1.5", rules.Factor{Num: 3, Den: 2}, false, "-2.3"}, // -2.25 rounds down, away from zero
		{"0.05", rules.Factor{Num: 3, Den: 1}, false, "0.15"},
		{"7", rules.Factor{Num: 2, Den: 1}, true, "4"}, // 3.5 rounds away from zero
		{"10.0", rules.Factor{Num: 4, Den: 1}, true, "2.5"},
		{" 10.0 ", rules.Factor{Num: 2, Den: 1}, false, " 20.0 "},
	}
	for _, tc := range cases {
		name := fmt.Sprintf("%s x%s inv=%v", tc.token, tc.factor, tc.inverse)
		t.Run(name, func(t *testing.T) {
			got, err := scaleToken(tc.token, tc.factor, tc.inverse)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := scaleToken("wide", rules.Factor{Num: 2, Den: 1}, false)
	assert.Error(t, err)
}

func TestScaleComposition_AllFactors(t *testing.T) {
	tokens := []string{"0.5", "1.25", "2", "10.0", "33.333", "-4.5", "100"}
	factors := []rules.Factor{{Num: 1, Den: 1}, {Num: 2, Den: 1}, {Num: 3, Den: 1}, {Num: 4, Den: 1}, {Num: 3, Den: 2}}
	for _, tok := range tokens {
		for _, f := range factors {
			got, err := scaleToken(tok, f, false)
			require.NoError(t, err)
			assert.Equal(t, decimals(tok), decimals(got),
				"precision of %q must survive scaling by %s (got %q)", tok, f, got)
			if f.IsCanonical() {
				assert.Equal(t, tok, got)
			}
		}
	}
}
