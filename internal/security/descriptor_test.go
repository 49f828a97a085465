package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlldlang/guardcore/internal/config"
	"github.com/mlldlang/guardcore/internal/security"
	"github.com/mlldlang/guardcore/pkg/secmodel"
)

func TestMake_DefaultsTaintFromKnownLabels(t *testing.T) {
	d := security.Make(security.MakeOptions{Labels: []string{"untrusted", "custom", "src:mcp"}})
	assert.ElementsMatch(t, []string{"untrusted", "custom", "src:mcp"}, d.Labels)
	assert.ElementsMatch(t, []string{"untrusted", "src:mcp"}, d.Taint)
}

func TestMake_DeduplicatesLabelsAndSources(t *testing.T) {
	d := security.Make(security.MakeOptions{
		Labels:  []string{"a", "a", "b"},
		Sources: []string{"file.md", "file.md", "other.md"},
	})
	assert.Equal(t, []string{"a", "b"}, d.Labels)
	assert.Equal(t, []string{"file.md", "other.md"}, d.Sources)
}

// TestProperty_TaintMonotonicity asserts merging two descriptors never
// drops a taint tag either side carried.
func TestProperty_TaintMonotonicity(t *testing.T) {
	in1 := security.Make(security.MakeOptions{Labels: []string{"untrusted"}})
	in2 := security.Make(security.MakeOptions{Labels: []string{"secret"}})
	out := security.Merge(in1, in2)
	assert.True(t, security.Subsumes(out, in1))
	assert.True(t, security.Subsumes(out, in2))
	assert.Subset(t, out.Taint, in1.Taint)
	assert.Subset(t, out.Taint, in2.Taint)
}

// TestProperty_MergeCommutativity asserts merge order doesn't affect the
// resulting label set: labels equal regardless of argument order; sources
// differ only in ordering.
func TestProperty_MergeCommutativity(t *testing.T) {
	a := security.Make(security.MakeOptions{Labels: []string{"untrusted"}, Sources: []string{"a.md"}})
	b := security.Make(security.MakeOptions{Labels: []string{"secret"}, Sources: []string{"b.md"}})

	ab := security.Merge(a, b)
	ba := security.Merge(b, a)

	assert.ElementsMatch(t, ab.Labels, ba.Labels)
	assert.ElementsMatch(t, ab.Sources, ba.Sources)
	// Order differs by first-occurrence of the argument list.
	assert.Equal(t, []string{"a.md", "b.md"}, ab.Sources)
	assert.Equal(t, []string{"b.md", "a.md"}, ba.Sources)
}

func TestMerge_PolicyContextRightBiased(t *testing.T) {
	a := secmodel.SecurityDescriptor{PolicyContext: map[string]any{"k": "a", "only_a": 1}}
	b := secmodel.SecurityDescriptor{PolicyContext: map[string]any{"k": "b"}}
	out := security.Merge(a, b)
	require.NotNil(t, out.PolicyContext)
	assert.Equal(t, "b", out.PolicyContext["k"])
	assert.Equal(t, 1, out.PolicyContext["only_a"])
}

func TestNormalize_SortsLabelsDedupesSources(t *testing.T) {
	d := secmodel.SecurityDescriptor{
		Labels:  []string{"z", "a", "m"},
		Sources: []string{"y.md", "a.md", "y.md"},
	}
	n := security.Normalize(d)
	assert.Equal(t, []string{"a", "m", "z"}, n.Labels)
	assert.Equal(t, []string{"y.md", "a.md"}, n.Sources)
}

func TestIsProtectedLabel(t *testing.T) {
	cfg := config.Default()
	assert.True(t, security.IsProtectedLabel(cfg, "untrusted"))
	assert.True(t, security.IsProtectedLabel(cfg, "src:mcp"))
	assert.False(t, security.IsProtectedLabel(cfg, "custom"))
}

func TestWithRemovedLabels_RemovesFromBothSets(t *testing.T) {
	d := security.Make(security.MakeOptions{Labels: []string{"untrusted", "influenced"}})
	out := security.WithRemovedLabels(d, "untrusted")
	assert.NotContains(t, out.Labels, "untrusted")
	assert.NotContains(t, out.Taint, "untrusted")
	assert.Contains(t, out.Labels, "influenced")
}

func TestWithSource_FirstOccurrenceWins(t *testing.T) {
	d := secmodel.SecurityDescriptor{Sources: []string{"a.md"}}
	out := security.WithSource(d, "a.md")
	assert.Equal(t, []string{"a.md"}, out.Sources)
	out2 := security.WithSource(out, "guard:foo")
	assert.Equal(t, []string{"a.md", "guard:foo"}, out2.Sources)
}
