package permission_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bolt-foundry/gambit/permission"
)

// TestResolveChildIsMonotone checks spec.md §8's headline invariant:
// effective(child) ⊆ effective(parent) for every kind, for arbitrary
// narrowing declaration/reference layers. "⊆" here means every path the
// child's read scope grants is also granted by the parent's.
func TestResolveChildIsMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	universe := []string{"/a", "/a/b", "/a/b/c", "/x", "/x/y"}
	subsetGen := gen.SliceOfN(5, gen.OneConstOf(
		universe[0], universe[1], universe[2], universe[3], universe[4],
	)).Map(func(xs []string) []string {
		seen := map[string]struct{}{}
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if _, ok := seen[x]; !ok {
				seen[x] = struct{}{}
				out = append(out, x)
			}
		}
		return out
	})

	properties.Property("child read scope stays within parent read scope", prop.ForAll(
		func(parentPaths, declPaths, refPaths []string) bool {
			parent := permission.Set{Name: "parent", Read: permission.SetScope(parentPaths...), Write: permission.NoneScope(), Run: permission.NoneRunScope(), Net: permission.NoneScope(), Env: permission.NoneScope()}
			decl := permission.Set{Name: "declaration", Read: permission.SetScope(declPaths...), Write: permission.NoneScope(), Run: permission.NoneRunScope(), Net: permission.NoneScope(), Env: permission.NoneScope()}
			ref := permission.Set{Name: "reference", Read: permission.SetScope(refPaths...), Write: permission.NoneScope(), Run: permission.NoneRunScope(), Net: permission.NoneScope(), Env: permission.NoneScope()}

			res := permission.ResolveChild(parent, decl, ref)
			for _, p := range res.Effective.Read.Tokens() {
				if !parent.Read.Contains(p) {
					return false
				}
			}
			return true
		},
		subsetGen, subsetGen, subsetGen,
	))

	properties.TestingRun(t)
}
