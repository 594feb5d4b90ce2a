package permission_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/permission"
)

func mustNormalize(t *testing.T, name string, d permission.Declaration) permission.Set {
	t.Helper()
	s, err := permission.Normalize(name, d)
	require.NoError(t, err)
	return s
}

// TestMonotonicityScenario reproduces spec.md §8 scenario 5: workspace
// grants read to two dirs and run to two commands; declaration narrows
// read and run; session narrows read further. The effective read set
// should end up as the single surviving directory and run should collapse
// to none (the declaration's narrowed command set never includes a
// command the session re-widens — session doesn't declare run at all, so
// it defaults to none, which matches spec.md's "unspecified kinds default
// to none when any kind in the layer is specified").
func TestMonotonicityScenario(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, root, "workspace/decks")
	mustMkdir(t, root, "workspace/shared")

	host := mustNormalize(t, "host", permission.Declaration{BaseDir: root, Read: true, Write: true, Run: true, Net: true, Env: true})
	workspace := mustNormalize(t, "workspace", permission.Declaration{
		BaseDir: filepath.Join(root, "workspace"),
		Read:    []string{"./decks", "./shared"},
		Run:     permission.RunDeclaration{Commands: []string{"deno", "bash"}},
	})
	declaration := mustNormalize(t, "declaration", permission.Declaration{
		BaseDir: filepath.Join(root, "workspace", "decks"),
		Read:    []string{"../shared"},
		Run:     permission.RunDeclaration{Commands: []string{"deno"}},
	})
	session := mustNormalize(t, "session", permission.Declaration{
		BaseDir: filepath.Join(root, "workspace"),
		Read:    []string{"./shared"},
	})

	res := permission.ResolveRoot(host, workspace, declaration, session)
	checker := permission.NewChecker(res.Effective)

	assert.True(t, checker.CanRead(filepath.Join(root, "workspace", "shared")))
	assert.False(t, checker.CanRead(filepath.Join(root, "workspace", "decks")))
	assert.False(t, checker.CanRunCommand("deno"), "session layer never declared run, so it defaults to none")
	assert.Len(t, res.Trace, 4)
}

// TestSymlinkEscape reproduces spec.md §8 scenario 6.
func TestSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, root, "allowed")
	mustMkdir(t, root, "outside")
	require.NoError(t, os.WriteFile(filepath.Join(root, "outside", "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "outside"), filepath.Join(root, "allowed", "linked")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "allowed", "safe.txt"), []byte("x"), 0o644))

	set := mustNormalize(t, "declaration", permission.Declaration{
		BaseDir: root,
		Write:   []string{"./allowed"},
	})
	checker := permission.NewChecker(set)

	assert.False(t, checker.CanWrite(filepath.Join(root, "allowed", "linked", "x")))
	assert.True(t, checker.CanWrite(filepath.Join(root, "allowed", "safe.txt")))
}

func TestObjectFormRunBooleanRejected(t *testing.T) {
	_, err := permission.Normalize("declaration", permission.Declaration{
		BaseDir: t.TempDir(),
		Run:     permission.RunDeclaration{Paths: true},
	})
	assert.Error(t, err)
}

func mustMkdir(t *testing.T, root, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, rel), 0o755))
}
