package claims

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpec(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CUE(t *testing.T) {
	path := writeSpec(t, "spec.cue", `
claim: {
	"zeta": {start: "zeta", description: "declared first"}
	"alpha": {
		start:   "alpha"
		program: "build/linked.smir.json"
		depth:   50
	}
}
`)

	idx, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"zeta", "alpha"}, idx.Labels(nil, nil))

	alpha, err := idx.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, 50, alpha.Depth)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "build/linked.smir.json"), alpha.Program)

	zeta, err := idx.Get("zeta")
	require.NoError(t, err)
	assert.Equal(t, "declared first", zeta.Description)
}

func TestLoad_CUEMissingStart(t *testing.T) {
	path := writeSpec(t, "spec.cue", `claim: "ok": {description: "no start"}`)

	idx, err := Load(path)
	require.Error(t, err)
	assert.Nil(t, idx)
	assert.True(t, IsParseError(err))
	assert.Contains(t, err.Error(), "ok.start")
}

func TestLoad_CUEUnknownField(t *testing.T) {
	path := writeSpec(t, "spec.cue", `
claim: {
	"good": {start: "good"}
	"typo": {
		start: "typo"
		strat: "typo"
	}
}
`)

	idx, err := Load(path)
	require.Error(t, err)
	assert.Nil(t, idx)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "typo.strat", pe.Field)
	assert.Equal(t, "unknown claim field", pe.Message)
	assert.Equal(t, path, pe.File)
	assert.Greater(t, pe.Line, 4)
}

func TestLoad_SourceIsPath(t *testing.T) {
	path := writeSpec(t, "spec.yaml", "claims:\n  ok:\n    start: ok\n")

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, idx.Source())
}

func TestLoad_CUESyntaxError(t *testing.T) {
	path := writeSpec(t, "spec.cue", `claim: { "ok": {start: `)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpecParse)
}

func TestLoad_YAMLKeepsOrder(t *testing.T) {
	path := writeSpec(t, "spec.yaml", `
claims:
  c:
    start: c
  a:
    start: a
    depth: 3
  b:
    start: b
`)

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, idx.Labels(nil, nil))
	assert.Equal(t, []string{"a", "b"}, idx.Labels([]string{"b", "a"}, nil))
}

func TestLoad_JSON(t *testing.T) {
	path := writeSpec(t, "spec.json", `{"claims": {"ok": {"start": "ok"}, "bad": {"start": "bad"}}}`)

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "bad"}, idx.Labels(nil, nil))
}

func TestLoad_YAMLIsAtomic(t *testing.T) {
	// The second claim is malformed; the first must not leak into a partial index.
	path := writeSpec(t, "spec.yaml", `
claims:
  good:
    start: good
  broken:
    start: broken
    colour: red
`)

	idx, err := Load(path)
	require.Error(t, err)
	assert.Nil(t, idx)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "broken.colour", pe.Field)
	assert.Equal(t, path, pe.File)
	assert.Greater(t, pe.Line, 0)
}

func TestLoad_EmptySource(t *testing.T) {
	path := writeSpec(t, "spec.yaml", "")

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Labels(nil, nil))
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeSpec(t, "spec.txt", "claims: {}")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.False(t, IsParseError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
