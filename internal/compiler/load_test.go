package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcompat/internal/ir"
)

const twoGroups = `
package groups

group: verbs: {
	symbols: {
		"Verse.Verb":            {kind: "type"}
		"Verse.Verb:TryStart":   {kind: "method", arity: 1}
	}
	methods: [{type: "Verse.Verb", name: "TryStart"}]
}

group: chooser: {
	phase: "late"
	symbols: "Chooser.Menu:Pick": {kind: "method", arity: 1}
}
`

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func TestLoadGroups(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "groups.cue", twoGroups)

	result, errs := LoadGroups(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.FileCount)

	require.Len(t, result.Groups, 2)
	assert.Equal(t, "verbs", result.Groups[0].Name)
	assert.Equal(t, ir.PhaseImmediate, result.Groups[0].Phase)
	assert.Equal(t, "chooser", result.Groups[1].Name)
	assert.Equal(t, ir.PhaseLate, result.Groups[1].Phase)
}

func TestLoadGroupsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "a.cue", `
package groups

group: alpha: symbols: "A": {kind: "type"}
`)
	writeCUE(t, dir, "b.cue", `
package groups

group: beta: symbols: "B": {kind: "type"}
`)

	result, errs := LoadGroups(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 2, result.FileCount)
	assert.Len(t, result.Groups, 2)
}

func TestLoadGroupsMissingDir(t *testing.T) {
	_, errs := LoadGroups(filepath.Join(t.TempDir(), "nope"), LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadGroupsNoFiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "notes.txt", "not cue")

	_, errs := LoadGroups(dir, LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestLoadGroupsCollectAllKeepsGoodGroups(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "groups.cue", `
package groups

group: good: symbols: "A": {kind: "type"}
group: bad: {
	phase: "sometime"
	symbols: "B": {kind: "type"}
}
group: worse: symbols: "C": {kind: "property"}
`)

	result, errs := LoadGroups(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "good", result.Groups[0].Name)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrInvalidPhase, le.Code)
	require.ErrorAs(t, errs[1], &le)
	assert.Equal(t, ErrInvalidKind, le.Code)
}

func TestLoadGroupsFailFast(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "groups.cue", `
package groups

group: bad: symbols: "B": {arity: 1}
group: worse: symbols: "C": {kind: "property"}
`)

	_, errs := LoadGroups(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "group.bad")
}

func TestCompileSource(t *testing.T) {
	groups, err := CompileSource("groups.cue", []byte(twoGroups))
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Verse.Verb:TryStart", groups[0].Methods[0].ID())
}

func TestCompileSourceErrors(t *testing.T) {
	_, err := CompileSource("empty.cue", []byte(`other: 1`))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNoGroups, le.Code)

	_, err = CompileSource("broken.cue", []byte(`group: {`))
	require.Error(t, err)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
}
