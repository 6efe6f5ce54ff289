package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationIDDeterministic(t *testing.T) {
	args := []byte(`[1,"Frost"]`)

	a, err := OperationID("peer-a", "Comp:Toggle", args, 7)
	require.NoError(t, err)
	b, err := OperationID("peer-a", "Comp:Toggle", args, 7)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestOperationIDSensitiveToEveryField(t *testing.T) {
	base := MustOperationID("peer-a", "Comp:Toggle", []byte(`[1]`), 7)

	assert.NotEqual(t, base, MustOperationID("peer-b", "Comp:Toggle", []byte(`[1]`), 7))
	assert.NotEqual(t, base, MustOperationID("peer-a", "Comp:Other", []byte(`[1]`), 7))
	assert.NotEqual(t, base, MustOperationID("peer-a", "Comp:Toggle", []byte(`[2]`), 7))
	assert.NotEqual(t, base, MustOperationID("peer-a", "Comp:Toggle", []byte(`[1]`), 8))
}

func TestFoldChecksumOrderSensitive(t *testing.T) {
	ab := FoldChecksum(FoldChecksum("", "a", "applied"), "b", "applied")
	ba := FoldChecksum(FoldChecksum("", "b", "applied"), "a", "applied")
	assert.NotEqual(t, ab, ba)

	failed := FoldChecksum(FoldChecksum("", "a", "applied"), "b", "failed")
	assert.NotEqual(t, ab, failed, "outcome is part of the checksum")
}

func TestMethodID(t *testing.T) {
	spec := MethodSpec{Type: "VFECore.Abilities.Ability", Name: "CreateCastJob"}
	assert.Equal(t, "VFECore.Abilities.Ability:CreateCastJob", spec.ID())
}
