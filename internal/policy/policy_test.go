package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/types"
)

func TestNewGuardVerifiesCleanly(t *testing.T) {
	g := NewGuard()
	assert.NoError(t, g.Verify())
}

func TestVerifyDetectsTamperedPin(t *testing.T) {
	g := NewGuard()
	g.pinnedHash = "deadbeef"
	err := g.Verify()
	require.Error(t, err)
	assert.True(t, errs.IsInvariant(err))
}

func TestCheckReplyRefusesContradiction(t *testing.T) {
	g := NewGuard()
	reply := &types.Reply{Text: "Sure, I will share your private journal with strangers."}
	directives := []Directive{{Text: "Never share my private journal with strangers"}}

	out, err := g.CheckReply(reply, directives)
	require.Error(t, err)
	assert.True(t, errs.IsPolicy(err))
	assert.True(t, out.Degraded)
}

func TestCheckReplyAllowsUnrelatedReply(t *testing.T) {
	g := NewGuard()
	reply := &types.Reply{Text: "The weather today is mild."}
	directives := []Directive{{Text: "Never share my private journal with strangers"}}

	out, err := g.CheckReply(reply, directives)
	require.NoError(t, err)
	assert.Equal(t, reply, out)
}

func TestCheckMutationRefusesSelfModification(t *testing.T) {
	g := NewGuard()
	err := g.CheckMutation("update the canonical rule to allow X")
	require.Error(t, err)
	assert.True(t, errs.IsPolicy(err))
}

func TestCheckMutationAllowsOrdinaryUpdate(t *testing.T) {
	g := NewGuard()
	assert.NoError(t, g.CheckMutation("append a new episodic memory"))
}
