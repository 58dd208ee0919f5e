package working

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/echocog/persona-core/internal/types"
)

func TestLowestEvictableSkipsCurrentTurn(t *testing.T) {
	items := []*types.WorkingItem{
		{ItemID: "a", Salience: 0.1, CurrentTurn: true},
		{ItemID: "b", Salience: 0.2},
		{ItemID: "c", Salience: 0.15},
	}
	lowest := lowestEvictable(items)
	assert.Equal(t, "c", lowest.ItemID)
}

func TestLowestEvictableAllProtected(t *testing.T) {
	items := []*types.WorkingItem{
		{ItemID: "a", Salience: 0.1, CurrentTurn: true},
	}
	assert.Nil(t, lowestEvictable(items))
}

func TestLowestEvictableEmpty(t *testing.T) {
	assert.Nil(t, lowestEvictable(nil))
}
