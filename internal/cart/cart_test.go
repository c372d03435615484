package cart

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.UnixMilli(1_700_000_000_000)
	t1 = t0.Add(time.Second)
)

func knownSet(ids ...string) func(string) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

func TestAddAppendsAndIncrements(t *testing.T) {
	c := NewGuestCart(t0)
	c.Add("p1", 2, t1)
	c.Add("p2", 0, t1)
	c.Add("p1", 3, t1)

	assert.Equal(t, []Line{{ItemID: "p1", Quantity: 5}, {ItemID: "p2", Quantity: 1}}, c.Items)
	assert.Equal(t, t1.UnixMilli(), c.UpdatedAt)
}

func TestSetQuantity(t *testing.T) {
	c := NewGuestCart(t0)
	c.Add("p1", 1, t0)
	c.Add("p2", 4, t0)

	require.NoError(t, c.SetQuantity("p1", 7, t1))
	assert.Equal(t, 7, c.Quantity("p1"))

	require.NoError(t, c.SetQuantity("p2", 0, t1))
	assert.Equal(t, 0, c.Quantity("p2"))
	assert.Len(t, c.Items, 1)

	before := c.Clone()
	err := c.SetQuantity("missing", 2, t1.Add(time.Second))
	assert.ErrorIs(t, err, ErrNotInCart)
	assert.Equal(t, before, c, "a rejected update leaves the cart untouched")

	require.NoError(t, c.SetQuantity("missing", -1, t1.Add(time.Second)))
	assert.Equal(t, t1.Add(time.Second).UnixMilli(), c.UpdatedAt)
}

func TestRemove(t *testing.T) {
	c := NewGuestCart(t0)
	c.Add("p1", 1, t0)

	assert.True(t, c.Remove("p1", t1))
	assert.True(t, c.IsEmpty())
	assert.False(t, c.Remove("p1", t1.Add(time.Second)))
	assert.Equal(t, t1.Add(time.Second).UnixMilli(), c.UpdatedAt)
}

func TestMergeSumsQuantities(t *testing.T) {
	c := NewServerCart(uuid.New(), t0)
	c.Add("x", 1, t0)

	report := c.Merge([]Line{{ItemID: "x", Quantity: 2}, {ItemID: "y", Quantity: 1}}, knownSet("x", "y"), t1)

	assert.Equal(t, MergeReport{Merged: 2}, report)
	assert.Equal(t, []Line{{ItemID: "x", Quantity: 3}, {ItemID: "y", Quantity: 1}}, c.Items)
}

func TestMergeDropsUnknownItems(t *testing.T) {
	c := NewServerCart(uuid.New(), t0)
	c.Add("x", 1, t0)
	before := c.Clone()

	report := c.Merge([]Line{{ItemID: "ghost", Quantity: 4}, {ItemID: " ", Quantity: 1}}, knownSet("x"), t1)

	assert.Equal(t, MergeReport{Dropped: 2}, report)
	assert.Equal(t, before.Items, c.Items)
	assert.Equal(t, t1.UnixMilli(), c.UpdatedAt)
}

func TestMergeFloorsQuantityAtOne(t *testing.T) {
	c := NewServerCart(uuid.New(), t0)
	c.Merge([]Line{{ItemID: "x", Quantity: 0}, {ItemID: "x", Quantity: -3}}, knownSet("x"), t1)
	assert.Equal(t, 2, c.Quantity("x"))
}

func TestNormalize(t *testing.T) {
	c := &Cart{Items: []Line{
		{ItemID: "a", Quantity: 1},
		{ItemID: "", Quantity: 2},
		{ItemID: "b", Quantity: 0},
		{ItemID: " a", Quantity: 2},
	}}
	assert.True(t, c.Normalize())
	assert.Equal(t, []Line{{ItemID: "a", Quantity: 3}}, c.Items)
	assert.False(t, c.Normalize())

	empty := &Cart{}
	empty.Normalize()
	assert.NotNil(t, empty.Items)
}

func TestCloneIsDeep(t *testing.T) {
	c := NewServerCart(uuid.New(), t0)
	c.Add("p1", 1, t0)
	cp := c.Clone()
	cp.Items[0].Quantity = 9
	*cp.UserID = uuid.Nil

	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.NotEqual(t, uuid.Nil, *c.UserID)
	assert.Nil(t, (*Cart)(nil).Clone())
}

func assertCartInvariants(t *testing.T, c *Cart, step string) {
	t.Helper()
	seen := make(map[string]bool, len(c.Items))
	for _, line := range c.Items {
		require.GreaterOrEqual(t, line.Quantity, 1, step)
		require.LessOrEqual(t, line.Quantity, MaxLineQuantity, step)
		require.False(t, seen[line.ItemID], "%s: duplicate line %q", step, line.ItemID)
		seen[line.ItemID] = true
	}
}

func TestRandomOperationSequencesKeepInvariants(t *testing.T) {
	ids := []string{"p1", "p2", "p3", "p4"}
	quantities := []int{math.MinInt, -3, 0, 1, 2, 7, MaxLineQuantity, math.MaxInt}

	for seed := uint64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*31))
		c := NewGuestCart(t0)
		for step := 0; step < 200; step++ {
			id := ids[rng.IntN(len(ids))]
			qty := quantities[rng.IntN(len(quantities))]
			var desc string
			switch rng.IntN(4) {
			case 0:
				c.Add(id, qty, t1)
				desc = "add"
			case 1:
				err := c.SetQuantity(id, qty, t1)
				if err != nil {
					require.ErrorIs(t, err, ErrNotInCart)
				}
				desc = "set"
			case 2:
				c.Remove(id, t1)
				desc = "remove"
			default:
				c.Merge([]Line{{ItemID: id, Quantity: qty}}, knownSet(ids...), t1)
				desc = "merge"
			}
			assertCartInvariants(t, c, fmt.Sprintf("seed %d step %d %s(%s, %d)", seed, step, desc, id, qty))
		}
	}
}

func TestAddSaturatesInsteadOfWrapping(t *testing.T) {
	c := NewGuestCart(t0)
	c.Add("p1", math.MaxInt, t1)
	c.Add("p1", 1, t1)
	assert.Equal(t, MaxLineQuantity, c.Quantity("p1"))

	c.Merge([]Line{{ItemID: "p1", Quantity: math.MaxInt}}, knownSet("p1"), t1)
	assert.Equal(t, MaxLineQuantity, c.Quantity("p1"))

	require.NoError(t, c.SetQuantity("p1", math.MaxInt, t1))
	assert.Equal(t, MaxLineQuantity, c.Quantity("p1"))

	dup := &Cart{Items: []Line{{ItemID: "a", Quantity: math.MaxInt}, {ItemID: "a", Quantity: math.MaxInt}}}
	assert.True(t, dup.Normalize())
	assert.Equal(t, []Line{{ItemID: "a", Quantity: MaxLineQuantity}}, dup.Items)
}

func TestMergeIsOrderIndependent(t *testing.T) {
	orders := [][]Line{
		{{ItemID: "x", Quantity: 2}, {ItemID: "y", Quantity: 1}},
		{{ItemID: "y", Quantity: 1}, {ItemID: "x", Quantity: 2}},
	}
	var results []map[string]int
	for _, guest := range orders {
		c := NewServerCart(uuid.New(), t0)
		c.Add("x", 1, t0)
		c.Merge(guest, knownSet("x", "y"), t1)
		got := make(map[string]int, len(c.Items))
		for _, line := range c.Items {
			got[line.ItemID] = line.Quantity
		}
		results = append(results, got)
	}
	assert.Equal(t, map[string]int{"x": 3, "y": 1}, results[0])
	assert.Equal(t, results[0], results[1])
}
