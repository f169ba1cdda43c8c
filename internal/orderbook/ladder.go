package orderbook

import (
	"math"

	"github.com/google/btree"

	"market-data-processor/internal/model"
)

// btreeDegree keeps nodes around two cache lines of levels.
const btreeDegree = 16

// comparePrices is a total order over float64 prices: ordinary values compare
// numerically, -0 equals +0, and NaN sorts after +Inf with all NaNs equal.
func comparePrices(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func lessLevel(a, b model.PriceLevel) bool {
	return comparePrices(a.Price, b.Price) < 0
}

// ladder is one side of the book: unique prices in ascending order, each with a
// strictly positive aggregate quantity.
type ladder struct {
	tree *btree.BTreeG[model.PriceLevel]
}

func newLadder() ladder {
	return ladder{tree: btree.NewG[model.PriceLevel](btreeDegree, lessLevel)}
}

// set upserts price; qty == 0 removes the level.
func (l ladder) set(price, qty float64) {
	if qty == 0 {
		l.tree.Delete(model.PriceLevel{Price: price})
		return
	}
	l.tree.ReplaceOrInsert(model.PriceLevel{Price: price, Quantity: qty})
}

func (l ladder) min() (model.PriceLevel, bool) { return l.tree.Min() }
func (l ladder) max() (model.PriceLevel, bool) { return l.tree.Max() }
func (l ladder) len() int                      { return l.tree.Len() }
func (l ladder) clear()                        { l.tree.Clear(false) }

// ascending returns up to n levels starting at the lowest price. n < 0 means all.
func (l ladder) ascending(n int) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, capFor(n, l.len()))
	if n == 0 {
		return out
	}
	l.tree.Ascend(func(pl model.PriceLevel) bool {
		out = append(out, pl)
		return n < 0 || len(out) < n
	})
	return out
}

// descending returns up to n levels starting at the highest price. n < 0 means all.
func (l ladder) descending(n int) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, capFor(n, l.len()))
	if n == 0 {
		return out
	}
	l.tree.Descend(func(pl model.PriceLevel) bool {
		out = append(out, pl)
		return n < 0 || len(out) < n
	})
	return out
}

func (l ladder) volume() float64 {
	total := 0.0
	l.tree.Ascend(func(pl model.PriceLevel) bool {
		total += pl.Quantity
		return true
	})
	return total
}

func capFor(n, size int) int {
	if n < 0 || n > size {
		return size
	}
	return n
}
