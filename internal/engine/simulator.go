package engine

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

// DefaultImbalanceDepth is the number of levels per side used for imbalance.
const DefaultImbalanceDepth = 15

var hundred = decimal.NewFromInt(100)

// Simulate walks order against book using DefaultImbalanceDepth.
func Simulate(book adapter.Book, order SimulatedOrder) Result {
	return SimulateDepth(book, order, DefaultImbalanceDepth)
}

// SimulateDepth estimates fill quantity, average price, slippage and cost
// for order, plus book imbalance over imbalanceDepth levels. It never fails:
// unusable input (no quantity, unknown side or type, limit without a price,
// nothing on the side being hit) yields a zero Result.
func SimulateDepth(book adapter.Book, order SimulatedOrder, imbalanceDepth int) Result {
	if !order.Quantity.IsPositive() {
		return Result{}
	}
	if order.Type != Limit && order.Type != Market {
		return Result{}
	}
	if order.Type == Limit && !order.Price.IsPositive() {
		return Result{}
	}

	var levels []adapter.Level
	switch order.Side {
	case Buy:
		levels = bestFirst(book.Asks, false)
	case Sell:
		levels = bestFirst(book.Bids, true)
	default:
		return Result{}
	}
	if len(levels) == 0 {
		return Result{}
	}

	remaining := order.Quantity
	cost := decimal.Zero
	filled := decimal.Zero

	for _, l := range levels {
		if !remaining.IsPositive() {
			break
		}
		if order.Type == Limit {
			if order.Side == Buy && l.Price.GreaterThan(order.Price) {
				break
			}
			if order.Side == Sell && l.Price.LessThan(order.Price) {
				break
			}
		}
		take := decimal.Min(remaining, l.Quantity)
		cost = cost.Add(take.Mul(l.Price))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}

	res := Result{
		FilledQuantity:   filled,
		TotalCost:        cost,
		FillPrice:        decimal.Zero,
		SlippagePercent:  decimal.Zero,
		ImbalancePercent: Imbalance(book, imbalanceDepth),
	}
	if filled.IsPositive() {
		res.FillPrice = cost.Div(filled)
		best := levels[0].Price
		res.SlippagePercent = res.FillPrice.Sub(best).Abs().Div(best).Mul(hundred)
	}
	return res
}

// Imbalance is the bid share of resting volume across the top depth levels
// of each side, as a percentage. An empty book is balanced at 50.
func Imbalance(book adapter.Book, depth int) decimal.Decimal {
	if depth <= 0 {
		depth = DefaultImbalanceDepth
	}
	bidVol := volume(bestFirst(book.Bids, true), depth)
	askVol := volume(bestFirst(book.Asks, false), depth)

	total := bidVol.Add(askVol)
	if total.IsZero() {
		return decimal.NewFromInt(50)
	}
	return bidVol.Div(total).Mul(hundred)
}

func volume(levels []adapter.Level, depth int) decimal.Decimal {
	if len(levels) > depth {
		levels = levels[:depth]
	}
	v := decimal.Zero
	for _, l := range levels {
		v = v.Add(l.Quantity)
	}
	return v
}

// bestFirst returns a sorted copy of the usable levels of one side: highest
// price first for bids, lowest first for asks. Levels without a positive
// price and quantity are skipped.
func bestFirst(side []adapter.Level, desc bool) []adapter.Level {
	out := make([]adapter.Level, 0, len(side))
	for _, l := range side {
		if l.Price.IsPositive() && l.Quantity.IsPositive() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
