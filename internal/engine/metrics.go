package engine

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

// DefaultDepthLevels caps the depth curve at this many levels per side.
const DefaultDepthLevels = 50

// BookMetrics summarises the top of book.
type BookMetrics struct {
	BestBid       decimal.Decimal `json:"bestBid"`
	BestAsk       decimal.Decimal `json:"bestAsk"`
	Mid           decimal.Decimal `json:"mid"`
	Spread        decimal.Decimal `json:"spread"`
	SpreadPercent decimal.Decimal `json:"spreadPercent"`
	BidLevels     int             `json:"bidLevels"`
	AskLevels     int             `json:"askLevels"`
}

// Metrics computes top-of-book figures. Mid and spread stay zero unless both
// sides have liquidity.
func Metrics(book adapter.Book) BookMetrics {
	bids := bestFirst(book.Bids, true)
	asks := bestFirst(book.Asks, false)

	m := BookMetrics{BidLevels: len(bids), AskLevels: len(asks)}
	if len(bids) > 0 {
		m.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		m.BestAsk = asks[0].Price
	}
	if len(bids) == 0 || len(asks) == 0 {
		return m
	}

	m.Mid = m.BestBid.Add(m.BestAsk).Div(decimal.NewFromInt(2))
	m.Spread = m.BestAsk.Sub(m.BestBid)
	if m.Mid.IsPositive() {
		m.SpreadPercent = m.Spread.Div(m.Mid).Mul(hundred)
	}
	return m
}

// DepthPoint is one step of the cumulative depth curve.
type DepthPoint struct {
	Side       string          `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// DepthCurve accumulates quantity outward from the best price on each side
// over at most levels levels, and returns the points in ascending price.
func DepthCurve(book adapter.Book, levels int) []DepthPoint {
	if levels <= 0 {
		levels = DefaultDepthLevels
	}

	points := make([]DepthPoint, 0, 2*levels)
	points = appendCumulative(points, "bid", bestFirst(book.Bids, true), levels)
	points = appendCumulative(points, "ask", bestFirst(book.Asks, false), levels)

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Price.LessThan(points[j].Price)
	})
	return points
}

func appendCumulative(dst []DepthPoint, side string, levels []adapter.Level, n int) []DepthPoint {
	if len(levels) > n {
		levels = levels[:n]
	}
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Quantity)
		dst = append(dst, DepthPoint{Side: side, Price: l.Price, Cumulative: total})
	}
	return dst
}
