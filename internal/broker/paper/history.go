package paper

import (
	"encoding/binary"
	"hash/fnv"
	"time"

	"github.com/scmhub/calendar"
	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/broker"
)

// DefaultMarket is the exchange calendar used for synthetic history.
const DefaultMarket = "xkrx"

// Calendar returns the exchange calendar for a MIC code, or nil if unknown.
func Calendar(mic string) *calendar.Calendar {
	if mic == "" {
		mic = DefaultMarket
	}
	return calendar.GetCalendar(mic)
}

// synthesizeDaily builds a deterministic daily series for symbol over the
// business days of cal in [start, end]. The walk starts at base and moves at
// most 2% per day; the same inputs always give the same candles.
func synthesizeDaily(cal *calendar.Calendar, symbol string, base decimal.Decimal, start, end time.Time) []broker.Candle {
	out := []broker.Candle{}
	if base.LessThanOrEqual(decimal.Zero) || end.Before(start) {
		return out
	}

	loc := cal.Loc
	if loc == nil {
		loc = time.UTC
	}
	day := time.Date(start.In(loc).Year(), start.In(loc).Month(), start.In(loc).Day(), 0, 0, 0, 0, loc)
	if day.Before(start) {
		day = day.AddDate(0, 0, 1)
	}

	prev := base
	for ; !day.After(end); day = day.AddDate(0, 0, 1) {
		if !cal.IsBusinessDay(day) {
			continue
		}
		h := dayHash(symbol, day)

		// Daily move in basis points, [-200, 200]
		move := decimal.NewFromInt(int64(h%401) - 200).Div(decimal.NewFromInt(10000))
		// Intraday range in basis points, [0, 100]
		spread := decimal.NewFromInt(int64((h>>16)%101)).Div(decimal.NewFromInt(10000))

		open := prev
		last := open.Mul(decimal.NewFromInt(1).Add(move)).Round(0)
		if last.LessThanOrEqual(decimal.Zero) {
			last = open
		}
		top, bottom := decimal.Max(open, last), decimal.Min(open, last)
		high := decimal.Max(top, top.Mul(decimal.NewFromInt(1).Add(spread)).Round(0))
		low := decimal.Min(bottom, bottom.Mul(decimal.NewFromInt(1).Sub(spread)).Round(0))
		if !low.IsPositive() {
			low = bottom
		}

		out = append(out, broker.Candle{
			Timestamp: day,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     last,
			Volume:    int64(1000 + (h>>32)%100000),
		})
		prev = last
	}
	return out
}

func dayHash(symbol string, day time.Time) uint64 {
	f := fnv.New64a()
	f.Write([]byte(symbol))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(day.Unix()))
	f.Write(buf[:])
	return f.Sum64()
}
