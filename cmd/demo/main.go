// cmd/demo walks through the order book and indicator APIs on fixed data and
// logs the results. It needs no feed, Redis or SQLite.
package main

import (
	"log/slog"
	"os"

	"market-data-processor/internal/indicator"
	"market-data-processor/internal/logger"
	"market-data-processor/internal/orderbook"
)

var prices = []float64{
	50000, 50100, 50050, 50200, 50150,
	50300, 50250, 50400, 50350, 50500,
	50450, 50600, 50550, 50700, 50650,
	50800, 50750, 50900, 50850, 51000,
}

func main() {
	logger.Init("demo", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	slog.Info("starting market data processor demo")

	demoOrderBook()
	demoIndicators()

	slog.Info("demo completed")
}

func demoOrderBook() {
	ob := orderbook.New("BTCUSD")
	ob.UpdateBid(50000, 1.5)
	ob.UpdateBid(49999, 2.0)
	ob.UpdateBid(49998, 1.0)
	ob.UpdateAsk(50001, 1.0)
	ob.UpdateAsk(50002, 1.5)
	ob.UpdateAsk(50003, 2.0)

	log := slog.With("symbol", ob.Symbol())
	if l, ok := ob.BestBid(); ok {
		log.Info("best bid", "price", l.Price, "qty", l.Quantity)
	}
	if l, ok := ob.BestAsk(); ok {
		log.Info("best ask", "price", l.Price, "qty", l.Quantity)
	}
	if mid, ok := ob.MidPrice(); ok {
		log.Info("mid price", "value", mid)
	}
	if spread, ok := ob.Spread(); ok {
		log.Info("spread", "value", spread)
	}
	if pct, ok := ob.SpreadPercentage(); ok {
		log.Info("spread pct", "value", pct)
	}
	log.Info("volume imbalance", "value", ob.VolumeImbalance(),
		"bid_volume", ob.TotalBidVolume(), "ask_volume", ob.TotalAskVolume())

	for _, l := range ob.TopBids(3) {
		log.Info("top bid", "price", l.Price, "qty", l.Quantity)
	}
	for _, l := range ob.TopAsks(3) {
		log.Info("top ask", "price", l.Price, "qty", l.Quantity)
	}
}

func demoIndicators() {
	sma := indicator.NewSMA(10)
	for i, p := range prices {
		if v, ok := sma.Update(p); ok {
			slog.Info("sma", "period", 10, "price", p, "value", v)
		} else {
			slog.Info("sma warming up", "period", 10, "price", p, "seen", i+1)
		}
	}

	ema := indicator.NewEMA(10)
	for _, p := range prices[:5] {
		if v, ok := ema.Update(p); ok {
			slog.Info("ema", "period", 10, "price", p, "value", v)
		}
	}

	rsi := indicator.NewRSI(14)
	for _, p := range prices {
		if v, ok := rsi.Update(p); ok {
			slog.Info("rsi", "period", 14, "price", p, "value", v)
		}
	}

	bb := indicator.NewBollingerBands(20, 2)
	for _, p := range prices {
		if b, ok := bb.Update(p); ok {
			slog.Info("bollinger", "price", p, "upper", b.Upper, "middle", b.Middle, "lower", b.Lower)
		}
	}

	macd := indicator.NewMACD(12, 26, 9)
	for _, p := range prices {
		if m, ok := macd.Update(p); ok {
			slog.Info("macd", "price", p, "line", m.Line, "signal", m.Signal, "histogram", m.Histogram)
		}
	}
}
