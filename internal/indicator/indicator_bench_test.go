package indicator

import (
	"testing"

	"market-data-processor/internal/model"
)

func benchPrice(i int) float64 { return 100 + float64(i%50)*0.25 }

func BenchmarkSMA_Update(b *testing.B) {
	sma := NewSMA(20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sma.Update(benchPrice(i))
	}
}

func BenchmarkEMA_Update(b *testing.B) {
	ema := NewEMA(20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ema.Update(benchPrice(i))
	}
}

func BenchmarkRSI_Update(b *testing.B) {
	rsi := NewRSI(14)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rsi.Update(benchPrice(i))
	}
}

func BenchmarkBB_Update(b *testing.B) {
	bb := NewBollingerBands(20, 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bb.Update(benchPrice(i))
	}
}

func BenchmarkMACD_Update(b *testing.B) {
	m := NewMACD(12, 26, 9)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Update(benchPrice(i))
	}
}

func BenchmarkEngine_Process(b *testing.B) {
	configs, err := ParseSpecs(DefaultSpecs)
	if err != nil {
		b.Fatal(err)
	}
	e := NewEngine(configs)
	tick := model.Tick{Symbol: "BTCUSD", Qty: 1, TS: testBase}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tick.Price = benchPrice(i)
		e.Process(tick)
	}
}
