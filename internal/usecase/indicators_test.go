package usecase_test

import (
	"math"
	"testing"

	"github.com/dexflow/dexbot/internal/domain"
	"github.com/dexflow/dexbot/internal/usecase"
)

const epsilon = 0.000001

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func increasing(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func decreasing(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	got := usecase.SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{2, 3, 4}

	if len(got) != len(want) {
		t.Fatalf("SMA length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !floatEquals(got[i], want[i]) {
			t.Errorf("SMA[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestSMA_ShortInput(t *testing.T) {
	if got := usecase.SMA([]float64{1, 2}, 3); got != nil {
		t.Errorf("SMA on short input = %v, want nil", got)
	}
}

func TestRSI_AllGains(t *testing.T) {
	// Every close higher than the last: average loss is zero, RSI pegs at 100.
	rsi := usecase.RSI(increasing(20, 100, 1), 14)

	if len(rsi) != 6 {
		t.Fatalf("RSI length = %d, want 6", len(rsi))
	}
	for i, v := range rsi {
		if v != 100 {
			t.Errorf("RSI[%d] = %f, want 100", i, v)
		}
	}
}

func TestRSI_AllLosses(t *testing.T) {
	rsi := usecase.RSI(decreasing(20, 100, 1), 14)

	if len(rsi) == 0 {
		t.Fatal("expected RSI output")
	}
	for i, v := range rsi {
		if v != 0 {
			t.Errorf("RSI[%d] = %f, want 0", i, v)
		}
	}
}

func TestRSI_ShortInput(t *testing.T) {
	if got := usecase.RSI(increasing(14, 100, 1), 14); got != nil {
		t.Errorf("RSI on short input = %v, want nil", got)
	}
}

func TestMACD_MinimumLength(t *testing.T) {
	// 12/26/9 needs slow+signal-1 = 34 closes for the first point.
	if got := usecase.MACD(increasing(33, 100, 1), 12, 26, 9); got != nil {
		t.Errorf("MACD on 33 closes = %v, want nil", got)
	}

	got := usecase.MACD(increasing(34, 100, 1), 12, 26, 9)
	if len(got) != 1 {
		t.Fatalf("MACD on 34 closes: length = %d, want 1", len(got))
	}
}

func TestMACD_TrendSign(t *testing.T) {
	up := usecase.MACD(increasing(40, 100, 1), 12, 26, 9)
	if len(up) == 0 || up[len(up)-1].MACD <= 0 {
		t.Errorf("MACD line for rising series = %+v, want positive", up)
	}

	down := usecase.MACD(decreasing(40, 100, 1), 12, 26, 9)
	if len(down) == 0 || down[len(down)-1].MACD >= 0 {
		t.Errorf("MACD line for falling series = %+v, want negative", down)
	}
}

func TestBollingerBands_ConstantSeries(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 5
	}

	bands := usecase.BollingerBands(values, 20, 2)
	if len(bands) != 6 {
		t.Fatalf("Bollinger length = %d, want 6", len(bands))
	}
	for i, b := range bands {
		if !floatEquals(b.Middle, 5) || !floatEquals(b.Upper, 5) || !floatEquals(b.Lower, 5) {
			t.Errorf("band[%d] = %+v, want all 5 on flat series", i, b)
		}
	}
}

func TestBollingerBands_KnownWindow(t *testing.T) {
	// Window [1,3]: mean 2, population sd 1, 2-sigma bands at 0 and 4.
	bands := usecase.BollingerBands([]float64{1, 3}, 2, 2)
	if len(bands) != 1 {
		t.Fatalf("Bollinger length = %d, want 1", len(bands))
	}
	b := bands[0]
	if !floatEquals(b.Middle, 2) || !floatEquals(b.Upper, 4) || !floatEquals(b.Lower, 0) {
		t.Errorf("band = %+v, want {2 4 0}", b)
	}
}

func TestStochastic(t *testing.T) {
	candles := []domain.Candle{
		{High: 10, Low: 5, Close: 7},
		{High: 12, Low: 6, Close: 8},
		{High: 11, Low: 7, Close: 9},
	}

	k, d, ok := usecase.Stochastic(candles, 3)
	if !ok {
		t.Fatal("expected stochastic output")
	}

	// Highest high 12, lowest low 5, close 9: %K = (9-5)/(12-5)*100.
	want := (9.0 - 5.0) / (12.0 - 5.0) * 100
	if !floatEquals(k, want) {
		t.Errorf("%%K = %f, want %f", k, want)
	}
	if k != d {
		t.Errorf("%%D = %f, want %%K (%f): this implementation does not smooth", d, k)
	}
}

func TestStochastic_FlatRange(t *testing.T) {
	candles := []domain.Candle{
		{High: 5, Low: 5, Close: 5},
		{High: 5, Low: 5, Close: 5},
	}
	if _, _, ok := usecase.Stochastic(candles, 2); ok {
		t.Error("expected no stochastic on a flat range")
	}
}

func TestStochastic_ShortInput(t *testing.T) {
	if _, _, ok := usecase.Stochastic([]domain.Candle{{High: 1, Low: 0}}, 3); ok {
		t.Error("expected no stochastic on short input")
	}
}
