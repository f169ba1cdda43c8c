package indicator

import (
	"reflect"
	"testing"
)

func TestWindow_EvictsOldest(t *testing.T) {
	w := newWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.push(v)
	}
	if !w.full() {
		t.Fatal("window should be full")
	}
	if got, want := w.values(), []float64{3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("values() = %v, want %v", got, want)
	}
	assertClose(t, "sum", w.sum(), 12, 0)
	assertClose(t, "mean", w.mean(), 4, 0)
}

func TestWindow_PartialMeanDividesByPeriod(t *testing.T) {
	w := newWindow(4)
	w.push(2)
	w.push(6)
	if w.full() || w.len() != 2 {
		t.Fatalf("len=%d full=%v, want 2/false", w.len(), w.full())
	}
	assertClose(t, "mean", w.mean(), 2, 0)
}

func TestWindow_LoadKeepsNewest(t *testing.T) {
	w := newWindow(2)
	w.load([]float64{1, 2, 3})
	if got, want := w.values(), []float64{2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("values() = %v, want %v", got, want)
	}
	w.reset()
	if w.len() != 0 || len(w.values()) != 0 {
		t.Fatal("reset should empty the window")
	}
}
