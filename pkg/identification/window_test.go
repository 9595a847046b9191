package identification

import (
	"reflect"
	"testing"
)

func TestInnovationWindowKeepsMostRecentInOrder(t *testing.T) {
	w := NewInnovationWindow(WindowSize, 1)
	for i := 1; i <= 10; i++ {
		w.Push([]float64{float64(i)})
		if w.Len() > WindowSize {
			t.Fatalf("window grew past capacity: %d", w.Len())
		}
		want := i
		if want > WindowSize {
			want = WindowSize
		}
		if w.Len() != want {
			t.Fatalf("after %d pushes expected len %d, got %d", i, want, w.Len())
		}
	}

	got := w.Snapshot()
	want := [][]float64{{5}, {6}, {7}, {8}, {9}, {10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected window contents: %v", got)
	}
}

func TestInnovationWindowCopiesInput(t *testing.T) {
	w := NewInnovationWindow(3, 2)
	v := []float64{1, 2}
	w.Push(v)
	v[0] = 99
	if got := w.Snapshot()[0][0]; got != 1 {
		t.Fatalf("window aliases caller slice: %f", got)
	}
}

func TestInnovationWindowMean(t *testing.T) {
	w := NewInnovationWindow(3, 2)
	if mean := w.Mean(nil); mean[0] != 0 || mean[1] != 0 {
		t.Fatalf("empty window mean should be zero: %v", mean)
	}
	w.Push([]float64{1, 10})
	w.Push([]float64{2, 20})
	w.Push([]float64{3, 30})
	w.Push([]float64{4, 40})

	mean := w.Mean(make([]float64, 2))
	if mean[0] != 3 || mean[1] != 30 {
		t.Fatalf("unexpected mean: %v", mean)
	}
}

func TestInnovationWindowReset(t *testing.T) {
	w := NewInnovationWindow(2, 1)
	w.Push([]float64{1})
	w.Reset()
	if w.Len() != 0 || len(w.Snapshot()) != 0 {
		t.Fatalf("reset should empty the window")
	}
	if w.Cap() != 2 {
		t.Fatalf("reset changed capacity: %d", w.Cap())
	}
}
