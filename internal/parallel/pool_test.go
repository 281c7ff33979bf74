package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNewPoolWorkers(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{4, 4},
		{1, 1},
		{0, runtime.GOMAXPROCS(0)},
		{-3, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		p := NewPool(tt.in)
		if got := p.Workers(); got != tt.want {
			t.Errorf("NewPool(%d).Workers() = %d, want %d", tt.in, got, tt.want)
		}
		p.Close()
	}
}

func TestRangeVisitsEveryIndex(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	for _, n := range []int{0, 1, 3, 100, 1000} {
		seen := make([]atomic.Int32, n)
		p.Range(n, func(i int) { seen[i].Add(1) })
		for i := range seen {
			if got := seen[i].Load(); got != 1 {
				t.Fatalf("n=%d: index %d ran %d times", n, i, got)
			}
		}
	}
}

func TestRangeDisjointWrites(t *testing.T) {
	p := NewPool(3)
	defer p.Close()

	rows := make([]int, 64)
	p.Range(8, func(band int) {
		for y := band * 8; y < band*8+8; y++ {
			rows[y] = band
		}
	})
	for y, band := range rows {
		if band != y/8 {
			t.Fatalf("row %d written by band %d", y, band)
		}
	}
}

func TestRangeAfterClose(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()
	if p.Running() {
		t.Fatal("Running() after Close")
	}

	var n atomic.Int32
	p.Range(5, func(int) { n.Add(1) })
	if n.Load() != 5 {
		t.Errorf("Range after Close ran %d of 5", n.Load())
	}
}

func TestConcurrentRange(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var total atomic.Int64
	done := make(chan struct{})
	for range 4 {
		go func() {
			p.Range(50, func(int) { total.Add(1) })
			done <- struct{}{}
		}()
	}
	for range 4 {
		<-done
	}
	if total.Load() != 200 {
		t.Errorf("total = %d, want 200", total.Load())
	}
}
