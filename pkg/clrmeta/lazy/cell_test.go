package lazy

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestCell_GetComputesOnce(t *testing.T) {
	var c Cell[int]
	var calls int32

	got := c.Get(func() int {
		atomic.AddInt32(&calls, 1)
		return 42
	})
	if got != 42 {
		t.Fatalf("Get() = %d, want 42", got)
	}

	got = c.Get(func() int {
		atomic.AddInt32(&calls, 1)
		return 99
	})
	if got != 42 {
		t.Errorf("second Get() = %d, want 42 (cached value must not change)", got)
	}
	if calls != 1 {
		t.Errorf("init ran %d times, want 1", calls)
	}
}

func TestCell_ConcurrentGetIdempotence(t *testing.T) {
	var c Cell[int]
	const goroutines = 64

	var wg sync.WaitGroup
	results := make([]int, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = c.Get(func() int { return 7 })
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != 7 {
			t.Errorf("results[%d] = %d, want 7", i, got)
		}
	}
}

func TestCell_SetBypassesInit(t *testing.T) {
	var c Cell[string]
	c.Set("override")
	got := c.Get(func() string {
		t.Fatal("init must not run after Set")
		return ""
	})
	if got != "override" {
		t.Errorf("Get() after Set() = %q, want %q", got, "override")
	}
}

func TestCell_Reset(t *testing.T) {
	var c Cell[int]
	c.Get(func() int { return 1 })
	if !c.IsSet() {
		t.Fatal("IsSet() = false after Get()")
	}

	c.Reset()
	if c.IsSet() {
		t.Error("IsSet() = true after Reset()")
	}

	got := c.Get(func() int { return 2 })
	if got != 2 {
		t.Errorf("Get() after Reset() = %d, want 2", got)
	}
}

func TestCell_IsSetWithoutInit(t *testing.T) {
	var c Cell[int]
	if c.IsSet() {
		t.Error("IsSet() = true on a zero-value Cell")
	}
}
