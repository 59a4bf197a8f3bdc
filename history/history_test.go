package history

import "testing"

func TestPushAndBack(t *testing.T) {
	h := New[int](3)

	if _, ok := h.Back(0); ok {
		t.Fatal("expected empty history to have no newest value")
	}

	for i := 1; i <= 5; i++ {
		h.Push(i)
	}

	if h.Len() != 3 {
		t.Errorf("expected len 3 after overflow, got %d", h.Len())
	}

	want := []int{5, 4, 3}
	for i, w := range want {
		got, ok := h.Back(i)
		if !ok || got != w {
			t.Errorf("Back(%d) = %d,%v; want %d", i, got, ok, w)
		}
	}

	if _, ok := h.Back(3); ok {
		t.Error("expected Back beyond len to fail")
	}
}

func TestBackPtrMutatesNewest(t *testing.T) {
	h := New[int](2)
	h.Push(1)
	h.Push(2)

	*h.BackPtr(0) = 20
	if got, _ := h.Back(0); got != 20 {
		t.Errorf("expected newest to be 20 after BackPtr write, got %d", got)
	}
	if got, _ := h.Back(1); got != 1 {
		t.Errorf("expected older value untouched, got %d", got)
	}
	if h.BackPtr(-1) != nil || h.BackPtr(2) != nil {
		t.Error("expected nil pointer for out of range index")
	}
}

func TestReset(t *testing.T) {
	h := New[string](0)
	if h.Cap() != 1 {
		t.Fatalf("expected capacity clamped to 1, got %d", h.Cap())
	}
	h.Push("a")
	h.Push("b")
	if got, _ := h.Back(0); got != "b" {
		t.Errorf("expected b, got %q", got)
	}

	h.Reset()
	if h.Len() != 0 {
		t.Errorf("expected empty after reset, got len %d", h.Len())
	}
}
