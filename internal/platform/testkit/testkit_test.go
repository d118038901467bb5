package testkit

import "testing"

func TestMustPanicAndMustNotPanic(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	MustContain(t, "cursor pagination engine", "pagination")
}

func TestSwapRestores(t *testing.T) {
	Serial(t)

	v := 1
	seam := &v
	t.Run("inner", func(t *testing.T) {
		Swap(t, seam, 2)
		if *seam != 2 {
			t.Fatalf("Swap did not apply: %d", *seam)
		}
	})
	if *seam != 1 {
		t.Fatalf("Swap did not restore: %d", *seam)
	}
}
