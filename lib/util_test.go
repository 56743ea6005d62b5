package lib

import "testing"
import "strings"

func TestIspowerof2(t *testing.T) {
	for _, x := range []int64{1, 2, 4, 64, 4096} {
		if !Ispowerof2(x) {
			t.Errorf("expected %v to be power of 2", x)
		}
	}
	for _, x := range []int64{-4, 0, 3, 48, 100} {
		if Ispowerof2(x) {
			t.Errorf("unexpected %v as power of 2", x)
		}
	}
}

func TestAlignup(t *testing.T) {
	if x := Alignup(0, 16); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	} else if x = Alignup(1, 16); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	} else if x = Alignup(16, 16); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	} else if x = Alignup(17, 8); x != 24 {
		t.Errorf("expected %v, got %v", 24, x)
	}
}

func TestLargestpow2(t *testing.T) {
	if x := Largestpow2(48); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	} else if x = Largestpow2(256); x != 256 {
		t.Errorf("expected %v, got %v", 256, x)
	} else if x = Largestpow2(24); x != 8 {
		t.Errorf("expected %v, got %v", 8, x)
	}
}

func TestAlignedbytes(t *testing.T) {
	for _, align := range []int64{1, 8, 64, 128, 4096} {
		block := Alignedbytes(100, align)
		if len(block) != 100 || cap(block) != 100 {
			t.Errorf("expected %v, got %v/%v", 100, len(block), cap(block))
		} else if x := Address(block); x%uintptr(align) != 0 {
			t.Errorf("address %x is not aligned to %v", x, align)
		}
	}
	if x := Address(nil); x != 0 {
		t.Errorf("expected 0, got %v", x)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic")
		}
	}()
	Alignedbytes(100, 48)
}

func TestPrettystats(t *testing.T) {
	stats := map[string]interface{}{"n_allocs": int64(10)}
	if s := Prettystats(stats, false); s != `{"n_allocs":10}` {
		t.Errorf("unexpected %v", s)
	} else if s = Prettystats(stats, true); !strings.Contains(s, "\n") {
		t.Errorf("unexpected %v", s)
	}
}
