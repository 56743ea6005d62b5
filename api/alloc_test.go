package api

import "testing"

func TestPointerNil(t *testing.T) {
	var ptr Pointer
	if ptr.IsNil() == false {
		t.Errorf("unexpected false")
	} else if ptr.IsSlab() == true {
		t.Errorf("unexpected true")
	} else if ptr.IsFallback() == true {
		t.Errorf("unexpected true")
	} else if s := ptr.String(); s != "nil" {
		t.Errorf("expected %v, got %v", "nil", s)
	}
}

func TestSlabpointer(t *testing.T) {
	testcases := [][3]int64{
		{0, 0, 0},
		{1, 2, 3},
		{MaxShards - 1, MaxClasses - 1, MaxNodes - 1},
		{255, 15, 1 << 20},
	}
	for _, tcase := range testcases {
		ptr := Slabpointer(tcase[0], tcase[1], tcase[2])
		if ptr.IsNil() {
			t.Errorf("unexpected nil for %v", tcase)
		} else if ptr.IsSlab() == false {
			t.Errorf("unexpected false for %v", tcase)
		} else if ptr.IsFallback() == true {
			t.Errorf("unexpected true for %v", tcase)
		} else if x := ptr.Shard(); x != tcase[0] {
			t.Errorf("expected %v, got %v", tcase[0], x)
		} else if x := ptr.Class(); x != tcase[1] {
			t.Errorf("expected %v, got %v", tcase[1], x)
		} else if x := ptr.Node(); x != tcase[2] {
			t.Errorf("expected %v, got %v", tcase[2], x)
		}
	}
	if s := Slabpointer(1, 2, 3).String(); s != "1:2:3" {
		t.Errorf("expected %v, got %v", "1:2:3", s)
	}
}

func TestFallbackpointer(t *testing.T) {
	for _, id := range []uint64{0, 1, 1000, (1 << 62) - 1} {
		ptr := Fallbackpointer(id)
		if ptr.IsNil() {
			t.Errorf("unexpected nil for %v", id)
		} else if ptr.IsSlab() == true {
			t.Errorf("unexpected true for %v", id)
		} else if ptr.IsFallback() == false {
			t.Errorf("unexpected false for %v", id)
		} else if x := ptr.Blockid(); x != id {
			t.Errorf("expected %v, got %v", id, x)
		}
	}
	if s := Fallbackpointer(10).String(); s != "fallback:10" {
		t.Errorf("expected %v, got %v", "fallback:10", s)
	}
}
