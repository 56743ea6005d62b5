package malloc

import "testing"

import "github.com/cockroachdb/errors"

import "github.com/theroutercompany/sydradb-sub002/api"
import "github.com/theroutercompany/sydradb-sub002/lib"

func TestFlistGrow(t *testing.T) {
	class := Sizeclass{Index: 2, Size: 48, Align: 16}
	fl := newflist(1, class, 4096, 2)
	if _, ok := fl.pop(); ok {
		t.Errorf("unexpected true")
	} else if fl.cangrow() == false {
		t.Errorf("unexpected false")
	}

	fl.grow(lib.Alignedbytes(fl.nodes*class.Size, Slabalign))
	if fl.nodes != 85 {
		t.Errorf("expected %v, got %v", 85, fl.nodes)
	}
	capacity, free, allocated := fl.info()
	if capacity != 85 || free != 85 || allocated != 0 {
		t.Errorf("unexpected %v %v %v", capacity, free, allocated)
	}
	// nodes are popped in ascending order.
	for i := int64(0); i < fl.nodes; i++ {
		node, ok := fl.pop()
		if !ok {
			t.Fatalf("unexpected false at %v", i)
		} else if node != i {
			t.Errorf("expected %v, got %v", i, node)
		}
		block := fl.bytes(node)
		if int64(len(block)) != class.Size {
			t.Errorf("expected %v, got %v", class.Size, len(block))
		} else if x := int64(lib.Address(block)) % class.Align; x != 0 {
			t.Errorf("node %v misaligned by %v", node, x)
		}
	}
	if _, ok := fl.pop(); ok {
		t.Errorf("unexpected true")
	}

	fl.grow(lib.Alignedbytes(fl.nodes*class.Size, Slabalign))
	if fl.cangrow() == true {
		t.Errorf("unexpected true")
	} else if x := fl.slabcount(); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	} else if node, _ := fl.pop(); node != 85 {
		t.Errorf("expected %v, got %v", 85, node)
	}
	capacity, free, allocated = fl.info()
	if capacity != 170 || free != 84 || allocated != 86 {
		t.Errorf("unexpected %v %v %v", capacity, free, allocated)
	}
}

func TestFlistPushPop(t *testing.T) {
	class := Sizeclass{Index: 0, Size: 64, Align: 64}
	fl := newflist(0, class, 1024, 1)
	fl.grow(lib.Alignedbytes(1024, Slabalign))

	nodes := []int64{}
	for i := 0; i < 16; i++ {
		node, _ := fl.pop()
		nodes = append(nodes, node)
	}
	// LIFO reuse
	fl.push(nodes[3])
	fl.push(nodes[7])
	if node, _ := fl.pop(); node != nodes[7] {
		t.Errorf("expected %v, got %v", nodes[7], node)
	} else if node, _ := fl.pop(); node != nodes[3] {
		t.Errorf("expected %v, got %v", nodes[3], node)
	}

	// blocks do not overlap
	for i, node := range nodes {
		block := fl.bytes(node)
		for j := range block {
			block[j] = byte(i)
		}
	}
	for i, node := range nodes {
		for _, b := range fl.bytes(node) {
			if b != byte(i) {
				t.Fatalf("expected %v, got %v", i, b)
			}
		}
	}
}

func TestFlistCheckfree(t *testing.T) {
	class := Sizeclass{Index: 3, Size: 64, Align: 64}
	fl := newflist(2, class, 1024, 1)
	fl.grow(lib.Alignedbytes(1024, Slabalign))

	node, _ := fl.pop()
	ptr := api.Slabpointer(2, 3, node)
	if err := fl.checkfree(ptr); err != nil {
		t.Errorf("unexpected %v", err)
	}
	fl.markdeferred(node)
	if err := fl.checkfree(ptr); !errors.Is(err, ErrorInvalidFree) {
		t.Errorf("expected %v, got %v", ErrorInvalidFree, err)
	}
	fl.push(node)
	if err := fl.checkfree(ptr); !errors.Is(err, ErrorInvalidFree) {
		t.Errorf("expected %v, got %v", ErrorInvalidFree, err)
	}
	ptr = api.Slabpointer(2, 3, 16)
	if err := fl.checkfree(ptr); !errors.Is(err, ErrorInvalidFree) {
		t.Errorf("expected %v, got %v", ErrorInvalidFree, err)
	}
}

func TestFlistRelease(t *testing.T) {
	class := Sizeclass{Index: 0, Size: 32, Align: 32}
	fl := newflist(0, class, 1024, 4)
	fl.grow(lib.Alignedbytes(1024, Slabalign))
	fl.grow(lib.Alignedbytes(1024, Slabalign))
	fl.pop()
	if x := fl.release(); x != 2048 {
		t.Errorf("expected %v, got %v", 2048, x)
	}
	capacity, free, allocated := fl.info()
	if capacity != 0 || free != 0 || allocated != 0 {
		t.Errorf("unexpected %v %v %v", capacity, free, allocated)
	} else if _, ok := fl.pop(); ok {
		t.Errorf("unexpected true")
	}
}

func BenchmarkFlistPopPush(b *testing.B) {
	class := Sizeclass{Index: 0, Size: 64, Align: 64}
	fl := newflist(0, class, 65536, 1)
	fl.grow(lib.Alignedbytes(65536, Slabalign))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		node, _ := fl.pop()
		fl.push(node)
	}
}
