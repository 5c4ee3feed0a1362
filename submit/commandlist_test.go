package submit

import (
	"testing"

	"github.com/dxvkgo/core/internal/gpu/gpufake"
)

func TestCommandListPoolReusesReleasedHandle(t *testing.T) {
	dev := gpufake.NewDevice()
	p := NewCommandListPool(dev)

	cl, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	p.Release(cl)

	cl2, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if cl2 != cl {
		t.Fatal("Acquire after Release should reuse the freed handle instead of creating a new one")
	}
}

func TestCommandListPoolGrowsWhenFreeListEmpty(t *testing.T) {
	dev := gpufake.NewDevice()
	p := NewCommandListPool(dev)

	a, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two concurrent Acquire calls with nothing released must return distinct handles")
	}
	p.Release(a)
	p.Release(b)
}
