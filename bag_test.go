package debra

import (
	"testing"
	"unsafe"
)

func TestLimboBagAppendAndFull(t *testing.T) {
	b := newLimboBag(2, 5, nil)
	if b.full() {
		t.Fatal("fresh bag should not be full")
	}
	if b.epoch != 5 {
		t.Errorf("epoch = %d, want 5", b.epoch)
	}

	b.append(retiredObject{})
	if b.full() {
		t.Fatal("bag with 1/2 entries should not be full")
	}

	b.append(retiredObject{})
	if !b.full() {
		t.Fatal("bag with 2/2 entries should be full")
	}
}

func TestLimboBagReclaimInvokesDestructors(t *testing.T) {
	var destroyed []int
	b := newLimboBag(4, 1, nil)
	for i := 0; i < 3; i++ {
		i := i
		b.append(retiredObject{
			ptr: unsafe.Pointer(&i),
			destructor: func(p unsafe.Pointer) {
				destroyed = append(destroyed, *(*int)(p))
			},
		})
	}

	n := b.reclaim()
	if n != 3 {
		t.Errorf("reclaim() = %d, want 3", n)
	}
	if len(destroyed) != 3 {
		t.Fatalf("destroyed count = %d, want 3", len(destroyed))
	}
}

func TestLimboBagReclaimSkipsNilDestructor(t *testing.T) {
	b := newLimboBag(2, 1, nil)
	b.append(retiredObject{ptr: nil, destructor: nil})
	b.append(retiredObject{ptr: nil, destructor: nil})

	n := b.reclaim()
	if n != 2 {
		t.Errorf("reclaim() = %d, want 2", n)
	}
}

func TestLimboBagChainLinksTowardOlder(t *testing.T) {
	oldest := newLimboBag(1, 1, nil)
	middle := newLimboBag(1, 2, oldest)
	newest := newLimboBag(1, 3, middle)

	if newest.next != middle || middle.next != oldest || oldest.next != nil {
		t.Fatal("next chain should walk from newest toward oldest")
	}
}
