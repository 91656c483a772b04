package debra

import "unsafe"

// retiredObject is an opaque (pointer, destructor) pair handed to the
// reclaimer. destructor receives ptr and releases whatever it addresses;
// a nil destructor is a permitted no-op placeholder, and ptr may be nil
// in that case too (used by tests that only want to exercise bookkeeping).
type retiredObject struct {
	ptr        unsafe.Pointer
	destructor func(unsafe.Pointer)
}

// limboBag is a fixed-capacity batch of retirements sharing one epoch,
// linked into a per-slot singly-linked list. next points toward older
// bags; the tail of the list is the oldest bag. A bag's capacity, epoch,
// and objects are fixed at construction time and never mutated afterward
// except by appends from the owning slot (single-writer) up to count.
type limboBag struct {
	objects []retiredObject
	count   int
	epoch   uint64
	next    *limboBag
}

// newLimboBag allocates a zeroed bag of the given capacity for the given
// epoch. Allocated on demand from the heap; Go's garbage collector reclaims
// the bag's own storage once it becomes unreachable, so there is no
// separate "free the bag" step beyond letting go of the last reference.
func newLimboBag(capacity int, epoch uint64, next *limboBag) *limboBag {
	return &limboBag{
		objects: make([]retiredObject, 0, capacity),
		epoch:   epoch,
		next:    next,
	}
}

func (b *limboBag) full() bool {
	return len(b.objects) == cap(b.objects)
}

// append adds a retirement to the bag. The caller must already have
// verified the bag is not full.
func (b *limboBag) append(obj retiredObject) {
	b.objects = append(b.objects, obj)
	b.count = len(b.objects)
}

// reclaim invokes every entry's destructor (skipping nil destructors) and
// returns the number of entries processed. Panics from a destructor
// propagate to the caller unless the caller recovers (Shutdown draining
// does; ordinary reclamation does not, so a misbehaving destructor aborts
// that pass loudly rather than being swallowed).
func (b *limboBag) reclaim() int {
	for _, obj := range b.objects {
		if obj.destructor != nil {
			obj.destructor(obj.ptr)
		}
	}
	return len(b.objects)
}
