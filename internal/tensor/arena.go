package tensor

import "github.com/pkg/errors"

// Handle addresses a buffer inside an Arena. Handles are stable for the life
// of the arena.
type Handle int

// NoHandle marks an absent buffer, e.g. a node without gradient tracking.
const NoHandle Handle = -1

// Valid reports whether h refers to a buffer.
func (h Handle) Valid() bool {
	return h >= 0
}

type slot[T Float] struct {
	dense   *Dense[T]
	readers int
	writing bool
}

// Arena owns every buffer of one graph. Buffers are addressed by Handle and
// accessed through runtime-checked borrows: any number of shared borrows, or
// a single exclusive one. A conflicting request is reported as a
// *BorrowConflictError instead of racing.
//
// Arena is not safe for concurrent use.
type Arena[T Float] struct {
	slots []*slot[T]
	bytes int
	limit int // 0 means unlimited
}

// NewArena creates an empty arena. A positive limit caps the total number of
// bytes the arena may hold.
func NewArena[T Float](limit int) *Arena[T] {
	return &Arena[T]{
		slots: make([]*slot[T], 0, 64),
		limit: limit,
	}
}

// Alloc takes ownership of the given tensors and returns their handles in the
// same order. Either all tensors are added or none is.
func (a *Arena[T]) Alloc(ds ...*Dense[T]) ([]Handle, error) {
	sizes := make([]int, len(ds))
	need := 0
	for i, d := range ds {
		sizes[i] = d.ByteSize()
		need += sizes[i]
	}
	if err := a.Fits(sizes...); err != nil {
		return nil, err
	}

	handles := make([]Handle, len(ds))
	for i, d := range ds {
		handles[i] = Handle(len(a.slots))
		a.slots = append(a.slots, &slot[T]{dense: d})
	}
	a.bytes += need
	return handles, nil
}

// Fits reports whether buffers of the given byte sizes can be added without
// exceeding the limit. It lets callers reject a buffer before materializing
// it.
func (a *Arena[T]) Fits(sizes ...int) error {
	if a.limit <= 0 {
		return nil
	}
	free := a.limit - a.bytes
	for _, n := range sizes {
		if n > free {
			return errors.Wrapf(ErrMemoryLimit, "buffer of %d bytes does not fit, %d of %d in use", n, a.bytes, a.limit)
		}
		free -= n
	}
	return nil
}

// Len returns the number of buffers in the arena.
func (a *Arena[T]) Len() int {
	return len(a.slots)
}

// Bytes returns the total size of all buffers.
func (a *Arena[T]) Bytes() int {
	return a.bytes
}

// Limit returns the configured byte limit, 0 if unlimited.
func (a *Arena[T]) Limit() int {
	return a.limit
}

// Rollback drops every buffer whose handle is >= n. It undoes allocations
// made by an operation that failed before being committed.
func (a *Arena[T]) Rollback(n int) {
	if n < 0 || n >= len(a.slots) {
		return
	}
	for i := n; i < len(a.slots); i++ {
		a.bytes -= a.slots[i].dense.ByteSize()
		a.slots[i] = nil
	}
	a.slots = a.slots[:n]
}

// Shape returns the shape of the buffer at h without borrowing it.
// Shapes never change after allocation.
func (a *Arena[T]) Shape(h Handle) (Shape, error) {
	s, err := a.slot(h)
	if err != nil {
		return nil, err
	}
	return s.dense.shape, nil
}

// Borrow grants shared read access to the buffer at h. The returned func
// releases the borrow and must be called exactly once.
func (a *Arena[T]) Borrow(h Handle) (*Dense[T], func(), error) {
	s, err := a.slot(h)
	if err != nil {
		return nil, nil, err
	}
	if s.writing {
		return nil, nil, &BorrowConflictError{Handle: h, Held: Exclusive, Requested: Shared}
	}
	s.readers++
	return s.dense, func() { s.readers-- }, nil
}

// BorrowMut grants exclusive write access to the buffer at h. The returned
// func releases the borrow and must be called exactly once.
func (a *Arena[T]) BorrowMut(h Handle) (*Dense[T], func(), error) {
	s, err := a.slot(h)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case s.writing:
		return nil, nil, &BorrowConflictError{Handle: h, Held: Exclusive, Requested: Exclusive}
	case s.readers > 0:
		return nil, nil, &BorrowConflictError{Handle: h, Held: Shared, Requested: Exclusive}
	}
	s.writing = true
	return s.dense, func() { s.writing = false }, nil
}

// Busy returns the first handle with an outstanding borrow, or NoHandle and
// Unborrowed when the arena is idle.
func (a *Arena[T]) Busy() (Handle, BorrowKind) {
	for i := range a.slots {
		switch {
		case a.slots[i].writing:
			return Handle(i), Exclusive
		case a.slots[i].readers > 0:
			return Handle(i), Shared
		}
	}
	return NoHandle, Unborrowed
}

// CheckIdle returns a *BorrowConflictError if any buffer is borrowed. Whole
// passes over the graph call it before touching a buffer so they either run
// to completion or leave everything unchanged.
func (a *Arena[T]) CheckIdle() error {
	h, held := a.Busy()
	if h == NoHandle {
		return nil
	}
	return &BorrowConflictError{Handle: h, Held: held, Requested: Exclusive}
}

func (a *Arena[T]) slot(h Handle) (*slot[T], error) {
	if h < 0 || int(h) >= len(a.slots) {
		return nil, errors.Wrapf(ErrBadHandle, "handle %d (arena holds %d buffers)", h, len(a.slots))
	}
	return a.slots[h], nil
}
