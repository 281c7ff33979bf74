package arena

import (
	"fmt"
	"unsafe"
)

// Alloc returns a pointer to a zeroed T inside the arena.
//
// T must not contain Go pointers: the garbage collector does not scan arena
// memory, so anything referenced only from there may be freed.
func Alloc[T any](a *Arena) *T {
	var zero T
	b := a.push(int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if len(b) == 0 {
		return new(T)
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}

// AllocSlice returns a zeroed slice of n values of T inside the arena.
// The same pointer restriction as Alloc applies.
func AllocSlice[T any](a *Arena, n int) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if n < 0 {
		panic(fmt.Errorf("%w: slice of %d elements", ErrInvalidSize, n))
	}
	if size != 0 && n > a.reserved/size {
		panic(fmt.Errorf("%w: slice of %d %d-byte elements", ErrExhausted, n, size))
	}
	b := a.push(size*n, int(unsafe.Alignof(zero)))
	if len(b) == 0 {
		return make([]T, n)
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// Copy returns an arena-owned copy of src.
func Copy[T any](a *Arena, src []T) []T {
	dst := AllocSlice[T](a, len(src))
	copy(dst, src)
	return dst
}
