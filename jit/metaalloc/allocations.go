package metaalloc

import (
	"cmp"
	"slices"
)

// allocation is one live allocated range.
type allocation struct {
	off   int
	size  int
	gen   uint64
	refs  int
	owner OwnerID
}

func (a *allocation) end() int {
	return a.off + a.size
}

func (a *allocation) handle() Handle {
	return Handle{Offset: a.off, Size: a.size, Gen: a.gen}
}

func (a *allocation) info() Info {
	return Info{Handle: a.handle(), Owner: a.owner, Refs: a.refs}
}

// allocIndex keeps live allocations sorted by offset.
type allocIndex struct {
	items []*allocation
}

func (x *allocIndex) len() int {
	return len(x.items)
}

func (x *allocIndex) search(off int) (int, bool) {
	return slices.BinarySearchFunc(x.items, off, func(a *allocation, t int) int {
		return cmp.Compare(a.off, t)
	})
}

func (x *allocIndex) insert(a *allocation) {
	i, _ := x.search(a.off)
	x.items = slices.Insert(x.items, i, a)
}

func (x *allocIndex) remove(off int) {
	if i, ok := x.search(off); ok {
		x.items = slices.Delete(x.items, i, i+1)
	}
}

// at returns the allocation starting exactly at off.
func (x *allocIndex) at(off int) *allocation {
	if i, ok := x.search(off); ok {
		return x.items[i]
	}
	return nil
}

// containing returns the allocation whose range holds off.
func (x *allocIndex) containing(off int) *allocation {
	i, ok := x.search(off)
	if ok {
		return x.items[i]
	}
	if i == 0 {
		return nil
	}
	if a := x.items[i-1]; off < a.end() {
		return a
	}
	return nil
}

func sortRanges(rs []Range) {
	slices.SortFunc(rs, func(a, b Range) int {
		return cmp.Compare(a.Off, b.Off)
	})
}
