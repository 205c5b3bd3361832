package metaalloc

// freeCell is one free range, stored in exactly one size-class heap.
type freeCell struct {
	off       int
	size      int
	sc        int // Size class (which heap this belongs to)
	heapIndex int // Position in heap (for heap.Remove)
}

func (c *freeCell) end() int {
	return c.off + c.size
}

// better reports whether c is a better best-fit candidate than o:
// smaller first, lower offset on ties.
func (c *freeCell) better(o *freeCell) bool {
	if c.size != o.size {
		return c.size < o.size
	}
	return c.off < o.off
}

// freeCellHeap implements heap.Interface as a min-heap on (size, offset).
type freeCellHeap []*freeCell

func (h *freeCellHeap) Len() int { return len(*h) }

func (h *freeCellHeap) Less(i, j int) bool {
	return (*h)[i].better((*h)[j])
}

func (h *freeCellHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeCellHeap) Push(x any) {
	cell := x.(*freeCell) //nolint:errcheck // heap.Interface contract guarantees type
	cell.heapIndex = len(*h)
	*h = append(*h, cell)
}

func (h *freeCellHeap) Pop() any {
	old := *h
	n := len(old)
	cell := old[n-1]
	old[n-1] = nil
	cell.heapIndex = -1
	*h = old[0 : n-1]
	return cell
}
