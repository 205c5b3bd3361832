package metaalloc

import (
	"go.uber.org/zap"

	"github.com/joshuapare/execalloc/internal/logger"
)

// pageOccupancy counts live allocations touching each page of the region.
type pageOccupancy struct {
	pageSize  int
	counts    []int32
	committed int // pages with a non-zero count
}

// pageRun is a run of consecutive pages [first, first+count).
type pageRun struct {
	first int
	count int
}

func newPageOccupancy(size, pageSize int) pageOccupancy {
	n := (size + pageSize - 1) / pageSize
	return pageOccupancy{pageSize: pageSize, counts: make([]int32, n)}
}

// span returns the first and last page touched by [off, off+size).
func (p *pageOccupancy) span(off, size int) (int, int) {
	return off / p.pageSize, (off + size - 1) / p.pageSize
}

// emptyRuns returns the runs of pages in [first, last] whose count is zero.
func (p *pageOccupancy) emptyRuns(first, last int) []pageRun {
	var runs []pageRun
	for pg := first; pg <= last; pg++ {
		if p.counts[pg] != 0 {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].first+runs[n-1].count == pg {
			runs[n-1].count++
			continue
		}
		runs = append(runs, pageRun{first: pg, count: 1})
	}
	return runs
}

// commitRange commits any page of [off, off+size) that holds no allocation
// yet, then bumps the occupancy of every touched page. On failure, runs
// committed by this call are decommitted again and occupancy is unchanged.
func (e *Engine) commitRange(off, size int) error {
	first, last := e.pages.span(off, size)

	if e.committer != nil {
		runs := e.pages.emptyRuns(first, last)
		for i, r := range runs {
			e.stats.CommitCalls++
			if err := e.committer.CommitPages(r.first, r.count); err != nil {
				for _, done := range runs[:i] {
					e.stats.DecommitCalls++
					if derr := e.committer.DecommitPages(done.first, done.count); derr != nil {
						e.stats.DecommitFailures++
					}
				}
				return err
			}
		}
	}

	for pg := first; pg <= last; pg++ {
		if e.pages.counts[pg] == 0 {
			e.pages.committed++
		}
		e.pages.counts[pg]++
	}
	return nil
}

// decommitRange drops the occupancy of every page touched by [off, off+size)
// and decommits pages left empty. Decommit failures are logged and counted;
// the range is already free, so they are not returned.
func (e *Engine) decommitRange(off, size int) {
	first, last := e.pages.span(off, size)
	for pg := first; pg <= last; pg++ {
		e.pages.counts[pg]--
		if e.pages.counts[pg] == 0 {
			e.pages.committed--
		}
	}

	if e.committer == nil {
		return
	}
	for _, r := range e.pages.emptyRuns(first, last) {
		e.stats.DecommitCalls++
		if err := e.committer.DecommitPages(r.first, r.count); err != nil {
			e.stats.DecommitFailures++
			logger.L.Warn("metaalloc: decommit failed",
				zap.Int("firstPage", r.first),
				zap.Int("pages", r.count),
				zap.Error(err),
			)
		}
	}
}
