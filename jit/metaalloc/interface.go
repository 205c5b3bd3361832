package metaalloc

// PageCommitter receives page occupancy transitions.
//
// CommitPages is called before a range is handed out when some of its pages
// had no allocation. DecommitPages is called after a release leaves pages
// without any allocation. Page indexes are relative to the region start.
type PageCommitter interface {
	CommitPages(first, count int) error
	DecommitPages(first, count int) error
}
