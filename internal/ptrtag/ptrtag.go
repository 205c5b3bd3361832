// Package ptrtag holds the hooks used to strip code pointer tags before
// address comparisons. Signing and verification belong to the embedding
// runtime; this package only needs the untag direction, plus a tag
// direction so tests can produce tagged pointers.
package ptrtag

// Func transforms a code pointer.
type Func func(p uintptr) uintptr

var (
	untag Func = defaultUntag
	tag   Func = func(p uintptr) uintptr { return p }
)

// Untag returns p with any pointer tag removed.
func Untag(p uintptr) uintptr {
	return untag(p)
}

// Tag returns p with the current tag scheme applied.
func Tag(p uintptr) uintptr {
	return tag(p)
}

// Install replaces the tag scheme. It must be called during process setup,
// before any goroutine calls Untag. Passing nil restores the defaults.
func Install(tagFn, untagFn Func) {
	if tagFn == nil {
		tagFn = func(p uintptr) uintptr { return p }
	}
	if untagFn == nil {
		untagFn = defaultUntag
	}
	tag, untag = tagFn, untagFn
}
