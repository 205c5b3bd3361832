//go:build !(linux && amd64)

package protect

// NewFastPermissions reports that protection keys are unavailable.
func NewFastPermissions() (*FastPermissions, error) {
	return nil, ErrUnsupported
}

// Do runs fn. Unreachable without NewFastPermissions.
func (f *FastPermissions) Do(fn func()) {
	fn()
}
