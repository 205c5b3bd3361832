package metaalloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testPage = 4096
	testSize = 64 * 1024
)

func newTestEngine(t testing.TB, size int, cfg Config) *Engine {
	t.Helper()
	if cfg.PageSize == 0 {
		cfg.PageSize = testPage
	}
	e, err := New(size, cfg)
	require.NoError(t, err)
	return e
}

func mustAlloc(t testing.TB, e *Engine, size int) Handle {
	t.Helper()
	h, err := e.Allocate(size, OwnerID(size))
	require.NoError(t, err)
	return h
}

func mustFree(t testing.TB, e *Engine, h Handle) {
	t.Helper()
	freed, err := e.Release(h)
	require.NoError(t, err)
	require.True(t, freed)
}

func requireInvariants(t testing.TB, e *Engine) {
	t.Helper()
	require.NoError(t, e.CheckInvariants())
}

// recordingCommitter records page transitions and can be told to fail.
type recordingCommitter struct {
	commits   []pageRun
	decommits []pageRun
	failNext  bool
}

var errCommitRefused = errors.New("commit refused")

func (c *recordingCommitter) CommitPages(first, count int) error {
	if c.failNext {
		c.failNext = false
		return errCommitRefused
	}
	c.commits = append(c.commits, pageRun{first: first, count: count})
	return nil
}

func (c *recordingCommitter) DecommitPages(first, count int) error {
	c.decommits = append(c.decommits, pageRun{first: first, count: count})
	return nil
}
