package pool

// resetGlobalBoundsForTest clears the published bounds so each test can
// publish its own pool.
func resetGlobalBoundsForTest() {
	globalStart.Store(0)
	globalEnd.Store(0)
	globalSet.Store(false)
}
