package pathgo

// Close releases resources held by this PathGo instance. Operations started
// after Close return ErrClosed; Close is idempotent.
//
// A configured graph store belongs to the caller and is not closed here.
func (pg *PathGo) Close() error {
	if pg == nil {
		return nil
	}
	if !pg.closed.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error
	if err := pg.eng.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := pg.coord.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	pg.pathCache.Purge()
	return firstErr
}
