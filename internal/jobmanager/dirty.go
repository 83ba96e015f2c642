package jobmanager

import "sync/atomic"

// dirtyMarker is a tri-state "needs another pass" flag. Starts dirty so
// the first tick always does work.
type dirtyMarker struct {
	value atomic.Bool
}

func newDirtyMarker() *dirtyMarker {
	d := &dirtyMarker{}
	d.value.Store(true)
	return d
}

func (d *dirtyMarker) markDirty() { d.value.Store(true) }
func (d *dirtyMarker) markClean() { d.value.Store(false) }
func (d *dirtyMarker) isDirty() bool { return d.value.Load() }
