// Package fsevent defines the structured change event delivered to watcher
// callbacks and the translation from raw native batches into events.
//
// Flag and mask values use the FSEvents bit layout. Backends that are not
// FSEvents synthesise the same bits so callers see one vocabulary on every
// platform.
package fsevent

// ChangeEvent is one notified filesystem change.
type ChangeEvent struct {
	// ID is the sequence number assigned by the native facility. It only
	// orders events; two events are never compared by ID.
	ID uint64 `json:"id"`
	// Flags holds every change-kind bit reported for the item.
	Flags Flags `json:"flags"`
	// Path is the absolute path the event pertains to. It may no longer
	// exist (removals, renames).
	Path string `json:"path"`
}

// Translate maps a raw native batch into ChangeEvents, one per index of
// paths. The three slices are parallel; the native facility guarantees they
// have the same length. Flags are copied bit for bit.
func Translate(paths []string, flags []Flags, ids []uint64) []ChangeEvent {
	events := make([]ChangeEvent, len(paths))
	for i := range paths {
		events[i] = ChangeEvent{
			ID:    ids[i],
			Flags: flags[i],
			Path:  paths[i],
		}
	}
	return events
}
