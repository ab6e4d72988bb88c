// Package activity finds the most recent sign of interactive use on the
// host: login accounting, terminal devices, watched files and, optionally,
// the process tree.
package activity

import "time"

// Record is the most recently touched object seen so far. The zero Record
// loses to any real observation.
type Record struct {
	File      string
	Timestamp time.Time
}

// Max returns a unless b is strictly more recent.
func Max(a, b Record) Record {
	if b.Timestamp.After(a.Timestamp) {
		return b
	}
	return a
}

func (r *Record) observe(file string, t time.Time) {
	if t.After(r.Timestamp) {
		r.File = file
		r.Timestamp = t
	}
}
