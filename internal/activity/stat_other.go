//go:build !linux

package activity

import (
	"os"
	"time"
)

// Access times are not portable; fall back to the modification time.
func statTimes(path string) (atime, mtime time.Time, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mtime = info.ModTime()
	atime = mtime
	return
}
