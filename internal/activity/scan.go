package activity

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Scan walks path and returns the entry with the latest access or
// modification time. Symbolic links below path are neither followed nor
// counted. When timestamps are equal the entry found first wins.
func Scan(path string) Record {
	return scan(path, nil)
}

func scan(path string, skipped func(string, error)) Record {
	var latest Record
	info, err := os.Stat(path)
	if err != nil {
		report(skipped, path, err)
		return latest
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return latest
	}
	if t, err := lastTouched(path); err != nil {
		report(skipped, path, err)
	} else {
		latest.observe(path, t)
	}
	if !info.IsDir() {
		return latest
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		report(skipped, path, err)
		return latest
	}
	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			continue
		case entry.Type().IsRegular():
			t, err := lastTouched(child)
			if err != nil {
				report(skipped, child, err)
				continue
			}
			latest.observe(child, t)
		case entry.IsDir():
			latest = Max(latest, scan(child, skipped))
		}
	}
	return latest
}

func lastTouched(path string) (time.Time, error) {
	atime, mtime, err := statTimes(path)
	if err != nil {
		return time.Time{}, err
	}
	if mtime.After(atime) {
		return mtime, nil
	}
	return atime, nil
}

func report(skipped func(string, error), path string, err error) {
	if skipped != nil {
		skipped(path, err)
	}
}
