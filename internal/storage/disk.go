package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage reports the bytes used by each named local data path.
// Empty and missing paths report zero. The sum is in Total.
type DiskUsage struct {
	Paths map[string]int64 `json:"paths"`
	Total int64            `json:"total"`
}

// MeasureDiskUsage walks every path in paths, keyed by a display name.
// SQLite keeps "-wal" and "-shm" files next to the database; they are counted with it.
func MeasureDiskUsage(paths map[string]string) (*DiskUsage, error) {
	usage := &DiskUsage{Paths: make(map[string]int64, len(paths))}
	for name, p := range paths {
		if p == "" {
			usage.Paths[name] = 0
			continue
		}
		var n int64
		for _, candidate := range []string{p, p + "-wal", p + "-shm"} {
			size, err := pathSize(candidate)
			if err != nil {
				return nil, err
			}
			n += size
		}
		usage.Paths[name] = n
		usage.Total += n
	}
	return usage, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
