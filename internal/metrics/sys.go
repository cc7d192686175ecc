package metrics

import (
	"io/fs"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

var processStart = time.Now()

// SysHealth is a snapshot of the process and its data directory.
type SysHealth struct {
	AllocMB      uint64
	TotalAllocMB uint64
	SysMB        uint64
	NumGC        uint32
	Goroutines   int
	Uptime       time.Duration
	DataDiskSize string
}

// GetSysHealth takes a snapshot. dataDir is the directory holding the
// database; an unreadable directory reports what could be walked.
func GetSysHealth(dataDir string) SysHealth {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	const mb = 1 << 20
	return SysHealth{
		AllocMB:      ms.Alloc / mb,
		TotalAllocMB: ms.TotalAlloc / mb,
		SysMB:        ms.Sys / mb,
		NumGC:        ms.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		Uptime:       time.Since(processStart).Round(time.Second),
		DataDiskSize: humanize.IBytes(dirSize(dataDir)),
	}
}

// dirSize sums regular file sizes below root, WAL and shm files included.
func dirSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
