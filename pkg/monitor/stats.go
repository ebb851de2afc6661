package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// recentFiles is the number of the most recent downloads listed in stats
const recentFiles = 5

// Stats describes downloaded announcement files
type Stats struct {
	PDFCount  int         `json:"pdf_count"`
	XMLCount  int         `json:"xml_count"`
	TotalSize int64       `json:"total_size"`
	Recent    []FileStats `json:"recent"`
}

// FileStats is a single downloaded file
type FileStats struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Total returns number of counted files
func (s Stats) Total() int { return s.PDFCount + s.XMLCount }

// CollectStats counts pdf and xml files in dir and lists the most recent ones.
// Missing directory gives empty stats.
func CollectStats(dir string) (Stats, error) {
	res := Stats{Recent: []FileStats{}}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("read download dir: %w", err)
	}

	files := []FileStats{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".pdf" && ext != ".xml" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue // removed while listing
		}
		if ext == ".pdf" {
			res.PDFCount++
		} else {
			res.XMLCount++
		}
		res.TotalSize += fi.Size()
		files = append(files, FileStats{Name: e.Name(), Size: fi.Size(), Modified: fi.ModTime()})
	}

	slices.SortFunc(files, func(a, b FileStats) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(files) > recentFiles {
		files = files[:recentFiles]
	}
	res.Recent = files
	return res, nil
}

// Stats returns stats of the monitor's download directory
func (m *Monitor) Stats() (Stats, error) {
	return CollectStats(m.DownloadDir)
}
