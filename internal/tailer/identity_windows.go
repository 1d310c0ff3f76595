//go:build windows

package tailer

import "os"

// fileIdentity is unavailable through Stat on Windows; rotation falls
// back to the truncation heuristic.
func fileIdentity(fi os.FileInfo) (uint64, uint64) {
	return 0, 0
}
