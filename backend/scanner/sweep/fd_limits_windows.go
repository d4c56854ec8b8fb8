//go:build windows

package sweepscan

// Windows has no RLIMIT_NOFILE equivalent worth consulting; socket handles
// are bounded elsewhere.
func fdAwareWorkerCap() int {
	return 0
}
