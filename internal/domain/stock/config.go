package stock

// DefaultScanWindow bounds how many batches one allocation call examines.
// A medicine split across more small batches than this can fail allocation
// even when total stock suffices; raising the bound trades that edge for
// longer scans under the per-medicine lock.
const DefaultScanWindow = 5

// Config tunes the stock service.
type Config struct {
	// ScanWindow is the maximum number of consumable batches fetched and
	// considered per Consume call. Zero means DefaultScanWindow.
	ScanWindow int
}

func (c Config) scanWindow() int {
	if c.ScanWindow <= 0 {
		return DefaultScanWindow
	}
	return c.ScanWindow
}
