package browser

import "time"

// Config bounds one Manager's browser launch behavior, adapted from the
// teacher's internal/browser/session_manager.go Config/DefaultConfig.
type Config struct {
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	TabEventTimeout   time.Duration
	ChromeBin         string // optional explicit binary path
}

// DefaultConfig mirrors the teacher's defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    1024,
		NavigationTimeout: 30 * time.Second,
		TabEventTimeout:   5 * time.Second,
	}
}
