package httpapi

import "time"

const (
	// DefaultPerPage is the events page size when per_page is absent.
	DefaultPerPage = 50
	// MaxPerPage caps per_page.
	MaxPerPage = 500
	// DefaultHeartbeat is the interval between stream keep-alive comments.
	DefaultHeartbeat = 15 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Config defines fixture API settings.
type Config struct {
	Addr      string
	BasePath  string
	Heartbeat time.Duration
	// DropEvery severs each stream after this many delivered events; 0 disables.
	DropEvery int
}
