package httpserver

import "time"

const (
	readTimeout       = 3 * time.Second
	readHeaderTimeout = 3 * time.Second
	idleTimeout       = 60 * time.Second
	maxHeaderBytes    = 1 << 12 // 4kb

	defaultWriteTimeout = 5 * time.Second
)
