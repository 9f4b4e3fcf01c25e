package realtime

import "time"

// Security/performance limits for the change-feed gateway.
const (
	// Max bytes per websocket frame read (hard limit). Subscribers are not
	// expected to send anything beyond control frames.
	maxFrameBytes = 16 << 10 // 16 KiB

	// Heartbeat defaults (can be overridden by env in ws_gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	maxPingFailures = 3
)
