package instance

import "os"

const fallbackID = "local"

// ID identifies the running process in logs. It prefers an explicit
// INSTANCE_ID, then the platform dyno name, then the hostname.
func ID() string {
	for _, key := range []string{"INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
