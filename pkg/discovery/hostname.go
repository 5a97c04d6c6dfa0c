package discovery

import (
	"os"
	"strings"

	"github.com/denisbrodbeck/machineid"
)

// Sources of host identity, replaced in tests.
var (
	protectedID = machineid.ProtectedID
	osHostname  = os.Hostname
)

// InstanceName returns the DNS-SD instance name to advertise.
//
// A non-empty configured name is used as-is. Otherwise the name is
// prefix-<8 hex digits>, derived from the machine ID hashed with appID so
// that the raw machine ID is never published. Without a machine ID the
// OS hostname is used, and "prefix" alone as a last resort.
func InstanceName(configured, prefix, appID string) string {
	if configured != "" {
		return truncateLabel(configured)
	}
	if prefix == "" {
		prefix = DefaultInstancePrefix
	}

	if id, err := protectedID(appID); err == nil && len(id) >= 8 {
		return truncateLabel(prefix + "-" + strings.ToLower(id[:8]))
	}

	if host, err := osHostname(); err == nil && host != "" {
		// Strip any domain part.
		host, _, _ = strings.Cut(host, ".")
		return truncateLabel(host)
	}

	return prefix
}

func truncateLabel(name string) string {
	if len(name) > MaxInstanceNameLen {
		return name[:MaxInstanceNameLen]
	}
	return name
}
