// Package device derives a stable fingerprint for the machine running the
// companion service.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"runtime"
	"strings"
)

// machineIDPaths lists the places a stable host identifier may live.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
	"/sys/class/dmi/id/product_uuid",
}

// Identity implements port.DeviceIdentity.
type Identity struct {
	// Salt scopes fingerprints to one deployment so they cannot be joined
	// across products.
	Salt string

	readFile func(string) ([]byte, error)
	hostname func() (string, error)
}

// NewIdentity returns an Identity reading the host's identifiers.
func NewIdentity(salt string) *Identity {
	return &Identity{Salt: salt, readFile: os.ReadFile, hostname: os.Hostname}
}

// Fingerprint returns a hex SHA-256 over the host identifiers. The raw
// identifiers never leave the process.
func (i *Identity) Fingerprint() (string, error) {
	var parts []string
	for _, p := range machineIDPaths {
		b, err := i.readFile(p)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(b)); id != "" {
			parts = append(parts, id)
			break
		}
	}
	if host, err := i.hostname(); err == nil && host != "" {
		parts = append(parts, host)
	}
	if len(parts) == 0 {
		return "", errors.New("device: no host identifier available on " + runtime.GOOS)
	}
	parts = append(parts, runtime.GOOS, runtime.GOARCH, i.Salt)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:]), nil
}
