package common

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Storage domains
// --------------------------------------------------------------------------

// StorageDomain names an isolated storage namespace. Every domain is served
// by its own store instance, so keys of one domain are never visible in another.
type StorageDomain uint8

const (
	DomainWifiProfiles StorageDomain = iota // Saved wifi network credentials
)

// The identifiers are kept in text files so they can be shared with the
// build of the service. Each file must contain exactly 36 characters; run
// `truncate -s 36 <file>` if an editor added a trailing newline.
var (
	//go:embed uuid/wifi_profiles.txt
	wifiProfilesUUID string
)

var domains = []struct {
	domain StorageDomain
	name   string
	id     *string
}{
	{DomainWifiProfiles, "wifi-profiles", &wifiProfilesUUID},
}

// Domains returns all storage domains.
func Domains() []StorageDomain {
	all := make([]StorageDomain, len(domains))
	for i, d := range domains {
		all[i] = d.domain
	}
	return all
}

// AsUUID returns the textual identifier of the domain exactly as embedded.
func (d StorageDomain) AsUUID() string {
	for _, entry := range domains {
		if entry.domain == d {
			return *entry.id
		}
	}
	return ""
}

// UUID parses the identifier of the domain.
func (d StorageDomain) UUID() (uuid.UUID, error) {
	text := d.AsUUID()
	if len(text) != 36 {
		return uuid.Nil, fmt.Errorf("identifier of domain %s has length %d, expected 36 (trailing newline?)", d, len(text))
	}
	id, err := uuid.Parse(text)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identifier of domain %s is not a uuid: %w", d, err)
	}
	return id, nil
}

// String returns the configuration name of the domain
func (d StorageDomain) String() string {
	for _, entry := range domains {
		if entry.domain == d {
			return entry.name
		}
	}
	return fmt.Sprintf("domain(%d)", uint8(d))
}

// ParseStorageDomain converts a configuration name back to its domain.
func ParseStorageDomain(name string) (StorageDomain, error) {
	for _, entry := range domains {
		if strings.EqualFold(entry.name, name) {
			return entry.domain, nil
		}
	}
	return 0, fmt.Errorf("unknown storage domain: %s", name)
}

// DomainByUUID returns the domain with the given identifier.
func DomainByUUID(id uuid.UUID) (StorageDomain, bool) {
	for _, entry := range domains {
		if parsed, err := entry.domain.UUID(); err == nil && parsed == id {
			return entry.domain, true
		}
	}
	return 0, false
}

// ValidateDomains checks that every domain identifier is a well-formed uuid
// and that no two domains share one. Called once on startup.
func ValidateDomains() error {
	seen := make(map[uuid.UUID]StorageDomain, len(domains))
	for _, entry := range domains {
		id, err := entry.domain.UUID()
		if err != nil {
			return err
		}
		if other, dup := seen[id]; dup {
			return fmt.Errorf("domains %s and %s share the identifier %s", other, entry.domain, id)
		}
		seen[id] = entry.domain
	}
	return nil
}
