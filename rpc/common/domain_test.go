package common

import (
	"testing"
)

func TestValidateDomains(t *testing.T) {
	if err := ValidateDomains(); err != nil {
		t.Fatalf("embedded domain identifiers are invalid: %v", err)
	}
}

func TestDomainLookup(t *testing.T) {
	for _, d := range Domains() {
		if len(d.AsUUID()) != 36 {
			t.Errorf("%s: identifier %q must be 36 characters", d, d.AsUUID())
		}

		id, err := d.UUID()
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if id.String() != d.AsUUID() {
			t.Errorf("%s: parsed identifier %s differs from %s", d, id, d.AsUUID())
		}

		byID, ok := DomainByUUID(id)
		if !ok || byID != d {
			t.Errorf("DomainByUUID(%s) = %v, %v", id, byID, ok)
		}

		byName, err := ParseStorageDomain(d.String())
		if err != nil || byName != d {
			t.Errorf("ParseStorageDomain(%q) = %v, %v", d.String(), byName, err)
		}
	}

	if _, err := ParseStorageDomain("bluetooth-pairings"); err == nil {
		t.Error("unknown domain name must fail to parse")
	}
	if StorageDomain(200).AsUUID() != "" {
		t.Error("unknown domain must have no identifier")
	}
}
