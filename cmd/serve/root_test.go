package serve

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/secstore/rpc/common"
)

func TestParseDomains(t *testing.T) {
	domains, err := parseDomains(" wifi-profiles = dstore ")
	if err != nil {
		t.Fatalf("parseDomains failed: %v", err)
	}
	want := []common.ServerDomain{{Domain: common.DomainWifiProfiles, Type: common.DomainTypeReplicated}}
	if !reflect.DeepEqual(domains, want) {
		t.Errorf("got %v, want %v", domains, want)
	}

	for _, invalid := range []string{"", "wifi-profiles", "wifi-profiles=tape", "bluetooth=lstore"} {
		if _, err := parseDomains(invalid); err == nil {
			t.Errorf("parseDomains(%q): expected error", invalid)
		}
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := parseClusterMembers("node-1=localhost:63001,node-2=localhost:63002")
	if err != nil {
		t.Fatalf("parseClusterMembers failed: %v", err)
	}
	if len(members) != 2 || members[replicaID("node-2")] != "localhost:63002" {
		t.Errorf("unexpected members %v", members)
	}

	for _, invalid := range []string{"", "node-1", "node-1=a,node-1=b", "=addr"} {
		if _, err := parseClusterMembers(invalid); err == nil {
			t.Errorf("parseClusterMembers(%q): expected error", invalid)
		}
	}
}

func TestReplicaID(t *testing.T) {
	if replicaID("node-1") == replicaID("node-2") {
		t.Error("different names map to the same id")
	}
	if replicaID("node-1") != replicaID("node-1") {
		t.Error("replicaID is not deterministic")
	}
	if replicaID("") == 0 {
		t.Error("replicaID returned 0")
	}
}
