package discovery

import (
	"net"
	"reflect"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "devlink-lab._devlink-gw._tcp.local.",
		Host:       "lab.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8090,
		InfoFields: TXTRecords("/gateway-ws", "baseline"),
	}
	gw, err := fromEntry(entry)
	if err != nil {
		t.Fatalf("fromEntry returned error: %v", err)
	}
	if gw.Path != "/gateway-ws" || gw.Dialect != "baseline" {
		t.Fatalf("gateway=%+v", gw)
	}
	if got, want := gw.URL(), "ws://192.168.1.20:8090/gateway-ws"; got != want {
		t.Fatalf("URL()=%q, want %q", got, want)
	}
}

func TestFromEntryIPv6(t *testing.T) {
	gw, err := fromEntry(&mdns.ServiceEntry{AddrV6: net.ParseIP("fe80::1"), Port: 80})
	if err != nil {
		t.Fatalf("fromEntry returned error: %v", err)
	}
	if got, want := gw.URL(), "ws://[fe80::1]:80/"; got != want {
		t.Fatalf("URL()=%q, want %q", got, want)
	}
}

func TestFromEntryRejectsIncomplete(t *testing.T) {
	tests := []*mdns.ServiceEntry{
		nil,
		{Port: 80},
		{AddrV4: net.ParseIP("10.0.0.1")},
	}
	for i, entry := range tests {
		if _, err := fromEntry(entry); err == nil {
			t.Fatalf("case %d: error=nil, want non-nil", i)
		}
	}
}

func TestTXTRecords(t *testing.T) {
	if got, want := TXTRecords("", ""), []string{"path=/"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("TXTRecords=%v, want %v", got, want)
	}
	if got, want := TXTRecords("/ws", "extended"), []string{"path=/ws", "dialect=extended"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("TXTRecords=%v, want %v", got, want)
	}
}
