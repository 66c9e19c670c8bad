package sysinfo

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miradorstack/helpdesk/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("EST", -5*3600))
}

func TestCollectHappyPath(t *testing.T) {
	c := &Collector{
		CurrentUser: func() (string, error) { return "alice", nil },
		Hostname:    func() (string, error) { return "ws-042", nil },
		LookupHost: func(host string) ([]string, error) {
			if host != "ws-042" {
				t.Fatalf("unexpected lookup host %q", host)
			}
			return []string{"127.0.1.1", "fe80::1", "10.1.2.3"}, nil
		},
		Now: fixedNow,
	}

	ctx := c.Collect()
	if ctx.Username != "alice" || ctx.Hostname != "ws-042" {
		t.Fatalf("unexpected identity: %+v", ctx)
	}
	if ctx.IPAddress != "10.1.2.3" {
		t.Fatalf("expected non-loopback address, got %s", ctx.IPAddress)
	}
	if ctx.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", ctx.Timestamp.Location())
	}
	if !ctx.Timestamp.Equal(fixedNow()) {
		t.Fatalf("unexpected timestamp %v", ctx.Timestamp)
	}
}

func TestCollectFallsBackToInterfaces(t *testing.T) {
	c := &Collector{
		CurrentUser: func() (string, error) { return "", errors.New("no passwd entry") },
		Getenv: func(key string) string {
			if key == "USERNAME" {
				return "bob"
			}
			return ""
		},
		Hostname:   func() (string, error) { return "ws-7", nil },
		LookupHost: func(string) ([]string, error) { return []string{"127.0.0.1"}, nil },
		InterfaceAddrs: func() ([]net.Addr, error) {
			return []net.Addr{
				&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
				&net.IPNet{IP: net.ParseIP("192.168.4.20"), Mask: net.CIDRMask(24, 32)},
			}, nil
		},
		Now: fixedNow,
	}

	ctx := c.Collect()
	if ctx.Username != "bob" {
		t.Fatalf("expected env username, got %s", ctx.Username)
	}
	if ctx.IPAddress != "192.168.4.20" {
		t.Fatalf("expected interface address, got %s", ctx.IPAddress)
	}
}

func TestCollectLoopbackOnly(t *testing.T) {
	c := &Collector{
		Hostname:   func() (string, error) { return "isolated", nil },
		LookupHost: func(string) ([]string, error) { return []string{"127.0.0.1"}, nil },
		Now:        fixedNow,
	}
	if got := c.Collect().IPAddress; got != "127.0.0.1" {
		t.Fatalf("expected loopback fallback, got %s", got)
	}
}

func TestCollectEverythingFails(t *testing.T) {
	fail := errors.New("boom")
	c := &Collector{
		CurrentUser:    func() (string, error) { return "", fail },
		Hostname:       func() (string, error) { return "", fail },
		LookupHost:     func(string) ([]string, error) { return nil, fail },
		InterfaceAddrs: func() ([]net.Addr, error) { return nil, fail },
		Getenv:         func(string) string { return "" },
	}

	ctx := c.Collect()
	if ctx.Username != models.Unknown || ctx.Hostname != models.Unknown || ctx.IPAddress != models.Unknown {
		t.Fatalf("expected sentinel values, got %+v", ctx)
	}
	if ctx.Timestamp.IsZero() {
		t.Fatalf("expected timestamp from default clock")
	}
}

func TestNewCollectorUsesHost(t *testing.T) {
	ctx := NewCollector().Collect()
	if ctx.Username == "" || ctx.Hostname == "" || ctx.IPAddress == "" {
		t.Fatalf("fields must never be empty: %+v", ctx)
	}
}
