// Package sysinfo gathers best-effort host metadata for incident records.
package sysinfo

import (
	"net"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/miradorstack/helpdesk/internal/models"
)

// Collector reads username, hostname, address and time from the local host.
// Every lookup is replaceable so tests can simulate failures.
type Collector struct {
	CurrentUser    func() (string, error)
	Hostname       func() (string, error)
	LookupHost     func(host string) ([]string, error)
	InterfaceAddrs func() ([]net.Addr, error)
	Getenv         func(key string) string
	Now            func() time.Time
}

// NewCollector returns a Collector backed by the operating system.
func NewCollector() *Collector {
	return &Collector{
		CurrentUser: func() (string, error) {
			u, err := user.Current()
			if err != nil {
				return "", err
			}
			return u.Username, nil
		},
		Hostname:       os.Hostname,
		LookupHost:     net.LookupHost,
		InterfaceAddrs: net.InterfaceAddrs,
		Getenv:         os.Getenv,
		Now:            time.Now,
	}
}

// Collect never fails; fields that cannot be determined hold models.Unknown.
func (c *Collector) Collect() models.SystemContext {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	hostname := c.hostname()
	return models.SystemContext{
		Username:  c.username(),
		Hostname:  hostname,
		IPAddress: c.ipAddress(hostname),
		Timestamp: now().UTC(),
	}
}

func (c *Collector) username() string {
	if c.CurrentUser != nil {
		if name, err := c.CurrentUser(); err == nil && strings.TrimSpace(name) != "" {
			return name
		}
	}
	if c.Getenv != nil {
		for _, key := range []string{"USER", "USERNAME", "LOGNAME"} {
			if v := strings.TrimSpace(c.Getenv(key)); v != "" {
				return v
			}
		}
	}
	return models.Unknown
}

func (c *Collector) hostname() string {
	if c.Hostname == nil {
		return models.Unknown
	}
	name, err := c.Hostname()
	if err != nil || strings.TrimSpace(name) == "" {
		return models.Unknown
	}
	return name
}

// ipAddress prefers a non-loopback IPv4 resolved from the hostname, then one
// bound to a local interface, then a loopback address.
func (c *Collector) ipAddress(hostname string) string {
	var loopback string

	if c.LookupHost != nil && hostname != models.Unknown {
		if addrs, err := c.LookupHost(hostname); err == nil {
			for _, a := range addrs {
				ip := net.ParseIP(a)
				if ip == nil || ip.To4() == nil {
					continue
				}
				if !ip.IsLoopback() {
					return ip.String()
				}
				if loopback == "" {
					loopback = ip.String()
				}
			}
		}
	}

	if c.InterfaceAddrs != nil {
		if addrs, err := c.InterfaceAddrs(); err == nil {
			for _, a := range addrs {
				ipNet, ok := a.(*net.IPNet)
				if !ok || ipNet.IP.To4() == nil {
					continue
				}
				if !ipNet.IP.IsLoopback() {
					return ipNet.IP.String()
				}
				if loopback == "" {
					loopback = ipNet.IP.String()
				}
			}
		}
	}

	if loopback != "" {
		return loopback
	}
	return models.Unknown
}
