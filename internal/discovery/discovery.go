// Package discovery advertises and finds relays on the local network over
// mDNS.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	ServiceType    = "_whiteboard._tcp"
	DefaultTimeout = 2 * time.Second
)

// Relay is a relay found on the network.
type Relay struct {
	Instance string   `json:"instance"`
	Host     string   `json:"host"`
	Addr     string   `json:"addr"`
	Info     []string `json:"info,omitempty"`
}

// URL returns the relay's websocket endpoint for roomID.
func (r Relay) URL(roomID string) string {
	return fmt.Sprintf("ws://%s/ws/room/%s", r.Addr, roomID)
}

// Advertise publishes the relay on port until the returned server is shut
// down. An empty instance uses the hostname.
func Advertise(port int, instance string, info ...string) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	slog.Info("advertising relay", "instance", instance, "service", ServiceType, "port", port)
	return server, nil
}

// Browse collects relays that answer within timeout or until ctx is done.
func Browse(ctx context.Context, timeout time.Duration) ([]Relay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan []Relay, 1)
	go func() {
		var relays []Relay
		seen := make(map[string]bool)
		for e := range entries {
			r, ok := relayFromEntry(e)
			if !ok || seen[r.Addr] {
				continue
			}
			seen[r.Addr] = true
			relays = append(relays, r)
		}
		found <- relays
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	relays := <-found
	if err != nil {
		return relays, fmt.Errorf("mdns query: %w", err)
	}
	return relays, nil
}

func relayFromEntry(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Relay{}, false
	}
	instance := strings.TrimSuffix(e.Name, ".")
	if i := strings.Index(instance, "."+ServiceType); i >= 0 {
		instance = instance[:i]
	}
	return Relay{
		Instance: instance,
		Host:     e.Host,
		Addr:     net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
		Info:     e.InfoFields,
	}, true
}
