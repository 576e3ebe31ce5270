package cast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceName is the mDNS service advertised by Cast receivers.
const ServiceName = "_googlecast._tcp"

// DefaultDiscoveryTimeout is how long a discovery query listens.
const DefaultDiscoveryTimeout = 3 * time.Second

// Receiver is a Cast receiver found on the local network.
type Receiver struct {
	// Name is the user-visible friendly name (TXT "fn").
	Name string
	// Model is the device model (TXT "md").
	Model string
	// ID is the receiver's unique ID (TXT "id").
	ID   string
	Host string
	Port int
}

// Address returns the receiver's host:port.
func (r Receiver) Address() string {
	return Address(r.Host, r.Port)
}

// QueryFunc runs one mDNS query. mdns.Query satisfies it.
type QueryFunc func(params *mdns.QueryParam) error

// Discoverer finds Cast receivers over mDNS.
type Discoverer struct {
	timeout time.Duration
	query   QueryFunc
}

// NewDiscoverer creates a discoverer. A zero timeout selects
// DefaultDiscoveryTimeout; a nil query selects mdns.Query.
func NewDiscoverer(timeout time.Duration, query QueryFunc) *Discoverer {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	if query == nil {
		query = mdns.Query
	}
	return &Discoverer{timeout: timeout, query: query}
}

// Discover lists the receivers that answer within the timeout.
func (d *Discoverer) Discover(ctx context.Context) ([]Receiver, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	errCh := make(chan error, 1)

	go func() {
		params := &mdns.QueryParam{
			Service:             ServiceName,
			Domain:              "local",
			Timeout:             d.timeout,
			Entries:             entries,
			DisableIPv6:         true,
			WantUnicastResponse: true,
		}
		errCh <- d.query(params)
		close(entries)
	}()

	seen := make(map[string]bool)
	var found []Receiver
	for entry := range entries {
		if ctx.Err() != nil {
			continue // drain so the query goroutine can finish
		}
		r, ok := receiverFromEntry(entry)
		if !ok || seen[r.Address()] {
			continue
		}
		seen[r.Address()] = true
		found = append(found, r)
	}

	if err := <-errCh; err != nil {
		return found, fmt.Errorf("mdns query: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return found, err
	}
	return found, nil
}

// Resolve returns the receiver whose friendly name matches name
// (case-insensitive).
func (d *Discoverer) Resolve(ctx context.Context, name string) (Receiver, error) {
	receivers, err := d.Discover(ctx)
	if err != nil && len(receivers) == 0 {
		return Receiver{}, err
	}
	for _, r := range receivers {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return Receiver{}, fmt.Errorf("%w: %q", ErrReceiverNotFound, name)
}

func receiverFromEntry(e *mdns.ServiceEntry) (Receiver, bool) {
	if e == nil || e.AddrV4 == nil {
		return Receiver{}, false
	}

	r := Receiver{
		Host: e.AddrV4.String(),
		Port: e.Port,
	}
	for _, field := range e.InfoFields {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "fn":
			r.Name = v
		case "md":
			r.Model = v
		case "id":
			r.ID = v
		}
	}
	if r.Name == "" {
		r.Name = e.Host
	}
	return r, true
}
