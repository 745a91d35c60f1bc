// Package wifi associates the board with a wireless network and reports the
// link status the command server waits on.
package wifi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/vishvananda/netlink"
)

// LinkStatus mirrors the station status codes reported by small Wi-Fi
// stacks: negative values are failures, StatusUp means associated with an
// address.
type LinkStatus int

const (
	StatusBadAuth LinkStatus = -3
	StatusNoNet   LinkStatus = -2
	StatusFail    LinkStatus = -1
	StatusDown    LinkStatus = 0
	StatusJoin    LinkStatus = 1
	StatusNoIP    LinkStatus = 2
	StatusUp      LinkStatus = 3
)

func (s LinkStatus) String() string {
	switch s {
	case StatusBadAuth:
		return "bad-auth"
	case StatusNoNet:
		return "no-net"
	case StatusFail:
		return "fail"
	case StatusDown:
		return "down"
	case StatusJoin:
		return "join"
	case StatusNoIP:
		return "no-ip"
	case StatusUp:
		return "up"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether polling can stop at this status.
func (s LinkStatus) Terminal() bool {
	return s < StatusDown || s >= StatusUp
}

var (
	ErrBadAuth   = errors.New("wifi: authentication rejected")
	ErrNoNetwork = errors.New("wifi: network not found")
)

// Station is a Wi-Fi client interface.
type Station interface {
	Associate(ctx context.Context, ssid, password string) error
	Status() (LinkStatus, error)
	Addr() (net.IP, error)
}

// NetlinkOps is the subset of netlink used to inspect the interface.
type NetlinkOps interface {
	LinkByName(name string) (netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
}

// RealNetlinkOps calls into the kernel.
type RealNetlinkOps struct{}

func (r *RealNetlinkOps) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}
func (r *RealNetlinkOps) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

// Associator asks the system to join a network on an interface.
type Associator interface {
	Associate(ctx context.Context, iface, ssid, password string) error
}

// NoopAssociator is used when association is managed outside domonode
// (wpa_supplicant, systemd-networkd).
type NoopAssociator struct{}

func (NoopAssociator) Associate(context.Context, string, string, string) error { return nil }

// NetlinkStation derives the link status from the kernel's view of the
// interface: operational state first, then the presence of an IPv4 address.
type NetlinkStation struct {
	iface      string
	ops        NetlinkOps
	associator Associator

	mu          sync.Mutex
	associating bool
	assocErr    error
}

// NewNetlinkStation creates a station bound to iface. A nil ops uses the
// kernel; a nil associator leaves association to the system.
func NewNetlinkStation(iface string, ops NetlinkOps, associator Associator) *NetlinkStation {
	if ops == nil {
		ops = &RealNetlinkOps{}
	}
	if associator == nil {
		associator = NoopAssociator{}
	}
	return &NetlinkStation{
		iface:      iface,
		ops:        ops,
		associator: associator,
	}
}

// Associate joins ssid. Failures are also remembered so Status reports them.
func (s *NetlinkStation) Associate(ctx context.Context, ssid, password string) error {
	s.mu.Lock()
	s.associating = true
	s.assocErr = nil
	s.mu.Unlock()

	err := s.associator.Associate(ctx, s.iface, ssid, password)

	s.mu.Lock()
	s.assocErr = err
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("associate %s with %q: %w", s.iface, ssid, err)
	}
	return nil
}

// Status reports the current link status of the interface.
func (s *NetlinkStation) Status() (LinkStatus, error) {
	s.mu.Lock()
	associating, assocErr := s.associating, s.assocErr
	s.mu.Unlock()

	switch {
	case errors.Is(assocErr, ErrBadAuth):
		return StatusBadAuth, nil
	case errors.Is(assocErr, ErrNoNetwork):
		return StatusNoNet, nil
	case assocErr != nil:
		return StatusFail, nil
	}

	link, err := s.ops.LinkByName(s.iface)
	if err != nil {
		return StatusFail, fmt.Errorf("lookup %s: %w", s.iface, err)
	}

	attrs := link.Attrs()
	switch attrs.OperState {
	case netlink.OperUp, netlink.OperUnknown:
		if attrs.Flags&net.FlagUp == 0 {
			return StatusDown, nil
		}
	case netlink.OperDormant:
		return StatusJoin, nil
	default:
		if associating {
			return StatusJoin, nil
		}
		return StatusDown, nil
	}

	addrs, err := s.ops.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return StatusFail, fmt.Errorf("list addresses on %s: %w", s.iface, err)
	}
	if len(addrs) == 0 {
		return StatusNoIP, nil
	}
	return StatusUp, nil
}

// Addr returns the first IPv4 address of the interface.
func (s *NetlinkStation) Addr() (net.IP, error) {
	link, err := s.ops.LinkByName(s.iface)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", s.iface, err)
	}
	addrs, err := s.ops.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("list addresses on %s: %w", s.iface, err)
	}
	for _, a := range addrs {
		if a.IPNet != nil && a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address on %s", s.iface)
}
