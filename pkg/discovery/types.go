package discovery

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypeCoAP is the DNS-SD service type for CoAP over UDP.
	ServiceTypeCoAP = "_coap._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default CoAP port.
	DefaultPort = 5683
)

// TXT record key constants, following CoRE link-format attribute names.
const (
	// TXTKeyResourceType is the rt= attribute (e.g. "oic.d.sensor").
	TXTKeyResourceType = "rt"

	// TXTKeyInterface is the if= attribute (e.g. "core.s").
	TXTKeyInterface = "if"

	// TXTKeyPath is an optional path prefix under which the endpoint's
	// resources live.
	TXTKeyPath = "path"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Discovery errors.
var (
	ErrNotFound            = errors.New("service not found")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrMissingInstanceName = errors.New("missing instance name")
)

// Service represents a CoAP endpoint found via mDNS.
type Service struct {
	// InstanceName is the mDNS instance name (e.g. "livingroom-sensor").
	InstanceName string

	// Host is the hostname (e.g. "sensor-01.local.").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// ResourceType is the rt= attribute from the TXT record.
	ResourceType string

	// Interface is the if= attribute from the TXT record.
	Interface string

	// Path is the optional resource path prefix from the TXT record.
	Path string
}

// Endpoints returns the service's addresses as dialable endpoints.
// Addresses that fail to parse are skipped.
func (s *Service) Endpoints() []netip.AddrPort {
	endpoints := make([]netip.AddrPort, 0, len(s.Addresses))
	for _, addr := range s.Addresses {
		ip, err := netip.ParseAddr(addr)
		if err != nil {
			continue
		}
		port := s.Port
		if port == 0 {
			port = DefaultPort
		}
		endpoints = append(endpoints, netip.AddrPortFrom(ip, port))
	}
	return endpoints
}

// Info contains the information for advertising a CoAP endpoint.
type Info struct {
	// InstanceName is the mDNS instance name to advertise.
	InstanceName string

	// Port is the service port. Zero means DefaultPort.
	Port uint16

	// ResourceType is the optional rt= attribute.
	ResourceType string

	// Interface is the optional if= attribute.
	Interface string

	// Path is the optional resource path prefix.
	Path string
}

// Validate checks if the Info is valid for advertising.
func (i *Info) Validate() error {
	if i.InstanceName == "" {
		return ErrMissingInstanceName
	}
	if len(i.InstanceName) > MaxInstanceNameLen {
		return fmt.Errorf("%w: %q", ErrInstanceNameTooLong, i.InstanceName)
	}
	return nil
}
