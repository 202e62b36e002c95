// Package discovery finds CoAP endpoints on the local network via
// DNS-SD over mDNS (RFC 6763), using the "_coap._udp" service type
// registered by RFC 7252.
//
// The Browser aggregates answers from multiple interfaces into one
// Service per instance name and reports them on a channel until the
// browse context is cancelled. TXT records carry CoRE link attributes
// (rt, if) and an optional path prefix.
package discovery
