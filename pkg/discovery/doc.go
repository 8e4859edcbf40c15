// Package discovery finds local gateways over mDNS so a device can prefer
// a LAN ingestion endpoint over the cloud hub.
package discovery
