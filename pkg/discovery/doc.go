// Package discovery finds devices on the local network and on USB.
//
// Three sources feed the same DeviceFound callback:
//
//   - Broadcaster sends a fixed query to the broadcast address of every
//     usable IPv4 interface and decodes the length-delimited DiscoveryReply
//     datagrams that come back. Responder is the device side of that
//     exchange.
//   - MDNSBrowser browses the _fieldlink._tcp service. Advertiser registers
//     it.
//   - ListUSB enumerates USB serial ports.
//
// Discovery never fails on a single interface or a malformed reply; such
// problems are logged and the remaining endpoints keep working.
package discovery
