// Package wire defines the structured binary messages exchanged with devices.
//
// Messages use the protocol buffers wire format. They are encoded by hand on
// top of protowire so that no generated code is needed; field numbers are
// fixed by the device firmware:
//
//	DeviceStatus   1 serial_no  2 firmware_version  3 is_power_on
//	               4 sample_rate  5 samples (packed double)  6 timestamp_us
//	DiscoveryReply 1 name  2 ip_address  3 mac_address  4 port
//	               5 serial_no  6 firmware_version  7 is_power_on
//
// Unknown fields are skipped on decode so newer firmware stays readable.
//
// # Delimiting
//
// On stream transports each message is preceded by its length as a base-128
// varint. AppendDelimited writes that form and ReadDelimited extracts one
// message from a buffer that may hold a partial message or several messages.
package wire
