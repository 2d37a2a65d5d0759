// Package message defines the values that travel over a device link.
//
// Outbound values are immutable once built and produce their exact wire
// bytes through Bytes. Inbound values are produced by a consumer and carry
// one of three payload kinds: a decoded status message, a trimmed text
// response or a raw byte buffer.
package message
