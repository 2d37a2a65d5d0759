// Package transport moves messages between the host and a device over a
// byte stream.
//
// A Link owns one Stream and attaches a Producer and a Consumer to it:
//
//	             ┌──────────┐   Send    ┌───────────────┐
//	caller ────► │ Producer │ ────────► │               │
//	             └──────────┘  (FIFO)   │ Stream        │
//	             ┌──────────┐           │ TCP / serial  │
//	Handler ◄─── │ Consumer │ ◄──────── │               │
//	             └──────────┘  Decoder  └───────────────┘
//
// The Producer drains an ordered queue onto the stream from its own
// goroutine. The Consumer runs a single read loop and hands every chunk to
// a Decoder chosen by the link mode:
//   - DelimitedDecoder: varint length-prefixed DeviceStatus messages; partial
//     and merged reads are reassembled the same way on every transport
//   - TextDecoder: SCPI responses, flushed after a quiet period
//   - BinaryDecoder: raw bytes, flushed after a quiet period, capped in size
//
// Closing a Link drains the Producer, stops the Consumer (flushing any
// buffered data) and only then closes the stream.
package transport
