package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUvarint(b, num, protowire.EncodeBool(v))
}

// fieldDecoder consumes the value of one field and returns the number of
// bytes used, or a negative protowire error code. Fields it does not know
// must be passed to protowire.ConsumeFieldValue.
type fieldDecoder func(num protowire.Number, typ protowire.Type, b []byte) int

func decodeFields(name string, b []byte, decode fieldDecoder) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("decode %s: %w", name, protowire.ParseError(n))
		}
		b = b[n:]

		n = decode(num, typ, b)
		if n < 0 {
			return fmt.Errorf("decode %s field %d: %w", name, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func consumeString(b []byte, dst *string) int {
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeUvarint(b []byte, dst *uint64) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeBool(b []byte, dst *bool) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}
