package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// DiscoveryReply is what a device answers to a broadcast discovery query.
type DiscoveryReply struct {
	Name            string
	IPAddress       string
	MACAddress      string
	Port            uint32
	SerialNo        string
	FirmwareVersion string
	IsPowerOn       bool
}

// Marshal encodes the reply. Zero fields are omitted.
func (m *DiscoveryReply) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.IPAddress)
	b = appendString(b, 3, m.MACAddress)
	b = appendUvarint(b, 4, uint64(m.Port))
	b = appendString(b, 5, m.SerialNo)
	b = appendString(b, 6, m.FirmwareVersion)
	b = appendBool(b, 7, m.IsPowerOn)
	return b
}

// Unmarshal decodes b into m, replacing its contents.
func (m *DiscoveryReply) Unmarshal(b []byte) error {
	*m = DiscoveryReply{}
	return decodeFields("DiscoveryReply", b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Name)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.IPAddress)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &m.MACAddress)
		case num == 4 && typ == protowire.VarintType:
			var v uint64
			n := consumeUvarint(b, &v)
			m.Port = uint32(v)
			return n
		case num == 5 && typ == protowire.BytesType:
			return consumeString(b, &m.SerialNo)
		case num == 6 && typ == protowire.BytesType:
			return consumeString(b, &m.FirmwareVersion)
		case num == 7 && typ == protowire.VarintType:
			return consumeBool(b, &m.IsPowerOn)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
}

// UnmarshalDiscoveryReply decodes a datagram that carries either one
// delimited reply or a bare reply.
func UnmarshalDiscoveryReply(datagram []byte) (*DiscoveryReply, error) {
	var reply DiscoveryReply
	if payload, n, err := ReadDelimited(datagram); err == nil && n == len(datagram) {
		if err := reply.Unmarshal(payload); err == nil {
			return &reply, nil
		}
	}
	if err := reply.Unmarshal(datagram); err != nil {
		return nil, err
	}
	return &reply, nil
}

var _ Message = (*DiscoveryReply)(nil)
