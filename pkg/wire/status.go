package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// DeviceStatus is the periodic status and sample report streamed by a
// device over the structured protocol.
type DeviceStatus struct {
	SerialNo        string
	FirmwareVersion string
	IsPowerOn       bool
	SampleRate      uint32
	Samples         []float64
	TimestampMicros uint64
}

// Marshal encodes the status. Zero fields are omitted.
func (m *DeviceStatus) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.SerialNo)
	b = appendString(b, 2, m.FirmwareVersion)
	b = appendBool(b, 3, m.IsPowerOn)
	b = appendUvarint(b, 4, uint64(m.SampleRate))
	if len(m.Samples) > 0 {
		packed := make([]byte, 0, 8*len(m.Samples))
		for _, v := range m.Samples {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	b = appendUvarint(b, 6, m.TimestampMicros)
	return b
}

// Unmarshal decodes b into m, replacing its contents. Samples may be packed
// or repeated.
func (m *DeviceStatus) Unmarshal(b []byte) error {
	*m = DeviceStatus{}
	return decodeFields("DeviceStatus", b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.SerialNo)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.FirmwareVersion)
		case num == 3 && typ == protowire.VarintType:
			return consumeBool(b, &m.IsPowerOn)
		case num == 4 && typ == protowire.VarintType:
			var v uint64
			n := consumeUvarint(b, &v)
			m.SampleRate = uint32(v)
			return n
		case num == 5 && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			for len(packed) > 0 {
				v, vn := protowire.ConsumeFixed64(packed)
				if vn < 0 {
					return vn
				}
				m.Samples = append(m.Samples, math.Float64frombits(v))
				packed = packed[vn:]
			}
			return n
		case num == 5 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n >= 0 {
				m.Samples = append(m.Samples, math.Float64frombits(v))
			}
			return n
		case num == 6 && typ == protowire.VarintType:
			return consumeUvarint(b, &m.TimestampMicros)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
}

var _ Message = (*DeviceStatus)(nil)
