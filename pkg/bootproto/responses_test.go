package bootproto

import (
	"errors"
	"testing"
)

func mustDecode(t *testing.T, report []byte) Frame {
	t.Helper()
	f, err := Decode(report)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return f
}

func TestDecodeVersion(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Version
	}{
		{name: "plain", payload: []byte{0x02, 0x07}, want: Version{Major: 2, Minor: 7}},
		{name: "escaped bytes", payload: []byte{DLE, EOT}, want: Version{Major: 0x10, Minor: 0x04}},
		{name: "extra bytes", payload: []byte{0x01, 0x00, 0xFF}, want: Version{Major: 1, Minor: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustDecode(t, Encode(CmdRequestVersion, tt.payload...))
			got, err := DecodeVersion(f)
			if err != nil {
				t.Fatalf("DecodeVersion failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeVersion() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeVersionErrors(t *testing.T) {
	short := mustDecode(t, Encode(CmdRequestVersion, 0x01))
	if _, err := DecodeVersion(short); !errors.Is(err, ErrShortPayload) {
		t.Errorf("short payload: got %v, want ErrShortPayload", err)
	}

	other := mustDecode(t, Encode(CmdEraseFlash, 0x01, 0x02))
	if _, err := DecodeVersion(other); !errors.Is(err, ErrUnexpectedCommand) {
		t.Errorf("wrong command: got %v, want ErrUnexpectedCommand", err)
	}
}

func TestVersionString(t *testing.T) {
	if s := (Version{Major: 3, Minor: 12}).String(); s != "3.12" {
		t.Errorf("String() = %q, want %q", s, "3.12")
	}
}

func TestDecodeAck(t *testing.T) {
	f := mustDecode(t, Encode(CmdProgramFlash))

	if err := DecodeAck(f, CmdProgramFlash); err != nil {
		t.Errorf("DecodeAck(ProgramFlash) = %v, want nil", err)
	}
	if err := DecodeAck(f, CmdEraseFlash); !errors.Is(err, ErrUnexpectedCommand) {
		t.Errorf("DecodeAck(EraseFlash) = %v, want ErrUnexpectedCommand", err)
	}
}

func TestDecodeCRC(t *testing.T) {
	f := mustDecode(t, Encode(CmdReadCRC, 0x07, 0x05))

	crc, err := DecodeCRC(f)
	if err != nil {
		t.Fatalf("DecodeCRC failed: %v", err)
	}
	if crc != 0x0507 {
		t.Errorf("DecodeCRC() = 0x%04X, want 0x0507", crc)
	}

	short := mustDecode(t, Encode(CmdReadCRC))
	if _, err := DecodeCRC(short); !errors.Is(err, ErrShortPayload) {
		t.Errorf("short payload: got %v, want ErrShortPayload", err)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name         string
		cmd          Command
		code         byte
		wantResponse bool
	}{
		{name: "request version", cmd: NewRequestVersion(), code: CmdRequestVersion, wantResponse: true},
		{name: "erase flash", cmd: NewEraseFlash(), code: CmdEraseFlash, wantResponse: true},
		{name: "program flash", cmd: NewProgramFlash([]byte{0x01}), code: CmdProgramFlash, wantResponse: true},
		{name: "read crc", cmd: NewReadCRC(0, 16), code: CmdReadCRC, wantResponse: true},
		{name: "jump", cmd: NewJumpToApplication(), code: CmdJumpToApplication, wantResponse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.Code != tt.code {
				t.Errorf("Code = 0x%02X, want 0x%02X", tt.cmd.Code, tt.code)
			}
			if tt.cmd.ExpectsResponse() != tt.wantResponse {
				t.Errorf("ExpectsResponse() = %v, want %v", tt.cmd.ExpectsResponse(), tt.wantResponse)
			}

			report, err := tt.cmd.Report(DefaultReportSize)
			if err != nil {
				t.Fatalf("Report failed: %v", err)
			}
			f := mustDecode(t, report)
			if f.Command != tt.code {
				t.Errorf("decoded Command = 0x%02X, want 0x%02X", f.Command, tt.code)
			}
		})
	}
}

func TestNewProgramFlashCopiesRecord(t *testing.T) {
	record := []byte{0x02, 0x00, 0x00, 0x04}
	cmd := NewProgramFlash(record)
	record[0] = 0xFF

	if cmd.Payload[0] != 0x02 {
		t.Errorf("Payload aliases caller slice: % X", cmd.Payload)
	}
}
