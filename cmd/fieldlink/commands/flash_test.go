package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/fieldlink-go/pkg/bootproto"
	"github.com/fieldlink/fieldlink-go/pkg/hid"
)

var errNoResponse = errors.New("read timeout")

// scriptedBootloader answers every command the way a healthy bootloader
// would and records what it was sent.
type scriptedBootloader struct {
	mu      sync.Mutex
	silent  bool
	pending [][]byte
	sent    []byte
}

func (b *scriptedBootloader) WriteReport(ctx context.Context, report []byte) error {
	f, err := bootproto.Decode(report)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, f.Command)
	if b.silent {
		return nil
	}

	var resp []byte
	switch f.Command {
	case bootproto.CmdRequestVersion:
		resp = bootproto.Encode(bootproto.CmdRequestVersion, 2, 5)
	case bootproto.CmdEraseFlash, bootproto.CmdProgramFlash:
		resp = bootproto.Encode(f.Command)
	default:
		return nil
	}
	r, err := bootproto.EncodeReport(resp, hid.DefaultReportSize)
	if err != nil {
		return err
	}
	b.pending = append(b.pending, r)
	return nil
}

func (b *scriptedBootloader) ReadReport(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil, errNoResponse
	}
	r := b.pending[0]
	b.pending = b.pending[1:]
	return r, nil
}

func (b *scriptedBootloader) FastReadReport(ctx context.Context) ([]byte, error) {
	return b.ReadReport(ctx)
}

func (b *scriptedBootloader) ReportSize() int { return hid.DefaultReportSize }

func (b *scriptedBootloader) Close() error { return nil }

func (b *scriptedBootloader) commands() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.sent...)
}

var _ hid.ReportDevice = (*scriptedBootloader)(nil)

const testImage = `:0400000001020304F2
:02001000AABB89
:00000001FF
`

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.hex")
	require.NoError(t, os.WriteFile(path, []byte(testImage), 0o644))
	return path
}

func TestFlashDevice(t *testing.T) {
	records := [][]byte{
		{0x04, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0xF2},
		{0x00, 0x00, 0x00, 0x01, 0xFF},
	}

	tests := []struct {
		name  string
		erase bool
		quiet bool
		want  []byte
	}{
		{
			name:  "quiet",
			quiet: true,
			want: []byte{
				bootproto.CmdRequestVersion,
				bootproto.CmdProgramFlash, bootproto.CmdProgramFlash,
				bootproto.CmdJumpToApplication,
			},
		},
		{
			name:  "erase with progress",
			erase: true,
			want: []byte{
				bootproto.CmdRequestVersion,
				bootproto.CmdEraseFlash,
				bootproto.CmdProgramFlash, bootproto.CmdProgramFlash,
				bootproto.CmdJumpToApplication,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &scriptedBootloader{}
			var out bytes.Buffer

			err := FlashDevice(context.Background(), testEnv(), dev, records, tt.erase, tt.quiet, &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dev.commands())
			assert.Contains(t, out.String(), "Bootloader 2.5: programmed 2 records in")
			if tt.quiet {
				assert.NotContains(t, out.String(), "Programming")
			}
		})
	}
}

func TestFlashDeviceNotResponding(t *testing.T) {
	dev := &scriptedBootloader{silent: true}

	err := FlashDevice(context.Background(), testEnv(), dev, [][]byte{{0x00, 0x00, 0x00, 0x01, 0xFF}}, false, true, &bytes.Buffer{})
	assert.ErrorContains(t, err, "bootloader not responding")
	assert.Equal(t, []byte{bootproto.CmdRequestVersion}, dev.commands())
}

func TestLoadImage(t *testing.T) {
	path := writeImage(t)

	t.Run("whole image", func(t *testing.T) {
		var out bytes.Buffer
		records, err := loadImage(testEnv(), path, &out)
		require.NoError(t, err)
		assert.Len(t, records, 3)
		assert.Contains(t, out.String(), "0x00000000  4 bytes")
		assert.Contains(t, out.String(), "0x00000010  2 bytes")
		assert.Contains(t, out.String(), "total 6 bytes in 2 segments")
		assert.Contains(t, out.String(), "3 records to program")
	})

	t.Run("protected range", func(t *testing.T) {
		env := testEnv()
		env.Config.Bootloader.ProtectedBegin = 0x10
		env.Config.Bootloader.ProtectedEnd = 0x1F

		var out bytes.Buffer
		records, err := loadImage(env, path, &out)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, byte(0x01), records[1][3], "EOF record kept")
		assert.Contains(t, out.String(), "protected 0x00000010-0x0000001F")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadImage(testEnv(), filepath.Join(t.TempDir(), "nope.hex"), &bytes.Buffer{})
		assert.ErrorContains(t, err, "open image")
	})
}

func TestRunFlashDryRun(t *testing.T) {
	var out bytes.Buffer
	err := RunFlash(context.Background(), testEnv(), FlashOptions{Image: writeImage(t), DryRun: true}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "3 records to program")
}
