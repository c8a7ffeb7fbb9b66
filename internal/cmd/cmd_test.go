package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/moffa90/go-upsilon/calculator"
	"github.com/moffa90/go-upsilon/dfu"
	"github.com/moffa90/go-upsilon/dfufile"
	"github.com/moffa90/go-upsilon/internal/simdev"
	"github.com/moffa90/go-upsilon/protocol"
	"github.com/moffa90/go-upsilon/storage"
)

// attach routes the commands to the given simulated devices and captures stdout.
func attach(t *testing.T, devices ...*simdev.Device) *bytes.Buffer {
	t.Helper()

	out := &bytes.Buffer{}
	prevOut, prevFinder, prevTerm := stdout, openFinder, isTerminal
	t.Cleanup(func() { stdout, openFinder, isTerminal = prevOut, prevFinder, prevTerm })

	stdout = out
	isTerminal = func() bool { return false }
	openFinder = func(*slog.Logger) (calculator.Finder, func() error) {
		finder := calculator.FinderFunc(func(ctx context.Context, m calculator.Match) ([]dfu.Transport, error) {
			var found []dfu.Transport
			for _, d := range devices {
				if m.Matches(d.Info()) {
					found = append(found, d)
				}
			}
			return found, nil
		})
		return finder, func() error { return nil }
	}
	return out
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withFirmware(serial string) *simdev.Device {
	sim := simdev.N0110(serial)
	sim.LoadFirmware(simdev.DefaultFirmware())
	return sim
}

func TestInfo(t *testing.T) {
	out := attach(t, withFirmware("SN1"))

	c := &Info{Format: "json"}
	require.NoError(t, c.Run(discard()))

	var report map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "SN1", report["serial"])
	assert.Equal(t, "0110", report["model"])

	plat := report["platform"].(map[string]any)
	assert.Equal(t, "bootloader", plat["mode"])
	assert.Equal(t, "2.0.0", plat["version"])
	assert.Equal(t, "f00ba47", plat["commit"])
}

func TestInfoFormats(t *testing.T) {
	for _, format := range []string{"yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			out := attach(t, withFirmware("SN1"))
			c := &Info{Format: format}
			require.NoError(t, c.Run(discard()))
			assert.Contains(t, out.String(), "f00ba47")
		})
	}
}

func TestModelCommand(t *testing.T) {
	out := attach(t, simdev.N0110("SN1"), simdev.Recovery("REC"))

	require.NoError(t, (&Model{}).Run(discard()))
	assert.Equal(t, "0110\n", out.String())

	out.Reset()
	require.NoError(t, (&Model{Recovery: true}).Run(discard()))
	assert.Equal(t, "0110\n", out.String())
}

func TestSerialSelectsDevice(t *testing.T) {
	out := attach(t, withFirmware("SN1"), simdev.N0100("SN2"))

	c := &Model{Device: Device{Serial: "SN2"}}
	require.NoError(t, c.Run(discard()))
	assert.Equal(t, "0100\n", out.String())
}

func TestNoCalculator(t *testing.T) {
	attach(t)

	err := (&Model{}).Run(discard())
	assert.ErrorIs(t, err, ErrNoCalculator)
}

func TestWaitTimesOut(t *testing.T) {
	attach(t)

	c := &Model{Device: Device{Wait: true, WaitTimeout: 50 * time.Millisecond}}
	err := c.Run(discard())
	assert.ErrorIs(t, err, ErrNoCalculator)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitConnects(t *testing.T) {
	out := attach(t, simdev.N0110("SN1"))

	c := &Model{Device: Device{Wait: true, WaitTimeout: time.Second}}
	require.NoError(t, c.Run(discard()))
	assert.Equal(t, "0110\n", out.String())
}

func TestRestoreAndBackup(t *testing.T) {
	fw := simdev.DefaultFirmware()
	sim := withFirmware("SN1")
	attach(t, sim)

	dir := t.TempDir()
	script := filepath.Join(dir, "hello.py")
	require.NoError(t, os.WriteFile(script, []byte("print('hi')\n"), 0o644))

	restore := &Restore{Script: []string{script}, AutoImport: true}
	require.NoError(t, restore.Run(discard()))

	s, err := storage.Decode(sim.Memory(fw.StorageAddress, int(fw.StorageSize)))
	require.NoError(t, err)
	require.True(t, s.Magic)
	r, ok := s.Find("hello", "py")
	require.True(t, ok)
	assert.Equal(t, &storage.Script{AutoImport: true, Code: "print('hi')\n"}, r.Payload)

	image := filepath.Join(dir, "backup", "storage.bin")
	extract := filepath.Join(dir, "files")
	backup := &Backup{Output: image, Manifest: true, Extract: extract}
	require.NoError(t, backup.Run(discard()))

	saved, err := storage.DecodeFile(image)
	require.NoError(t, err)
	assert.Equal(t, s.Records, saved.Records)

	code, err := os.ReadFile(filepath.Join(extract, "hello.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(code))

	data, err := os.ReadFile(filepath.Join(dir, "backup", "storage.yaml"))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, "SN1", m.Serial)
	assert.Equal(t, "storage.bin", m.Image)
	require.Len(t, m.Records, 1)
	assert.Equal(t, "hello", m.Records[0].Name)
	require.NotNil(t, m.Records[0].AutoImport)
	assert.True(t, *m.Records[0].AutoImport)

	// A second backup without --force must not clobber the image.
	assert.Error(t, backup.Run(discard()))
}

func TestRestoreRemove(t *testing.T) {
	fw := simdev.DefaultFirmware()
	sim := withFirmware("SN1")
	attach(t, sim)

	initial := &storage.Storage{}
	initial.Add(storage.NewScript("a", "1", false))
	initial.Add(storage.NewScript("b", "2", false))
	encoded, err := storage.Encode(initial, 0)
	require.NoError(t, err)
	sim.Load(fw.StorageAddress, encoded)

	require.NoError(t, (&Restore{Remove: []string{"a.py"}}).Run(discard()))

	s, err := storage.Decode(sim.Memory(fw.StorageAddress, int(fw.StorageSize)))
	require.NoError(t, err)
	require.Len(t, s.Records, 1)
	assert.Equal(t, "b", s.Records[0].Name)

	assert.Error(t, (&Restore{Remove: []string{"missing.py"}}).Run(discard()))
	assert.Error(t, (&Restore{}).Run(discard()))
}

func TestRestoreRejectsImageWithoutMagic(t *testing.T) {
	fw := simdev.DefaultFirmware()
	sim := withFirmware("SN1")
	attach(t, sim)

	initial := &storage.Storage{}
	initial.Add(storage.NewScript("keep", "1", false))
	encoded, err := storage.Encode(initial, 0)
	require.NoError(t, err)
	sim.Load(fw.StorageAddress, encoded)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a storage image"), 0o644))

	err = (&Restore{Input: path}).Run(discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a storage image")

	assert.Empty(t, sim.ClassRequests(protocol.RequestDownload))
	s, err := storage.Decode(sim.Memory(fw.StorageAddress, int(fw.StorageSize)))
	require.NoError(t, err)
	_, ok := s.Find("keep", "py")
	assert.True(t, ok)
}

func TestFlashInternalCommand(t *testing.T) {
	sim := simdev.N0110("SN1")
	attach(t, sim)

	path := filepath.Join(t.TempDir(), "internal.bin")
	image := bytes.Repeat([]byte{0xA5}, 5000)
	require.NoError(t, os.WriteFile(path, image, 0o644))

	require.NoError(t, (&FlashInternal{Image: path}).Run(discard()))
	assert.Equal(t, image, sim.Memory(0x08000000, len(image)))
}

func TestFlashDfuCommand(t *testing.T) {
	sim := simdev.N0110("SN1")
	attach(t, sim)

	image := bytes.Repeat([]byte{0x3C}, 1000)
	f := dfufile.New(simdev.VendorID, simdev.CalculatorProduct)
	f.Add(0, "Internal Flash", 0x08000000, image)
	data, err := dfufile.Encode(f)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "epsilon.dfu")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, (&FlashDfu{File: path}).Run(discard()))
	assert.Equal(t, image, sim.Memory(0x08000000, len(image)))

	require.NoError(t, os.WriteFile(path, image, 0o644))
	assert.Error(t, (&FlashDfu{File: path}).Run(discard()))
}

func TestFlashRecoveryCommand(t *testing.T) {
	sim := simdev.Recovery("REC")
	attach(t, sim)

	path := filepath.Join(t.TempDir(), "recovery.bin")
	image := bytes.Repeat([]byte{0x5A}, 300)
	require.NoError(t, os.WriteFile(path, image, 0o644))

	require.NoError(t, (&FlashRecovery{Image: path}).Run(discard()))
	assert.Equal(t, image, sim.Memory(calculator.RecoveryAddress, len(image)))
}

func TestFlashEmptyImage(t *testing.T) {
	attach(t, simdev.N0110("SN1"))

	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.Error(t, (&FlashExternal{Image: path}).Run(discard()))
}

func TestList(t *testing.T) {
	out := attach(t, simdev.N0110("SN1"), simdev.Recovery("REC"))

	require.NoError(t, (&List{}).Run(discard()))
	assert.Contains(t, out.String(), "0483:a291\tcalculator\tSN1")
	assert.Contains(t, out.String(), "0483:df11\trecovery\tREC")
}

func TestConfigInit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "conf", "upsilon.yaml")

	c := &ConfigInit{Format: "yaml", Output: dest}
	require.NoError(t, c.Run(discard()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var got configTemplate
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, defaultTemplate(), got)

	assert.Error(t, c.Run(discard()))
	c.Force = true
	assert.NoError(t, c.Run(discard()))

	assert.Error(t, (&ConfigInit{Format: "ini", Output: dest}).Run(discard()))
}

func TestProgress(t *testing.T) {
	assert.Nil(t, newProgress(io.Discard, false).callback())

	buf := &bytes.Buffer{}
	p := newProgress(buf, true)
	cb := p.callback()
	cb(dfu.Progress{Phase: dfu.PhaseErase, Done: 50, Total: 100})
	cb(dfu.Progress{Phase: dfu.PhaseUpload, Done: 64, Total: -1})
	p.finish()

	assert.Equal(t, "\rerase      50.0% 50/100 bytes\n\rupload    64 bytes\n", buf.String())
}

func TestSplitName(t *testing.T) {
	name, typ := splitName("archive.tar.py")
	assert.Equal(t, "archive.tar", name)
	assert.Equal(t, "py", typ)

	name, typ = splitName("plain")
	assert.Equal(t, "plain", name)
	assert.Empty(t, typ)
}
