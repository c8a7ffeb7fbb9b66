package calculator

import (
	"context"
	"fmt"

	"github.com/moffa90/go-upsilon/platform"
	"github.com/moffa90/go-upsilon/storage"
)

// BackupStorage reads and decodes the record storage.
func (c *Calculator) BackupStorage(ctx context.Context) (*storage.Storage, error) {
	raw, err := c.ReadStorage(ctx)
	if err != nil {
		return nil, err
	}

	s, err := storage.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode storage: %w", err)
	}
	if !s.Magic {
		c.config.Logger.Warn("storage has no magic, treating it as empty")
	}
	return s, nil
}

// ReadStorage returns the raw storage area, including the 8 bytes that follow it.
func (c *Calculator) ReadStorage(ctx context.Context) ([]byte, error) {
	info, err := c.storageArea(ctx)
	if err != nil {
		return nil, err
	}

	c.config.Logger.Info("reading storage",
		"address", fmt.Sprintf("0x%08X", info.Storage.Address),
		"size", info.Storage.Size,
	)
	raw, err := c.read(ctx, info.Storage.Address, int(info.Storage.Size)+8)
	if err != nil {
		return nil, fmt.Errorf("read storage: %w", err)
	}
	return raw, nil
}

// InstallStorage encodes s within the storage area size and writes it.
// Nothing is written when s does not fit.
func (c *Calculator) InstallStorage(ctx context.Context, s *storage.Storage) error {
	info, err := c.storageArea(ctx)
	if err != nil {
		return err
	}

	encoded, err := storage.Encode(s, int(info.Storage.Size))
	if err != nil {
		return err
	}

	c.config.Logger.Info("writing storage",
		"address", fmt.Sprintf("0x%08X", info.Storage.Address),
		"records", len(s.Records),
		"bytes", len(encoded),
	)
	if err := c.write(ctx, info.Storage.Address, encoded, false); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	return nil
}

func (c *Calculator) storageArea(ctx context.Context) (platform.Info, error) {
	info, err := c.PlatformInfo(ctx)
	if err != nil {
		return platform.Info{}, err
	}
	if !info.Recognized || info.Storage.Size == 0 {
		return platform.Info{}, ErrNoStorage
	}
	return info, nil
}
