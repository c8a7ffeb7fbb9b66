package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/moffa90/go-upsilon/calculator"
	"github.com/moffa90/go-upsilon/internal/configpaths"
	"github.com/moffa90/go-upsilon/storage"
)

// Backup saves the record storage of the connected calculator.
type Backup struct {
	Device `embed:""`

	Output   string `arg:"" optional:"" help:"Destination of the raw storage image" default:"storage.bin" type:"path"`
	Manifest bool   `help:"Also write a YAML manifest of the records next to the image"`
	Extract  string `help:"Directory to extract every record into as a file" type:"path"`
	Force    bool   `help:"Overwrite existing files"`
}

type manifestRecord struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Size       int    `yaml:"size"`
	AutoImport *bool  `yaml:"auto_import,omitempty"`
}

type manifest struct {
	Serial  string           `yaml:"serial"`
	Image   string           `yaml:"image"`
	Records []manifestRecord `yaml:"records"`
}

// Run is called by Kong when the backup command is executed.
func (c *Backup) Run(logger *slog.Logger) error {
	return c.session(logger, calculator.ModeCalculator, newProgress(stdout, isTerminal()), func(ctx context.Context, calc *calculator.Calculator) error {
		return c.save(ctx, calc, logger)
	})
}

func (c *Backup) save(ctx context.Context, calc *calculator.Calculator, logger *slog.Logger) error {
	raw, err := calc.ReadStorage(ctx)
	if err != nil {
		return err
	}
	s, err := storage.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode storage: %w", err)
	}

	if err := writeFile(c.Output, raw, c.Force); err != nil {
		return err
	}
	logger.Info("storage saved", "file", c.Output, "records", len(s.Records))

	if c.Manifest {
		m := manifest{Serial: calc.Info().Serial, Image: filepath.Base(c.Output)}
		for _, r := range s.Records {
			m.Records = append(m.Records, describeRecord(r))
		}
		data, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		path := strings.TrimSuffix(c.Output, filepath.Ext(c.Output)) + ".yaml"
		if err := writeFile(path, data, c.Force); err != nil {
			return err
		}
	}

	if c.Extract != "" {
		if err := extractRecords(s, c.Extract, c.Force); err != nil {
			return err
		}
		logger.Info("records extracted", "dir", c.Extract)
	}
	return nil
}

func describeRecord(r storage.Record) manifestRecord {
	mr := manifestRecord{Name: r.Name, Type: r.Type}
	switch p := r.Payload.(type) {
	case *storage.Script:
		auto := p.AutoImport
		mr.AutoImport = &auto
		mr.Size = len(p.Code)
	case storage.Raw:
		mr.Size = len(p)
	}
	return mr
}

func extractRecords(s *storage.Storage, dir string, force bool) error {
	for _, r := range s.Records {
		var data []byte
		switch p := r.Payload.(type) {
		case *storage.Script:
			data = []byte(p.Code)
		case storage.Raw:
			data = p
		default:
			continue
		}
		if err := writeFile(filepath.Join(dir, filepath.Base(r.FullName())), data, force); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s exists; use --force to overwrite", path)
		}
	}
	if err := configpaths.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Restore writes a record storage to the connected calculator.
type Restore struct {
	Device `embed:""`

	Input      string   `arg:"" optional:"" help:"Raw storage image to install; the current storage is kept when omitted" type:"existingfile"`
	Script     []string `help:"Python scripts to add or replace" type:"path"`
	AutoImport bool     `help:"Mark added scripts for automatic import"`
	Remove     []string `help:"Records to delete, as name.type"`
}

// Run is called by Kong when the restore command is executed.
func (c *Restore) Run(logger *slog.Logger) error {
	if c.Input == "" && len(c.Script) == 0 && len(c.Remove) == 0 {
		return errors.New("nothing to restore: give an image, --script or --remove")
	}

	var image *storage.Storage
	if c.Input != "" {
		s, err := storage.DecodeFile(c.Input)
		if err != nil {
			return err
		}
		// A file without the magic decodes to an empty storage.
		if !s.Magic {
			return fmt.Errorf("%s is not a storage image", c.Input)
		}
		image = s
	}

	return c.session(logger, calculator.ModeCalculator, newProgress(stdout, isTerminal()), func(ctx context.Context, calc *calculator.Calculator) error {
		return c.install(ctx, calc, image)
	})
}

// install applies the edits to image, or to the current storage when image is nil.
func (c *Restore) install(ctx context.Context, calc *calculator.Calculator, image *storage.Storage) error {
	s := image
	if s == nil {
		var err error
		if s, err = calc.BackupStorage(ctx); err != nil {
			return err
		}
	}

	for _, full := range c.Remove {
		name, typ := splitName(full)
		if !s.Remove(name, typ) {
			return fmt.Errorf("no record %q", full)
		}
	}
	for _, path := range c.Script {
		code, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name, _ := splitName(filepath.Base(path))
		s.Add(storage.NewScript(name, string(code), c.AutoImport))
	}

	return calc.InstallStorage(ctx, s)
}

func splitName(full string) (name, typ string) {
	if dot := strings.LastIndexByte(full, '.'); dot >= 0 {
		return full[:dot], full[dot+1:]
	}
	return full, ""
}
