package main

import (
	"os"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/moffa90/go-upsilon/internal/cmd"
	"github.com/moffa90/go-upsilon/internal/configpaths"
	"github.com/moffa90/go-upsilon/internal/log"
)

// CLI is the command tree of the upsilon tool.
type CLI struct {
	Config string `help:"Configuration file (JSON, YAML or TOML)" env:"UPSILON_CONFIG" type:"path"`

	Log struct {
		Level string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"UPSILON_LOG_LEVEL"`
		File  string `help:"Also write logs to this file" env:"UPSILON_LOG_FILE" type:"path"`
	} `embed:"" prefix:"log."`

	List    cmd.List          `cmd:"" help:"List attached calculators"`
	Info    cmd.Info          `cmd:"" help:"Print the platform information of a calculator"`
	Model   cmd.Model         `cmd:"" help:"Print the model of a calculator"`
	Backup  cmd.Backup        `cmd:"" help:"Save the record storage"`
	Restore cmd.Restore       `cmd:"" help:"Install a record storage or edit the current one"`
	Flash   cmd.Flash         `cmd:"" help:"Flash firmware"`
	Cfg     cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
}

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("upsilon"),
		kong.Description("Flash and back up NumWorks calculators over USB DFU"),
		kong.UsageOnError(),
		// Flags and env override config values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log.Level, cli.Log.File)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	ctx.Bind(logger)

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("UPSILON_CONFIG"); v != "" {
		return v
	}
	return ""
}
