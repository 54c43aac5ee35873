package main

import (
	"fmt"
	"os"

	"github.com/ark-network/swapd/internal/config"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := cli.NewApp()

	app.Version = fmt.Sprintf("%s (%s, %s)", version, commit, date)
	app.Name = "swapd"
	app.Usage = "Atomic swap daemon between bitcoin and ethereum"
	app.Flags = flags
	app.Commands = append(app.Commands, startCommand, configCommand)
	app.Action = startAction

	// Flags take precedence over the SWAPD_* environment variables.
	app.Before = func(ctx *cli.Context) error {
		for _, flag := range flags {
			name := flag.Names()[0]
			if !ctx.IsSet(name) {
				continue
			}
			viper.Set(flagKeys[name], ctx.Value(name))
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	return cfg, nil
}
