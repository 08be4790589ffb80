// Package cli contains the machina command line.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	// register drivers.
	_ "go.viam.com/machina/driver/register"
)

const (
	// Flags.
	flagConfig        = "config"
	flagDebug         = "debug"
	flagScript        = "script"
	flagOutput        = "output"
	flagInlineTargets = "inline-targets"
	flagHumanComments = "human-comments"
	flagAddress       = "address"
	flagStream        = "stream"
	flagDump          = "dump"
	flagTrace         = "trace"
)

var app = &cli.App{
	Name:            "machina",
	Usage:           "program robots from action scripts",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "export",
			Usage:     "compile an action script into a program for the configured brand",
			UsageText: "machina export --script <FILE> [--output <FILE>] [other options]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagScript,
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "JSON action script `FILE`",
				},
				&cli.StringFlag{
					Name:    flagOutput,
					Aliases: []string{"o"},
					Usage:   "write the program to `FILE` instead of stdout",
				},
				&cli.BoolFlag{
					Name:  flagInlineTargets,
					Usage: "write targets inside motion instructions (defaults to the config)",
				},
				&cli.BoolFlag{
					Name:  flagHumanComments,
					Usage: "comment every instruction with a readable description (defaults to the config)",
				},
			},
			Action: ExportAction,
		},
		{
			Name:      "execute",
			Usage:     "run an action script on the configured device",
			UsageText: "machina execute --script <FILE> [--address <ADDR>] [other options]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagScript,
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "JSON action script `FILE`",
				},
				&cli.StringFlag{
					Name:  flagAddress,
					Usage: "device address, e.g. a serial port or an IP (defaults to the driver's)",
				},
				&cli.BoolFlag{
					Name:  flagStream,
					Usage: "stream instructions one by one instead of uploading a program",
				},
				&cli.BoolFlag{
					Name:  flagDump,
					Usage: "print the cursors and the action buffer when done",
				},
				&cli.BoolFlag{
					Name:  flagTrace,
					Usage: "log device calls at debug level without raising the global log level",
				},
			},
			Action: ExecuteAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the config file",
			Action: SchemaAction,
		},
		{
			Name:   "ports",
			Usage:  "list serial ports",
			Action: PortsAction,
		},
		{
			Name:   "brands",
			Usage:  "list the brands a driver is registered for",
			Action: BrandsAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Usage info, and Actions.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
