package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/machina/config"
	"go.viam.com/machina/control"
	"go.viam.com/machina/driver"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/serial"
)

// loadConfig reads the --config file, or returns the defaults when none is given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return config.Default(), nil
	}
	return config.Read(path)
}

// newLogger returns the command logger and the func that closes its log file, if any.
func newLogger(c *cli.Context, conf *config.Config) (logging.Logger, func(), error) {
	// stdout carries exported programs, logs go to stderr
	logger := logging.NewBlankLogger("machina")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	closeFile := func() {}
	if conf.LogFile != nil {
		appender, err := conf.LogFile.Appender()
		if err != nil {
			return nil, nil, err
		}
		logger.AddAppender(appender)
		closeFile = func() { goutils.UncheckedError(appender.Close()) }
	}
	config.InitLoggingSettings(logger, c.Bool(flagDebug))
	if err := config.ApplyLogConfig(conf, logger); err != nil {
		closeFile()
		return nil, nil, err
	}
	return logger, closeFile, nil
}

// ExportAction compiles the script offline and writes the program.
func ExportAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	conf.ControlMode = config.Offline
	logger, closeLog, err := newLogger(c, conf)
	if err != nil {
		return err
	}
	defer closeLog()
	acts, err := ReadScript(c.String(flagScript))
	if err != nil {
		return err
	}

	ctrl, err := control.New(conf, logger)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(func() error { return ctrl.Close(context.Background()) })
	if err := issueAll(ctrl, acts); err != nil {
		return err
	}

	inline, human := conf.Program.InlineTargets, conf.Program.HumanComments
	if c.IsSet(flagInlineTargets) {
		inline = c.Bool(flagInlineTargets)
	}
	if c.IsSet(flagHumanComments) {
		human = c.Bool(flagHumanComments)
	}

	if out := c.String(flagOutput); out != "" {
		if err := ctrl.ExportToFile(out, inline, human); err != nil {
			return err
		}
		logger.Infof("wrote %d actions to %s", len(acts), out)
		return nil
	}
	lines, err := ctrl.Export(inline, human)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

// ExecuteAction runs the script on the configured device and waits for it to finish. Log levels
// follow the config file while running.
func ExecuteAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	conf.ControlMode = config.Execute
	if c.Bool(flagStream) {
		conf.ControlMode = config.Stream
	}
	logger, closeLog, err := newLogger(c, conf)
	if err != nil {
		return err
	}
	defer closeLog()
	acts, err := ReadScript(c.String(flagScript))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if c.Bool(flagTrace) {
		ctx = logging.EnableDebugMode(ctx, "execute")
	}
	if path := c.String(flagConfig); path != "" {
		stop, err := watchLogConfig(ctx, path, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctrl, err := control.New(conf, logger)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(func() error { return ctrl.Close(context.Background()) })

	if err := ctrl.ConnectToDevice(ctx, c.String(flagAddress)); err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(func() error { return ctrl.DisconnectFromDevice(context.Background()) })

	if err := issueAll(ctrl, acts); err != nil {
		return err
	}
	if conf.ControlMode == config.Execute {
		if err := ctrl.Execute(); err != nil {
			return err
		}
	}
	if err := ctrl.WaitUntilIdle(ctx); err != nil {
		return err
	}
	logger.Infof("ran %d actions", len(acts))

	if c.Bool(flagDump) {
		return ctrl.DebugDump(c.App.Writer)
	}
	return nil
}

// watchLogConfig applies the logging section of the config file every time it changes.
func watchLogConfig(ctx context.Context, path string, logger logging.Logger) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	watcher, err := config.NewWatcher(ctx, path, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	var wg sync.WaitGroup
	wg.Add(1)
	goutils.ManagedGo(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case conf := <-watcher.Config():
				if err := config.ApplyLogConfig(conf, logger); err != nil {
					logger.Warnw("cannot apply log config", "error", err)
				}
			}
		}
	}, wg.Done)
	return func() {
		cancel()
		goutils.UncheckedError(watcher.Close())
		wg.Wait()
	}, nil
}

// SchemaAction prints the config JSON schema.
func SchemaAction(c *cli.Context) error {
	out, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

// PortsAction lists serial ports.
func PortsAction(c *cli.Context) error {
	ports, err := serial.Ports()
	if err != nil {
		return err
	}
	for _, port := range ports {
		fmt.Fprintln(c.App.Writer, port)
	}
	return nil
}

// BrandsAction lists the brands with a registered driver.
func BrandsAction(c *cli.Context) error {
	brands := driver.RegisteredBrands()
	names := make([]string, 0, len(brands))
	for _, b := range brands {
		names = append(names, string(b))
	}
	fmt.Fprintln(c.App.Writer, strings.Join(names, "\n"))
	return nil
}
