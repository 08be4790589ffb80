// Package config defines the controller configuration and how it is read from disk.
package config

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/machina/action"
	"go.viam.com/machina/cursor"
	"go.viam.com/machina/logging"
)

// Defaults used when a config does not set them.
const (
	DefaultSpeed       = 20.0
	DefaultPrecision   = 5.0
	DefaultTableZLimit = -10000.0
	DefaultDigitalIO   = 8
	DefaultAnalogIO    = 2
	DefaultProgramName = "Machina"

	DefaultLogFileSizeMB  = 10
	DefaultLogFileBackups = 3
)

// Config is the full controller configuration.
type Config struct {
	Brand       Brand       `json:"brand"`
	ControlMode ControlMode `json:"control_mode"`
	RunMode     RunMode     `json:"run_mode"`

	// Debug forces debug logs everywhere. LogLevel sets the level of the controller loggers.
	Debug    bool                          `json:"debug,omitempty"`
	LogLevel logging.Level                 `json:"log_level"`
	Log      []logging.LoggerPatternConfig `json:"log,omitempty"`
	LogFile  *LogFile                      `json:"log_file,omitempty"`

	Safety   Safety       `json:"safety"`
	Defaults Defaults     `json:"defaults"`
	IO       IO           `json:"io"`
	Program  Program      `json:"program"`
	Driver   AttributeMap `json:"driver,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Safety configures the table collision guard and disconnect behavior.
type Safety struct {
	CheckTableCollision  bool    `json:"check_table_collision"`
	TableCollisionPolicy string  `json:"table_collision_policy"`
	TableZLimit          float64 `json:"table_z_limit_mm"`
	// StopImmediateOnDisconnect aborts a running program instead of letting it finish.
	StopImmediateOnDisconnect bool `json:"stop_immediate_on_disconnect"`
}

// Defaults are the initial cursor settings.
type Defaults struct {
	Speed       float64 `json:"speed"`
	Precision   float64 `json:"precision"`
	MotionType  string  `json:"motion_type"`
	ReferenceCS string  `json:"reference_cs"`
}

// IO sizes the output pin tables.
type IO struct {
	DigitalOutputs int `json:"digital_outputs"`
	AnalogOutputs  int `json:"analog_outputs"`
}

// LogFile also writes logs to a size-rotated file.
type LogFile struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Appender opens the file appender, filling unset sizes.
func (lf LogFile) Appender() (*logging.FileAppender, error) {
	size, backups := lf.MaxSizeMB, lf.MaxBackups
	if size == 0 {
		size = DefaultLogFileSizeMB
	}
	if backups == 0 {
		backups = DefaultLogFileBackups
	}
	return logging.NewFileAppender(lf.Path, size, backups)
}

// Program configures program rendering.
type Program struct {
	Name          string `json:"name"`
	InlineTargets bool   `json:"inline_targets"`
	HumanComments bool   `json:"human_comments"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Brand:       BrandUndefined,
		ControlMode: Offline,
		RunMode:     Once,
		LogLevel:    logging.INFO,
		Safety: Safety{
			CheckTableCollision:  true,
			TableCollisionPolicy: cursor.TableCollisionReject.String(),
			TableZLimit:          DefaultTableZLimit,
		},
		Defaults: Defaults{
			Speed:       DefaultSpeed,
			Precision:   DefaultPrecision,
			MotionType:  action.Linear.String(),
			ReferenceCS: action.World.String(),
		},
		IO: IO{
			DigitalOutputs: DefaultDigitalIO,
			AnalogOutputs:  DefaultAnalogIO,
		},
		Program: Program{
			Name:          DefaultProgramName,
			InlineTargets: true,
		},
	}
}

// Validate checks the config and normalizes its enums. path is the prefix of field paths in
// errors.
func (conf *Config) Validate(path string) error {
	var err error
	if conf.Brand, err = ParseBrand(string(conf.Brand)); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if conf.ControlMode, err = ParseControlMode(string(conf.ControlMode)); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if conf.RunMode, err = ParseRunMode(string(conf.RunMode)); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	for i, pattern := range conf.Log {
		if err := pattern.Validate(); err != nil {
			return goutils.NewConfigValidationError(appendPath(path, "log", i), err)
		}
	}
	if err := conf.Safety.Validate(appendPath(path, "safety", -1)); err != nil {
		return err
	}
	if _, err := conf.Defaults.Settings(); err != nil {
		return goutils.NewConfigValidationError(appendPath(path, "defaults", -1), err)
	}
	if conf.IO.DigitalOutputs < 0 || conf.IO.AnalogOutputs < 0 {
		return goutils.NewConfigValidationError(appendPath(path, "io", -1),
			errors.New("output counts cannot be negative"))
	}
	if conf.LogFile != nil {
		if conf.LogFile.Path == "" {
			return goutils.NewConfigValidationFieldRequiredError(appendPath(path, "log_file", -1), "path")
		}
		if conf.LogFile.MaxSizeMB < 0 || conf.LogFile.MaxBackups < 0 {
			return goutils.NewConfigValidationError(appendPath(path, "log_file", -1),
				errors.New("sizes cannot be negative"))
		}
	}
	if conf.Program.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(appendPath(path, "program", -1), "name")
	}
	return nil
}

// Validate checks the safety section.
func (s Safety) Validate(path string) error {
	if _, err := parsePolicy(s.TableCollisionPolicy); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if math.IsNaN(s.TableZLimit) || math.IsInf(s.TableZLimit, 0) {
		return goutils.NewConfigValidationError(path, errors.New("table_z_limit_mm must be finite"))
	}
	return nil
}

// CursorSafety converts the section into the cursor table guard.
func (s Safety) CursorSafety() cursor.Safety {
	policy, err := parsePolicy(s.TableCollisionPolicy)
	if err != nil || !s.CheckTableCollision {
		policy = cursor.TableCollisionDisabled
	}
	return cursor.Safety{Policy: policy, TableZLimit: s.TableZLimit}
}

func parsePolicy(s string) (cursor.TableCollisionPolicy, error) {
	switch s {
	case "", cursor.TableCollisionReject.String():
		return cursor.TableCollisionReject, nil
	case cursor.TableCollisionClampAndWarn.String(), "clamp_and_warn":
		return cursor.TableCollisionClampAndWarn, nil
	case cursor.TableCollisionDisabled.String():
		return cursor.TableCollisionDisabled, nil
	}
	return 0, errors.Errorf("unknown table collision policy %q", s)
}

// Settings converts the defaults into initial cursor settings.
func (d Defaults) Settings() (cursor.Settings, error) {
	if d.Speed < 0 || d.Precision < 0 {
		return cursor.Settings{}, errors.New("speed and precision cannot be negative")
	}
	mt, err := action.ParseMotionType(d.MotionType)
	if err != nil {
		return cursor.Settings{}, err
	}
	cs, err := action.ParseReferenceCS(d.ReferenceCS)
	if err != nil {
		return cursor.Settings{}, err
	}
	return cursor.Settings{
		Speed:       d.Speed,
		Precision:   d.Precision,
		MotionType:  mt,
		ReferenceCS: cs,
	}, nil
}

// ProgramOptions converts the program section into rendering options.
func (p Program) ProgramOptions() cursor.ProgramOptions {
	return cursor.ProgramOptions{Name: p.Name, InlineTargets: p.InlineTargets, HumanComments: p.HumanComments}
}

func appendPath(path, field string, idx int) string {
	if path != "" {
		field = path + "." + field
	}
	if idx >= 0 {
		field += "." + strconv.Itoa(idx)
	}
	return field
}
