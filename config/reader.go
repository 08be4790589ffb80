package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. Environment variables referenced as $VAR or ${VAR}
// are substituted before parsing.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// Fields missing from the input keep their Default values.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	conf := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(conf); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	conf.ConfigFilePath = originalPath

	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	return conf, nil
}
