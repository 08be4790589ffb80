package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/machina/action"
	"go.viam.com/machina/control"
)

// ReadScript reads an action script: a JSON array of actions such as
// [{"type": "speed", "value": 50}, {"type": "translate", "z": 100}].
func ReadScript(path string) ([]action.Action, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return DecodeScript(f)
}

// DecodeScript decodes an action script from r.
func DecodeScript(r io.Reader) ([]action.Action, error) {
	var entries []map[string]interface{}
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "action script must be a JSON array of actions")
	}
	acts := make([]action.Action, 0, len(entries))
	for i, entry := range entries {
		act, err := action.FromMap(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "action %d", i)
		}
		acts = append(acts, act)
	}
	return acts, nil
}

func issueAll(c *control.Control, acts []action.Action) error {
	for i, act := range acts {
		if err := c.IssueApplyActionRequest(act); err != nil {
			return errors.Wrapf(err, "action %d (%s)", i, act)
		}
	}
	return nil
}
