package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/eddiedunn/moltest/internal/api"

	"gopkg.in/yaml.v3"
)

// paramFileNames are tried in order; the first existing file wins.
var paramFileNames = []string{
	"moltest.params.yml",
	"moltest.params.yaml",
	"moltest.params.json",
}

// loadParameterSets reads the parameter file of one scenario directory.
// It returns the file it used (empty when none exists). A malformed file
// yields no parameter sets and a non-nil error.
//
// Accepted shapes are a list of entries or a mapping with a "params" list.
// Each entry is a mapping with an optional "id" (defaulting to the entry
// index) and an optional "vars" mapping.
func loadParameterSets(scenarioDir string) ([]api.ParameterSet, string, error) {
	for _, name := range paramFileNames {
		path := filepath.Join(scenarioDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, path, fmt.Errorf("failed to read %s: %w", name, err)
		}

		var doc interface{}
		if filepath.Ext(name) == ".json" {
			err = json.Unmarshal(data, &doc)
		} else {
			err = yaml.Unmarshal(data, &doc)
		}
		if err != nil {
			return nil, path, fmt.Errorf("failed to parse %s: %w", name, err)
		}

		sets, err := normalizeParameterSets(doc)
		if err != nil {
			return nil, path, fmt.Errorf("invalid %s: %w", name, err)
		}
		return sets, path, nil
	}
	return nil, "", nil
}

func normalizeParameterSets(doc interface{}) ([]api.ParameterSet, error) {
	var entries []interface{}
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		entries = v
	case map[string]interface{}:
		list, ok := v["params"].([]interface{})
		if !ok {
			return nil, errors.New(`expected a list or a mapping with a "params" list`)
		}
		entries = list
	default:
		return nil, errors.New(`expected a list or a mapping with a "params" list`)
	}

	sets := make([]api.ParameterSet, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("entry %d is not a mapping", i)
		}

		name := strconv.Itoa(i)
		if id, ok := m["id"]; ok && id != nil {
			name = fmt.Sprint(id)
		}
		if name == "" {
			return nil, fmt.Errorf("entry %d has an empty id", i)
		}

		set := api.ParameterSet{Name: name}
		if raw, ok := m["vars"]; ok && raw != nil {
			vars, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("entry %q: vars is not a mapping", name)
			}
			set.Vars = vars
		}
		sets = append(sets, set)
	}
	return sets, nil
}
