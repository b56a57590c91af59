package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	moleculeDirName = "molecule"
	definitionFile  = "molecule.yml"
	tagsFile        = "moltest.tags"
	rolesDirName    = "roles"
	collectionsRoot = "ansible_collections"
	logSubsystem    = "Discovery"
)

// Result is the outcome of one discovery pass.
type Result struct {
	// Root is the absolute discovery root.
	Root string

	// Scenarios are ordered by scenario directory path.
	Scenarios []api.Scenario

	// Runs are the expanded RunIDs, in scenario order and parameter file
	// order within a scenario.
	Runs []api.Run

	// Errors holds the scenario scoped problems that excluded a scenario or run.
	Errors []*Error

	// Warnings holds degradations that kept the scenario, such as a
	// malformed parameter file.
	Warnings []string
}

// RunIDs returns the ids of all runs in order.
func (r *Result) RunIDs() []string {
	ids := make([]string, len(r.Runs))
	for i, run := range r.Runs {
		ids[i] = run.ID
	}
	return ids
}

// Discoverer walks a project tree looking for molecule scenarios.
type Discoverer struct {
	ignore []string
}

// NewDiscoverer creates a discoverer that never descends into directories
// matching one of the ignore patterns. A pattern containing a slash is
// matched against the slash separated path relative to the root, either as
// a glob or as a path prefix; any other pattern is matched against the
// directory base name.
func NewDiscoverer(ignore []string) *Discoverer {
	return &Discoverer{ignore: ignore}
}

type candidate struct {
	scenarioDir string
	definition  string
}

// Discover finds every scenario below root and expands it into runs.
//
// Scenario scoped problems are collected in Result.Errors. The returned
// error is non-nil only when root is unusable or when no usable scenario
// remains, in which case it wraps ErrInvalidRoot or ErrNoScenarios.
func (d *Discoverer) Discover(root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, absRoot)
	}

	result := &Result{Root: absRoot}

	candidates, err := d.findCandidates(absRoot, result)
	if err != nil {
		return nil, err
	}
	logging.Debug(logSubsystem, "Found %d scenario definitions under %s", len(candidates), absRoot)

	seen := make(map[string]string)
	for _, c := range candidates {
		scenario, err := parseScenario(c)
		if err != nil {
			result.addError(c.definition, err)
			continue
		}
		result.Scenarios = append(result.Scenarios, scenario)

		params, paramFile, err := loadParameterSets(c.scenarioDir)
		if err != nil {
			result.addWarning(fmt.Sprintf("%s: %v; running %s unparameterized", paramFile, err, scenario.BaseID()))
			params = nil
		}

		for _, run := range expand(scenario, params) {
			if first, dup := seen[run.ID]; dup {
				result.addError(c.definition, fmt.Errorf("duplicate run id %q, first defined by %s", run.ID, first))
				continue
			}
			seen[run.ID] = c.definition
			result.Runs = append(result.Runs, run)
		}
	}

	if len(result.Runs) == 0 {
		if len(candidates) == 0 {
			return result, fmt.Errorf("%w under %s", ErrNoScenarios, absRoot)
		}
		return result, fmt.Errorf("%w: all %d scenario definitions under %s are unusable", ErrNoScenarios, len(candidates), absRoot)
	}

	logging.Info(logSubsystem, "Discovered %d runs from %d scenarios", len(result.Runs), len(result.Scenarios))
	return result, nil
}

func (r *Result) addError(path string, err error) {
	derr := &Error{Path: path, Err: err}
	r.Errors = append(r.Errors, derr)
	logging.Warn(logSubsystem, "Skipping scenario: %v", derr)
}

func (r *Result) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
	logging.Warn(logSubsystem, "%s", msg)
}

// findCandidates collects every <dir>/molecule/<scenario>/molecule.yml,
// sorted by scenario directory.
func (d *Discoverer) findCandidates(root string, result *Result) ([]candidate, error) {
	var candidates []candidate

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			result.addError(path, err)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && d.ignored(root, path) {
			logging.Debug(logSubsystem, "Ignoring %s", path)
			return filepath.SkipDir
		}
		if entry.Name() != moleculeDirName {
			return nil
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			result.addError(path, err)
			return filepath.SkipDir
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			scenarioDir := filepath.Join(path, e.Name())
			def := filepath.Join(scenarioDir, definitionFile)
			if fi, err := os.Stat(def); err == nil && fi.Mode().IsRegular() {
				candidates = append(candidates, candidate{scenarioDir: scenarioDir, definition: def})
			}
		}
		// Scenario directories hold no further scenarios.
		return filepath.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].scenarioDir < candidates[j].scenarioDir
	})
	return candidates, nil
}

func (d *Discoverer) ignored(root, path string) bool {
	return MatchIgnore(d.ignore, root, path)
}

// MatchIgnore reports whether path, below root, matches an ignore pattern.
// Patterns containing a slash match the slash-separated path relative to
// root, as a prefix or a glob. Other patterns match the base name exactly or
// as a glob.
func MatchIgnore(patterns []string, root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	name := filepath.Base(path)

	for _, pattern := range patterns {
		if strings.Contains(pattern, "/") {
			pattern = strings.TrimSuffix(pattern, "/")
			if rel == pattern || strings.HasPrefix(rel, pattern+"/") {
				return true
			}
			if ok, _ := filepath.Match(pattern, rel); ok {
				return true
			}
			continue
		}
		if name == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func parseScenario(c candidate) (api.Scenario, error) {
	data, err := os.ReadFile(c.definition)
	if err != nil {
		return api.Scenario{}, fmt.Errorf("failed to read %s: %w", definitionFile, err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return api.Scenario{}, fmt.Errorf("failed to parse %s: %w", definitionFile, err)
	}
	if _, ok := doc.(map[string]interface{}); doc != nil && !ok {
		return api.Scenario{}, fmt.Errorf("%s must contain a mapping", definitionFile)
	}

	moleculeDir := filepath.Dir(c.scenarioDir)
	execDir := filepath.Dir(moleculeDir)

	tags, err := readTags(filepath.Join(c.scenarioDir, tagsFile))
	if err != nil {
		logging.Warn(logSubsystem, "Ignoring unreadable tags file in %s: %v", c.scenarioDir, err)
	}

	return api.Scenario{
		Role:           roleName(execDir),
		Name:           filepath.Base(c.scenarioDir),
		Directory:      execDir,
		DefinitionPath: c.definition,
		Tags:           tags,
	}, nil
}

// roleName derives the role from the execution directory: a directory whose
// parent is named roles is a role, and inside an ansible_collections tree
// the element following roles names it.
func roleName(execDir string) string {
	if filepath.Base(filepath.Dir(execDir)) == rolesDirName {
		return filepath.Base(execDir)
	}

	parts := strings.Split(filepath.ToSlash(execDir), "/")
	inCollection := false
	for i, part := range parts {
		if part == collectionsRoot {
			inCollection = true
			continue
		}
		if inCollection && part == rolesDirName && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func readTags(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return strings.FieldsFunc(string(data), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	}), nil
}

// expand produces one run per parameter set, or a single unparameterized
// run when there are none. A parameter file with zero entries counts as
// none.
func expand(scenario api.Scenario, params []api.ParameterSet) []api.Run {
	base := scenario.BaseID()
	if len(params) == 0 {
		return []api.Run{{ID: base, Scenario: scenario}}
	}

	runs := make([]api.Run, 0, len(params))
	for i := range params {
		p := params[i]
		runs = append(runs, api.Run{
			ID:       base + "[" + p.Name + "]",
			Scenario: scenario,
			Params:   &p,
		})
	}
	return runs
}
