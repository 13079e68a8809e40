package provenance

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatetimeFormat is the commit-time layout written by the logging
// nodes' git-state files.
const DatetimeFormat = "2006-01-02 15:04:05-07:00"

// GitConfig records the producer version an interpreter has been
// validated against: logs written by a newer commit, or by an
// executable outside the validated set, get an advisory warning.
type GitConfig struct {
	RepoName    string
	Branch      string
	CommitTime  string
	Package     string
	Executables []string
}

// gitStateEntry is one node's record in a *_git_state*.yaml file.
type gitStateEntry struct {
	Package    string `yaml:"package"`
	Executable string `yaml:"executable"`
	Branch     string `yaml:"branch"`
	Commit     string `yaml:"commit"`
	CommitTime string `yaml:"commit_time"`
}

// ValidateGitState locates the git-state file alongside dataPath,
// matches its entries against the given validated configs, and returns
// the list of compatibility warnings (empty when everything checks
// out). Missing or malformed state files produce a single advisory
// warning rather than an error: absence of provenance is a data
// quality note, not a load failure.
func ValidateGitState(dataPath string, configs []GitConfig) []string {
	dir := filepath.Dir(dataPath)
	stateFile, err := findGitStateFile(dir)
	if err != nil {
		log.Printf("[Provenance] No git state found for %s: %v", dataPath, err)
		return []string{fmt.Sprintf("no git state file for %s; cannot guarantee producer compatibility", dataPath)}
	}

	raw, err := os.ReadFile(stateFile)
	if err != nil {
		return []string{fmt.Sprintf("unreadable git state file %s: %v", stateFile, err)}
	}
	var state map[string]gitStateEntry
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return []string{fmt.Sprintf("malformed git state file %s: %v", stateFile, err)}
	}

	var warnings []string
	matched := false
	for _, entry := range state {
		for _, cfg := range configs {
			if entry.Package != cfg.Package {
				continue
			}
			matched = true
			warnings = append(warnings, compareGitState(entry, cfg)...)
		}
	}
	if !matched {
		warnings = append(warnings, fmt.Sprintf(
			"no package in %s matches a validated producer for %s", stateFile, dataPath))
	}
	for _, w := range warnings {
		log.Printf("[Provenance] %s", w)
	}
	return warnings
}

// ValidateGitStateUpOneLevel is ValidateGitState for logs stored one
// directory below the producer's state file.
func ValidateGitStateUpOneLevel(dataPath string, configs []GitConfig) []string {
	return ValidateGitState(filepath.Dir(dataPath), configs)
}

func compareGitState(entry gitStateEntry, cfg GitConfig) []string {
	var warnings []string

	loggedAt, errLogged := time.Parse(DatetimeFormat, entry.CommitTime)
	validatedAt, errValidated := time.Parse(DatetimeFormat, cfg.CommitTime)
	switch {
	case errLogged != nil || errValidated != nil:
		warnings = append(warnings, fmt.Sprintf(
			"unparseable commit time for package %s (logged %q, validated %q)",
			cfg.Package, entry.CommitTime, cfg.CommitTime))
	case loggedAt.After(validatedAt):
		warnings = append(warnings, fmt.Sprintf(
			"package %s was logged by commit %s, newer than the last validated commit time %s; the interpreter may misread this data",
			cfg.Package, entry.CommitTime, cfg.CommitTime))
	}

	found := false
	for _, exe := range cfg.Executables {
		if entry.Executable == exe {
			found = true
			break
		}
	}
	if !found {
		warnings = append(warnings, fmt.Sprintf(
			"executable %q of package %s is not one this interpreter has been validated for",
			entry.Executable, cfg.Package))
	}
	return warnings
}

// findGitStateFile returns the single *_git_state*.yaml in dir,
// skipping macOS resource-fork droppings.
func findGitStateFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "._") {
			continue
		}
		if strings.Contains(name, "_git_state") && filepath.Ext(name) == ".yaml" {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("no *_git_state*.yaml in %s", dir)
	case 1:
		return candidates[0], nil
	default:
		log.Printf("[Provenance] Multiple git state files in %s; using %s", dir, candidates[0])
		return candidates[0], nil
	}
}
