package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigParams holds the compiled configuration one executable ran
// with during the recording.
type ConfigParams struct {
	Package    string
	Executable string
	Parameters map[string]any
}

// compiledConfigFile mirrors the on-disk layout of a session's
// *config.yaml: a compiled_config map of node name to node config.
type compiledConfigFile struct {
	CompiledConfig map[string]compiledNodeConfig `yaml:"compiled_config"`
}

type compiledNodeConfig struct {
	Package    string         `yaml:"package"`
	Executable string         `yaml:"executable"`
	Parameters map[string]any `yaml:"parameters"`
}

// LoadExperimentConfig finds the session's *config.yaml next to
// dataPath and returns the parameter sets for every node whose
// package/executable pair appears in wanted (package name to list of
// executables). An empty result with nil error means the config held
// nothing relevant to the caller.
func LoadExperimentConfig(dataPath string, wanted map[string][]string) ([]ConfigParams, error) {
	dir := dataPath
	if info, err := os.Stat(dataPath); err != nil || !info.IsDir() {
		dir = filepath.Dir(dataPath)
	}
	cfgFile, err := findConfigFile(dir)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("read experiment config: %w", err)
	}
	var parsed compiledConfigFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse experiment config %s: %w", cfgFile, err)
	}
	if parsed.CompiledConfig == nil {
		return nil, fmt.Errorf("experiment config %s has no compiled_config section", cfgFile)
	}

	var out []ConfigParams
	for _, node := range parsed.CompiledConfig {
		exes, ok := wanted[node.Package]
		if !ok {
			continue
		}
		for _, exe := range exes {
			if node.Executable == exe {
				out = append(out, ConfigParams{
					Package:    node.Package,
					Executable: node.Executable,
					Parameters: node.Parameters,
				})
				break
			}
		}
	}
	return out, nil
}

// findConfigFile returns the first *config.yaml in dir, skipping
// resource-fork droppings.
func findConfigFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "._") {
			continue
		}
		if strings.HasSuffix(name, "config.yaml") {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("no *config.yaml in %s", dir)
}
