package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a MatcherConfig tree from path, auto-detecting whether it names
// a single file or a directory.
func Load(path string) (Node, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Node{}, fmt.Errorf("failed to stat config path: %w", err)
	}
	if info.IsDir() {
		return loadDir(path)
	}
	return loadFile(path)
}

// loadFile parses a single YAML or JSON file into one Node.
func loadFile(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Node{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var node Node
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &node); err != nil {
			return Node{}, fmt.Errorf("failed to parse config JSON %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &node); err != nil {
			return Node{}, fmt.Errorf("failed to parse config YAML %s: %w", path, err)
		}
	}
	if err := rejectPriority(node, path); err != nil {
		return Node{}, err
	}
	return node, nil
}

// loadDir reads a directory that mirrors the Filter/Ruleset tree: each
// directory holds exactly one "config.yaml"/"config.yml"/"config.json" file
// describing that directory's own node, and one subdirectory per child
// (Filter nodes only — Rulesets are always leaves). Subdirectories are
// visited in lexical order so sibling evaluation order is deterministic.
func loadDir(dirPath string) (Node, error) {
	nodeFile, err := findNodeFile(dirPath)
	if err != nil {
		return Node{}, err
	}

	node, err := loadFile(nodeFile)
	if err != nil {
		return Node{}, err
	}

	if node.Type != KindFilter {
		return node, nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return Node{}, fmt.Errorf("failed to read config directory %s: %w", dirPath, err)
	}

	var childDirs []string
	for _, e := range entries {
		if e.IsDir() {
			childDirs = append(childDirs, e.Name())
		}
	}
	sort.Strings(childDirs)

	for _, name := range childDirs {
		child, err := loadDir(filepath.Join(dirPath, name))
		if err != nil {
			return Node{}, err
		}
		node.Nodes = append(node.Nodes, child)
	}

	return node, nil
}

func findNodeFile(dirPath string) (string, error) {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		candidate := filepath.Join(dirPath, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config.yaml/config.yml/config.json found in %s", dirPath)
}

// rejectPriority enforces the Open Question decision recorded in
// DESIGN.md: the legacy priority-based ordering is rejected as an unknown
// field rather than silently applied.
func rejectPriority(node Node, path string) error {
	if node.Priority != nil {
		return fmt.Errorf("unknown field %q in %s: declaration order is the ordering model, priority is not supported", "priority", path)
	}
	for _, rule := range node.Rules {
		if rule.Priority != nil {
			return fmt.Errorf("unknown field %q on rule %q in %s: declaration order is the ordering model, priority is not supported", "priority", rule.Name, path)
		}
	}
	for _, child := range node.Nodes {
		if err := rejectPriority(child, path); err != nil {
			return err
		}
	}
	return nil
}
