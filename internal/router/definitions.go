package router

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutesYAML []byte

// Definition names a route and the example utterances that describe it.
type Definition struct {
	Name       Route    `yaml:"name"`
	Utterances []string `yaml:"utterances"`
}

type definitionsFile struct {
	Routes []Definition `yaml:"routes"`
}

func DefaultDefinitions() ([]Definition, error) {
	return ParseDefinitions(defaultRoutesYAML)
}

// LoadDefinitions reads route definitions from path, or returns the built-in
// set when path is empty.
func LoadDefinitions(path string) ([]Definition, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultDefinitions()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return ParseDefinitions(raw)
}

func ParseDefinitions(raw []byte) ([]Definition, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("no routes defined")
	}
	seen := make(map[Route]struct{}, len(file.Routes))
	out := make([]Definition, 0, len(file.Routes))
	for _, def := range file.Routes {
		route, err := ParseRoute(string(def.Name))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[route]; dup {
			return nil, fmt.Errorf("route %q defined twice", route)
		}
		seen[route] = struct{}{}
		utterances := make([]string, 0, len(def.Utterances))
		for _, utterance := range def.Utterances {
			if trimmed := strings.TrimSpace(utterance); trimmed != "" {
				utterances = append(utterances, trimmed)
			}
		}
		if len(utterances) == 0 {
			return nil, fmt.Errorf("route %q has no utterances", route)
		}
		out = append(out, Definition{Name: route, Utterances: utterances})
	}
	return out, nil
}
