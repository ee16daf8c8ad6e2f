package moves

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileMoveList is the on-disk shape of one entry in a move-list file: a
// flat list of named waypoints, each a slice of joint values.
type fileMoveList struct {
	Moves []struct {
		Name string    `yaml:"name"`
		Data []float64 `yaml:"data"`
	} `yaml:"moves"`
}

// LoadRegistryFromFile reads a YAML document mapping program name to move
// list (the format the arm's program directory is exported to) and builds
// a Registry from it. Grounded on pkg/config/loader.go's yaml.v3 file
// loading pattern, generalized from tarsy.yaml's config shape to this
// package's program-name -> waypoint-list shape.
func LoadRegistryFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("moves: read %s: %w", path, err)
	}

	var raw map[string]fileMoveList
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("moves: parse %s: %w", path, err)
	}

	lists := make(map[string]MoveList, len(raw))
	for name, fml := range raw {
		ml := MoveList{Name: name}
		for _, m := range fml.Moves {
			ml.Moves = append(ml.Moves, Move{Name: m.Name, Data: m.Data})
		}
		lists[name] = ml
	}
	return NewRegistry(lists), nil
}
