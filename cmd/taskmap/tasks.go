package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"taskmap/internal/types"
)

// taskFile is the object form of a tasks document.
type taskFile struct {
	Tasks []types.Task `yaml:"tasks"`
}

// loadTasks reads tasks from path, or stdin when path is "-".
func loadTasks(path string) ([]types.Task, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return parseTasks(data)
}

// parseTasks accepts a list of tasks or an object with a tasks list, in
// YAML or JSON.
func parseTasks(data []byte) ([]types.Task, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tasks: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]

	var tasks []types.Task
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&tasks); err != nil {
			return nil, fmt.Errorf("failed to decode tasks: %w", err)
		}
	case yaml.MappingNode:
		var f taskFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode tasks: %w", err)
		}
		tasks = f.Tasks
	default:
		return nil, fmt.Errorf("tasks document must be a list or an object with a tasks list")
	}

	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("task %d has no id", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
		tasks[i].Status = types.NormalizeStatus(string(t.Status))
	}
	return tasks, nil
}
