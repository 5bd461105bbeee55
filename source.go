// File: config/source.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// maxFileSize guards against accidentally loading huge files.
const maxFileSize = 10 << 20 // 10MB

// Environment is a flat source backed by environment variables. Variables
// are filtered by prefix; the prefix is stripped and the rest lowercased
// to form flat keys (MYAPP_SERVER_PORT -> server_port).
type Environment struct {
	prefix string
	vars   map[string]string
}

// NewEnvironment creates an environment source from an explicit variable
// map. Injecting the map keeps tests hermetic.
func NewEnvironment(prefix string, vars map[string]string) *Environment {
	return &Environment{prefix: prefix, vars: vars}
}

// OSEnvironment snapshots the process environment. The snapshot is taken
// once; later changes to the process env are not observed.
func OSEnvironment(prefix string) *Environment {
	vars := make(map[string]string)
	for _, entry := range os.Environ() {
		if name, value, ok := strings.Cut(entry, "="); ok {
			vars[name] = value
		}
	}
	return &Environment{prefix: prefix, vars: vars}
}

func (e *Environment) SourceContents() *SourceContents {
	origin := EnvVarsOrigin{}
	flat := make(map[string]FlatValue)
	for name, value := range e.vars {
		if !strings.HasPrefix(name, e.prefix) {
			continue
		}
		key := strings.ToLower(name[len(e.prefix):])
		if key == "" {
			continue
		}
		flat[key] = FlatValue{
			Value:  value,
			Origin: &PathOrigin{Source: origin, Path: name},
		}
	}
	return &SourceContents{Origin: origin, Flat: flat}
}

// Tree is a hierarchical source: a parsed config file or a prefixed
// wrapper around one.
type Tree struct {
	origin Origin
	root   Object
}

func (t *Tree) SourceContents() *SourceContents {
	return &SourceContents{Origin: t.origin, Tree: t.root}
}

// ParseJSON parses JSON file contents into a hierarchical source. Numbers
// keep their textual form, so large integers survive.
func ParseJSON(name string, data []byte) (*Tree, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from '%s': %w", name, err)
	}
	return newTree(&FileOrigin{Name: name, Format: "JSON"}, raw), nil
}

// ParseYAML parses YAML file contents into a hierarchical source.
func ParseYAML(name string, data []byte) (*Tree, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML from '%s': %w", name, err)
	}
	return newTree(&FileOrigin{Name: name, Format: "YAML"}, raw), nil
}

// ParseTOML parses TOML file contents into a hierarchical source.
func ParseTOML(name string, data []byte) (*Tree, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse TOML from '%s': %w", name, err)
	}
	return newTree(&FileOrigin{Name: name, Format: "TOML"}, raw), nil
}

// LoadFile reads and parses a config file, detecting the format from the
// extension first and the content second. This is the only place the
// package touches the filesystem.
func LoadFile(path string) (*Tree, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file '%s' exceeds maximum size of %d bytes", path, maxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(path, data)
	case ".yaml", ".yml":
		return ParseYAML(path, data)
	case ".toml":
		return ParseTOML(path, data)
	}
	return parseDetected(path, data)
}

// parseDetected probes the content: JSON for brace-led documents, then
// TOML, then YAML as the most permissive format.
func parseDetected(path string, data []byte) (*Tree, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if tree, err := ParseJSON(path, data); err == nil {
			return tree, nil
		}
	}
	if tree, err := ParseTOML(path, data); err == nil {
		return tree, nil
	}
	if tree, err := ParseYAML(path, data); err == nil {
		return tree, nil
	}
	return nil, fmt.Errorf("unable to detect format of config file '%s'", path)
}

// Prefixed mounts a hierarchical source under a dotted prefix.
func Prefixed(inner *Tree, prefix string) *Tree {
	root := Object{}
	origin := &SyntheticOrigin{
		Source:    inner.origin,
		Transform: fmt.Sprintf("prefixed with '%s'", prefix),
	}
	wrapped := NewWithOrigin(root, origin)
	obj := wrapped.ensureObject(Pointer(prefix), func(Pointer) Origin { return origin })
	for key, value := range inner.root {
		obj[key] = value
	}
	return &Tree{origin: origin, root: root}
}

func newTree(origin *FileOrigin, raw map[string]any) *Tree {
	converted := convertTree(raw, func(path Pointer) Origin {
		return &PathOrigin{Source: origin, Path: string(path)}
	}, "")
	return &Tree{origin: origin, root: converted.Value.(Object)}
}

// convertTree converts a decoded any-tree into a value tree, assigning
// each node an origin derived from its path.
func convertTree(raw any, originFor func(Pointer) Origin, path Pointer) *WithOrigin {
	origin := originFor(path)
	switch v := raw.(type) {
	case nil:
		return NewWithOrigin(Null{}, origin)
	case bool:
		return NewWithOrigin(Bool(v), origin)
	case json.Number:
		return NewWithOrigin(Number(v), origin)
	case string:
		return NewWithOrigin(PlainString(v), origin)
	case int:
		return NewWithOrigin(Number(strconv.FormatInt(int64(v), 10)), origin)
	case int64:
		return NewWithOrigin(Number(strconv.FormatInt(v, 10)), origin)
	case uint64:
		return NewWithOrigin(Number(strconv.FormatUint(v, 10)), origin)
	case float64:
		return NewWithOrigin(Number(strconv.FormatFloat(v, 'g', -1, 64)), origin)
	case time.Time:
		return NewWithOrigin(PlainString(v.Format(time.RFC3339)), origin)
	case []any:
		items := make(Array, len(v))
		for i, item := range v {
			items[i] = convertTree(item, originFor, path.Join(strconv.Itoa(i)))
		}
		return NewWithOrigin(items, origin)
	case map[string]any:
		fields := make(Object, len(v))
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fields[key] = convertTree(v[key], originFor, path.Join(key))
		}
		return NewWithOrigin(fields, origin)
	case map[any]any:
		// Older YAML decoders produce any-keyed maps.
		fields := make(Object, len(v))
		for key, value := range v {
			name := fmt.Sprint(key)
			fields[name] = convertTree(value, originFor, path.Join(name))
		}
		return NewWithOrigin(fields, origin)
	default:
		return NewWithOrigin(PlainString(fmt.Sprint(v)), origin)
	}
}
