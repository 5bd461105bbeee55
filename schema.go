// File: config/schema.go
package config

import (
	"fmt"
	"reflect"
)

const maxNestingDepth = 32

// configData is one mounted config: its metadata plus every absolute path
// it is reachable at. The first path is the canonical prefix; the rest are
// aliases in registration order.
type configData struct {
	meta     *ConfigMetadata
	allPaths []Pointer
}

func (d *configData) canonicalPrefix() Pointer { return d.allPaths[0] }

func (d *configData) hasPath(p Pointer) bool {
	for _, path := range d.allPaths {
		if path == p {
			return true
		}
	}
	return false
}

type schemaEntry struct {
	prefix Pointer
	data   *configData
}

// ConfigSchema is the registry of configs and the mounting points their
// params claim. A schema is mutated only through Insert and handle methods;
// each mutation commits atomically (a failed insert leaves the schema
// untouched).
type ConfigSchema struct {
	configs map[Pointer][]*configData
	entries []schemaEntry
	mounts  *mountingPoints
}

// NewSchema creates an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		configs: make(map[Pointer][]*configData),
		mounts:  newMountingPoints(),
	}
}

// ConfigHandle refers to a config mounted in a schema.
type ConfigHandle struct {
	schema *ConfigSchema
	prefix Pointer
	meta   *ConfigMetadata
}

// Prefix returns the canonical mount prefix.
func (h *ConfigHandle) Prefix() string { return string(h.prefix) }

// Metadata returns the mounted config's metadata.
func (h *ConfigHandle) Metadata() *ConfigMetadata { return h.meta }

// Insert mounts a config (and, recursively, its nested configs) at the
// given dotted prefix. Either the whole config tree mounts, or the schema
// is left unchanged and an error describes the first conflict.
func (s *ConfigSchema) Insert(meta *ConfigMetadata, prefix string) (*ConfigHandle, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	patch := newSchemaPatch(s)
	if err := patch.insert(Pointer(prefix), meta, []Pointer{Pointer(prefix)}); err != nil {
		return nil, err
	}
	patch.commit()
	return &ConfigHandle{schema: s, prefix: Pointer(prefix), meta: meta}, nil
}

// MustInsert is Insert, panicking on conflicts. Intended for static
// registration where a conflict is a programming error.
func (s *ConfigSchema) MustInsert(meta *ConfigMetadata, prefix string) *ConfigHandle {
	handle, err := s.Insert(meta, prefix)
	if err != nil {
		panic(err)
	}
	return handle
}

// PushAlias mounts the config (and its nested configs) under an additional
// absolute prefix. Values found under the alias are copied to the canonical
// location during merging; the canonical location wins on conflict.
func (h *ConfigHandle) PushAlias(alias string) error {
	if err := validatePrefix(alias); err != nil {
		return err
	}
	patch := newSchemaPatch(h.schema)
	if err := patch.insert(h.prefix, h.meta, []Pointer{Pointer(alias)}); err != nil {
		return err
	}
	patch.commit()
	return nil
}

// configsAt returns the configs mounted at a canonical prefix.
func (s *ConfigSchema) configsAt(prefix Pointer) []*configData {
	return s.configs[prefix]
}

// entriesForType returns the entries whose config type matches.
func (s *ConfigSchema) entriesForType(typ reflect.Type) []schemaEntry {
	var found []schemaEntry
	for _, entry := range s.entries {
		if entry.data.meta.Type == typ {
			found = append(found, entry)
		}
	}
	return found
}

// canonicalParamAt reports whether a canonical param is mounted at path.
func (s *ConfigSchema) canonicalParamAt(path Pointer) (BasicTypes, bool) {
	m, ok := s.mounts.get(string(path))
	if !ok || !m.isParam || !m.isCanonical {
		return 0, false
	}
	return m.expecting, true
}

// paramsWithKVPath returns mounted params whose flattened spelling equals
// the flat key.
func (s *ConfigSchema) paramsWithKVPath(key string) []kvMatch {
	all := s.mounts.kvMatches(key)
	params := all[:0]
	for _, match := range all {
		if match.mount.isParam {
			params = append(params, match)
		}
	}
	return params
}

// schemaPatch stages an insertion; nothing lands in the base schema until
// commit.
type schemaPatch struct {
	base    *ConfigSchema
	entries []schemaEntry
	byKey   map[patchKey]*configData
	mounts  *mountingPoints
}

type patchKey struct {
	prefix Pointer
	typ    reflect.Type
}

func newSchemaPatch(base *ConfigSchema) *schemaPatch {
	return &schemaPatch{
		base:   base,
		byKey:  make(map[patchKey]*configData),
		mounts: newMountingPoints(),
	}
}

func (p *schemaPatch) mount(path string) (mountingPoint, bool) {
	if m, ok := p.mounts.get(path); ok {
		return m, true
	}
	return p.base.mounts.get(path)
}

type pendingInsert struct {
	prefix Pointer
	meta   *ConfigMetadata
	paths  []Pointer
	depth  int
}

func (p *schemaPatch) insert(prefix Pointer, meta *ConfigMetadata, paths []Pointer) error {
	stack := []pendingInsert{{prefix: prefix, meta: meta, paths: paths}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if item.depth > maxNestingDepth {
			return fmt.Errorf("config %s nests too deeply at %q; recursive nesting is not supported", item.meta.TypeName(), item.prefix)
		}

		key := patchKey{prefix: item.prefix, typ: item.meta.Type}
		data := p.byKey[key]
		if data == nil {
			// Copy-on-write from the base so aliases merge atomically.
			for _, existing := range p.base.configsAt(item.prefix) {
				if existing.meta.Type == item.meta.Type {
					data = &configData{meta: existing.meta, allPaths: append([]Pointer(nil), existing.allPaths...)}
					break
				}
			}
			if data == nil {
				data = &configData{meta: item.meta}
				p.entries = append(p.entries, schemaEntry{prefix: item.prefix, data: data})
			}
			p.byKey[key] = data
		}

		var newPaths []Pointer
		for _, path := range item.paths {
			if !data.hasPath(path) {
				newPaths = append(newPaths, path)
			}
		}
		if len(newPaths) == 0 {
			continue
		}
		data.allPaths = append(data.allPaths, newPaths...)

		for _, path := range newPaths {
			if err := p.mountConfig(path, item.meta); err != nil {
				return err
			}
			canonicalPath := path == item.prefix
			for _, param := range item.meta.Params {
				if err := p.mountParam(path, param, canonicalPath); err != nil {
					return err
				}
			}
		}

		for _, nested := range item.meta.NestedConfigs {
			childPrefix := item.prefix.Join(nested.Name)
			var childPaths []Pointer
			for _, base := range newPaths {
				childPaths = append(childPaths, base.Join(nested.Name))
				for _, alias := range nested.Aliases {
					childPaths = append(childPaths, base.Join(alias.Name))
				}
			}
			stack = append(stack, pendingInsert{
				prefix: childPrefix,
				meta:   nested.Meta,
				paths:  childPaths,
				depth:  item.depth + 1,
			})
		}
	}
	return nil
}

func (p *schemaPatch) mountConfig(path Pointer, meta *ConfigMetadata) error {
	if existing, ok := p.mount(string(path)); ok {
		if existing.isParam {
			return fmt.Errorf("%w: config %s cannot be mounted at %q, which already holds a param", ErrMountConflict, meta.TypeName(), path)
		}
		return nil
	}
	p.mounts.insert(string(path), mountingPoint{})
	return nil
}

func (p *schemaPatch) mountParam(configPath Pointer, param *ParamMetadata, canonicalPath bool) error {
	names := make([]string, 0, len(param.Aliases)+1)
	names = append(names, param.Name)
	for _, alias := range param.Aliases {
		names = append(names, alias.Name)
	}
	for i, name := range names {
		fullPath := string(configPath.Join(name))
		canonical := canonicalPath && i == 0
		mount := mountingPoint{isParam: true, isCanonical: canonical, expecting: param.Expecting}
		if existing, ok := p.mount(fullPath); ok {
			if !existing.isParam {
				return fmt.Errorf("%w: param `%s` cannot be mounted at %q, which already holds a config", ErrMountConflict, param.Name, fullPath)
			}
			// Two params sharing a path narrow to the types both accept.
			narrowed := existing.expecting.Intersect(param.Expecting)
			if narrowed == 0 {
				return fmt.Errorf(
					"%w: params mounted at %q expect disjoint types (%s vs %s)",
					ErrMountConflict, fullPath, existing.expecting, param.Expecting,
				)
			}
			mount.expecting = narrowed
			mount.isCanonical = existing.isCanonical || canonical
		}
		p.mounts.insert(fullPath, mount)
	}
	return nil
}

func (p *schemaPatch) commit() {
	for _, entry := range p.entries {
		p.base.configs[entry.prefix] = append(p.base.configs[entry.prefix], entry.data)
		p.base.entries = append(p.base.entries, entry)
	}
	// Merged configs were copied on write; swap the copies in.
	for key, data := range p.byKey {
		existing := p.base.configsAt(key.prefix)
		for i, candidate := range existing {
			if candidate.meta.Type == key.typ {
				existing[i] = data
			}
		}
		for i := range p.base.entries {
			entry := &p.base.entries[i]
			if entry.prefix == key.prefix && entry.data.meta.Type == key.typ {
				entry.data = data
			}
		}
	}
	p.base.mounts.extend(p.mounts)
}
