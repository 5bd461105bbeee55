// File: config/repository.go
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Source supplies configuration values for a repository. Flat sources
// (environment variables) yield string maps keyed by flat keys;
// hierarchical sources (config files) yield value trees. Exactly one of
// the two must be non-nil.
type Source interface {
	SourceContents() *SourceContents
}

// SourceContents is the raw payload of a source before merging.
type SourceContents struct {
	Origin Origin
	Flat   map[string]FlatValue
	Tree   Object
}

// FlatValue is one entry of a flat source.
type FlatValue struct {
	Value  string
	Origin Origin
}

// SourceInfo describes a merged source: its origin and how many mounted
// params it contributed values for.
type SourceInfo struct {
	Origin     Origin
	ParamCount int
}

// Repository merges configuration sources against a schema and
// deserializes configs from the merged tree. Later sources override
// earlier ones; params merge atomically (a param value from a later
// source replaces the earlier value wholesale).
//
// A repository is not safe for concurrent use; build it and scan from a
// single goroutine.
type Repository struct {
	schema            *ConfigSchema
	canonicalPrefixes map[Pointer]struct{}
	sources           []SourceInfo
	merged            *WithOrigin
}

// NewRepository creates an empty repository. If any param declares a
// fallback, a lowest-priority fallback layer is merged immediately.
func NewRepository(schema *ConfigSchema) *Repository {
	prefixes := map[Pointer]struct{}{"": {}}
	for _, entry := range schema.entries {
		prefixes[entry.prefix] = struct{}{}
		for _, ancestor := range entry.prefix.Ancestors() {
			prefixes[ancestor] = struct{}{}
		}
	}
	repo := &Repository{
		schema:            schema,
		canonicalPrefixes: prefixes,
		merged:            NewWithOrigin(Object{}, nil),
	}
	if fallbacks := collectFallbacks(schema); fallbacks != nil {
		repo.With(fallbacks)
	}
	return repo
}

// Schema returns the wrapped schema.
func (r *Repository) Schema() *ConfigSchema { return r.schema }

// Sources lists merged sources in merge order.
func (r *Repository) Sources() []SourceInfo { return r.sources }

// Merged returns the merged value tree. The returned tree is owned by the
// repository and must not be mutated.
func (r *Repository) Merged() *WithOrigin { return r.merged }

// With merges a source into the repository and returns the repository for
// chaining.
func (r *Repository) With(source Source) *Repository {
	contents := source.SourceContents()
	origin := originOrUnknown(contents.Origin)

	var tree *WithOrigin
	if contents.Flat != nil {
		tree = nestKVs(contents.Flat, r.schema, origin)
	} else {
		root := contents.Tree
		if root == nil {
			root = Object{}
		}
		tree = NewWithOrigin(root, origin)
	}

	paramCount := r.preprocessSource(tree)
	guidedMerge(r.merged, tree, r.schema, "")
	r.sources = append(r.sources, SourceInfo{Origin: origin, ParamCount: paramCount})
	return r
}

// preprocessSource normalizes one source tree against the schema and
// returns the number of surviving param values.
func (r *Repository) preprocessSource(tree *WithOrigin) int {
	copyAliasedValues(tree, r.schema)
	markSecrets(tree, r.schema)
	nestObjectParamsAndSubConfigs(tree, r.schema)
	nestArrayParams(tree, r.schema)
	return collectGarbage(tree, r.schema, r.canonicalPrefixes, "")
}

// nestKVs restructures a flat key-value map into a tree aligned with the
// schema's mounting points. Every `_`-split prefix of a key is tried: a
// full-key match always copies the value; a strict prefix copies it as a
// field of an object-expecting param; a numeric last chunk feeds
// array-expecting params.
func nestKVs(kvs map[string]FlatValue, schema *ConfigSchema, sourceOrigin Origin) *WithOrigin {
	dest := NewWithOrigin(Object{}, sourceOrigin)

	keys := make([]string, 0, len(kvs))
	for key := range kvs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := kvs[key]
		value := NewWithOrigin(PlainString(entry.Value), originOrUnknown(entry.Origin))

		keyPrefix := key
		for keyPrefix != "" {
			for _, match := range schema.paramsWithKVPath(keyPrefix) {
				shouldCopy := keyPrefix == key || match.mount.expecting.Contains(TypeObject)
				if shouldCopy {
					copyKVEntry(dest, sourceOrigin, Pointer(match.path), key, value.Clone())
				}
			}
			idx := strings.LastIndexByte(keyPrefix, '_')
			if idx < 0 {
				break
			}
			keyPrefix = keyPrefix[:idx]
		}

		// Allow `key_0`, `key_1`, ... spellings for array params.
		idx := strings.LastIndexByte(key, '_')
		if idx < 0 {
			continue
		}
		prefix, maybeIdx := key[:idx], key[idx+1:]
		if !isDecimal(maybeIdx) {
			continue
		}
		for _, match := range schema.paramsWithKVPath(prefix) {
			if match.mount.expecting.Contains(TypeArray) && !match.mount.expecting.Contains(TypeObject) {
				copyKVEntry(dest, sourceOrigin, Pointer(match.path), key, value.Clone())
			}
		}
	}
	return dest
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func copyKVEntry(dest *WithOrigin, sourceOrigin Origin, paramPath Pointer, key string, value *WithOrigin) {
	parent, _, _ := paramPath.SplitLast()
	fieldStart := len(parent)
	if parent != "" {
		fieldStart++ // skip the separator after the parent
	}
	fieldName := key[fieldStart:]

	origin := &SyntheticOrigin{
		Source:    sourceOrigin,
		Transform: fmt.Sprintf("nesting kv entries for '%s'", paramPath),
	}
	obj := dest.ensureObject(parent, func(Pointer) Origin { return origin })
	obj[fieldName] = value
}

// copyAliasedValues copies values reachable under param aliases or config
// alias prefixes to their canonical locations. Canonical values always
// win; among aliases, earlier-registered ones win.
func copyAliasedValues(tree *WithOrigin, schema *ConfigSchema) {
	for _, entry := range schema.entries {
		prefix := entry.prefix
		var canonicalMap Object
		if node := tree.Get(prefix); node != nil {
			obj, isObj := node.Value.(Object)
			if !isObj {
				// A non-object at the canonical location; surfaced later
				// as a parse error.
				continue
			}
			canonicalMap = obj
		}

		type aliasMap struct {
			obj    Object
			origin Origin
		}
		var aliasMaps []aliasMap
		for _, alias := range entry.data.allPaths[1:] {
			if node := tree.Get(alias); node != nil {
				if obj, isObj := node.Value.(Object); isObj {
					aliasMaps = append(aliasMaps, aliasMap{obj: obj, origin: node.Origin})
				}
			}
		}

		newValues := Object{}
		var newMapOrigin Origin
		for _, param := range entry.data.meta.Params {
			type candidate struct {
				obj    Object
				name   string
				origin Origin
			}
			var candidates []candidate
			if canonicalMap != nil {
				for _, alias := range param.Aliases {
					candidates = append(candidates, candidate{obj: canonicalMap, name: alias.Name})
				}
			}
			for _, am := range aliasMaps {
				candidates = append(candidates, candidate{obj: am.obj, name: param.Name, origin: am.origin})
				for _, alias := range param.Aliases {
					candidates = append(candidates, candidate{obj: am.obj, name: alias.Name, origin: am.origin})
				}
			}

			for _, cand := range candidates {
				for _, key := range sortedKeys(cand.obj) {
					var canonicalKey string
					if key == cand.name {
						canonicalKey = param.Name
					} else if suffix, ok := stripNamePrefix(key, cand.name); ok {
						canonicalKey = param.Name + "_" + suffix
					} else {
						continue
					}
					if canonicalMap != nil {
						if _, exists := canonicalMap[canonicalKey]; exists {
							continue
						}
					}
					if _, exists := newValues[canonicalKey]; !exists {
						newValues[canonicalKey] = cand.obj[key].Clone()
						if newMapOrigin == nil {
							newMapOrigin = cand.origin
						}
					}
				}
			}
		}

		if len(newValues) == 0 {
			continue
		}
		origin := &SyntheticOrigin{
			Source:    originOrUnknown(newMapOrigin),
			Transform: fmt.Sprintf("copy to '%s' per aliasing rules", prefix),
		}
		target := tree.ensureObject(prefix, func(Pointer) Origin { return origin })
		for key, value := range newValues {
			target[key] = value
		}
	}
}

func sortedKeys(obj Object) []string {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// stripNamePrefix strips "<prefix>_" from s, requiring a non-empty suffix.
func stripNamePrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	rest := s[len(prefix):]
	if len(rest) < 2 || rest[0] != '_' {
		return "", false
	}
	return rest[1:], true
}

// markSecrets flags string values of secret params so that they never
// render, even if deserialization fails later.
func markSecrets(tree *WithOrigin, schema *ConfigSchema) {
	for _, entry := range schema.entries {
		node := tree.Get(entry.prefix)
		if node == nil {
			continue
		}
		obj, isObj := node.Value.(Object)
		if !isObj {
			continue
		}
		for _, param := range entry.data.meta.Params {
			if !param.Secret {
				continue
			}
			value := obj[param.Name]
			if value == nil {
				continue
			}
			if str, isStr := value.Value.(String); isStr && !str.IsSecret() {
				value.Value = SecretString(str.Expose())
			}
		}
	}
}

// nestObjectParamsAndSubConfigs copies `<name>_<field>` siblings inside
// the object-expecting param or nested config `<name>`. Existing fields
// are never overwritten, and a non-object value at `<name>` disables the
// transform.
func nestObjectParamsAndSubConfigs(tree *WithOrigin, schema *ConfigSchema) {
	for _, entry := range schema.entries {
		node := tree.Get(entry.prefix)
		if node == nil {
			continue
		}
		configObject, isObj := node.Value.(Object)
		if !isObj {
			continue
		}

		var childNames []string
		for _, param := range entry.data.meta.Params {
			if param.Expecting.Contains(TypeObject) {
				childNames = append(childNames, param.Name)
			}
		}
		for _, nested := range entry.data.meta.NestedConfigs {
			if nested.Name != "" {
				childNames = append(childNames, nested.Name)
			}
		}

		for _, childName := range childNames {
			var targetObject Object
			if existing := configObject[childName]; existing != nil {
				obj, isObj := existing.Value.(Object)
				if !isObj {
					// Never overwrite non-objects.
					continue
				}
				targetObject = obj
			}

			matching := Object{}
			for _, name := range sortedKeys(configObject) {
				suffix, ok := stripNamePrefix(name, childName)
				if !ok {
					continue
				}
				if targetObject != nil {
					if _, exists := targetObject[suffix]; exists {
						continue
					}
				}
				matching[suffix] = configObject[name].Clone()
			}
			if len(matching) == 0 {
				continue
			}

			if targetObject == nil {
				origin := &SyntheticOrigin{
					Source:    originOrUnknown(node.Origin),
					Transform: fmt.Sprintf("nesting for object param '%s'", childName),
				}
				child := NewWithOrigin(Object{}, origin)
				configObject[childName] = child
				targetObject = child.Value.(Object)
			}
			for key, value := range matching {
				targetObject[key] = value
			}
		}
	}
}

// nestArrayParams assembles `<name>_<i>` siblings into an array at
// `<name>` for array-expecting params. Indexes must be sequential from 0;
// existing arrays are never extended.
func nestArrayParams(tree *WithOrigin, schema *ConfigSchema) {
	for _, entry := range schema.entries {
		node := tree.Get(entry.prefix)
		if node == nil {
			continue
		}
		configObject, isObj := node.Value.(Object)
		if !isObj {
			continue
		}

		for _, param := range entry.data.meta.Params {
			// With an object expectation `_<i>` is ambiguous: an index or
			// an object key.
			if !param.Expecting.Contains(TypeArray) || param.Expecting.Contains(TypeObject) {
				continue
			}
			if _, exists := configObject[param.Name]; exists {
				continue
			}

			matching := map[int]*WithOrigin{}
			maxIdx := -1
			for name, field := range configObject {
				suffix, ok := stripNamePrefix(name, param.Name)
				if !ok || !isDecimal(suffix) {
					continue
				}
				idx, err := strconv.Atoi(suffix)
				if err != nil {
					continue
				}
				matching[idx] = field.Clone()
				if idx > maxIdx {
					maxIdx = idx
				}
			}
			if len(matching) == 0 || maxIdx != len(matching)-1 {
				continue
			}

			items := make(Array, len(matching))
			for idx, field := range matching {
				items[idx] = field
			}
			origin := &SyntheticOrigin{
				Source:    originOrUnknown(node.Origin),
				Transform: fmt.Sprintf("nesting for array param '%s'", param.Name),
			}
			configObject[param.Name] = NewWithOrigin(items, origin)
		}
	}
}

// collectGarbage drops values that neither belong to a canonical param nor
// sit on the path to one, and counts the params the source provides.
func collectGarbage(node *WithOrigin, schema *ConfigSchema, canonicalPrefixes map[Pointer]struct{}, at Pointer) int {
	if _, ok := schema.canonicalParamAt(at); ok {
		return 1
	}
	if _, ok := canonicalPrefixes[at]; ok {
		obj, isObj := node.Value.(Object)
		if !isObj {
			// Keep an erroneous non-object at a config location so that
			// parsing reports it.
			return 1
		}
		count := 0
		for key, child := range obj {
			descendants := collectGarbage(child, schema, canonicalPrefixes, at.Join(key))
			count += descendants
			if descendants == 0 {
				delete(obj, key)
			}
		}
		return count
	}
	return 0
}

// guidedMerge deep-merges objects except at canonical param paths, where
// the overriding value replaces the existing one wholesale.
func guidedMerge(base, overrides *WithOrigin, schema *ConfigSchema, currentPath Pointer) {
	baseObj, baseIsObj := base.Value.(Object)
	overObj, overIsObj := overrides.Value.(Object)
	_, isParam := schema.canonicalParamAt(currentPath)

	if baseIsObj && overIsObj && !isParam {
		for key, value := range overObj {
			if existing, exists := baseObj[key]; exists {
				guidedMerge(existing, value, schema, currentPath.Join(key))
			} else {
				baseObj[key] = value
			}
		}
		return
	}
	base.Value = overrides.Value
	base.Origin = overrides.Origin
}
