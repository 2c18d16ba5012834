package core

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]SectionDefinition)
	registryMu sync.RWMutex
)

// identifier guards names that are interpolated into SQL.
var identifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Register adds a section definition to the registry.
// Panics on duplicate keys or unsafe table/column names.
func Register(def SectionDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("section already registered: %s", def.Info.Key))
	}
	for _, name := range []string{def.Info.Key, def.Info.Table, def.Info.DoneColumn} {
		if !identifier.MatchString(name) {
			panic(fmt.Sprintf("section %s: invalid identifier %q", def.Info.Key, name))
		}
	}

	seen := make(map[string]bool, len(def.FieldSpecs))
	for _, f := range def.FieldSpecs {
		if !identifier.MatchString(f.Name) || seen[f.Name] {
			panic(fmt.Sprintf("section %s: invalid or duplicate field %q", def.Info.Key, f.Name))
		}
		seen[f.Name] = true
	}

	if len(def.Info.Columns) == 0 && len(def.FieldSpecs) > 0 {
		def.Info.Columns = make([]string, len(def.FieldSpecs))
		for i, spec := range def.FieldSpecs {
			def.Info.Columns[i] = spec.Name
		}
	}
	if def.Info.Sample != nil && len(def.Info.Sample) != len(def.Info.Columns) {
		panic(fmt.Sprintf("section %s: sample row has %d values for %d columns",
			def.Info.Key, len(def.Info.Sample), len(def.Info.Columns)))
	}

	registry[def.Info.Key] = def
}

// Get returns the section registered under key.
func Get(key string) (SectionDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered sections in form order.
func All() []SectionDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SectionDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	slices.SortFunc(result, func(a, b SectionDefinition) int {
		return cmp.Or(
			cmp.Compare(a.Info.Order, b.Info.Order),
			strings.Compare(a.Info.Key, b.Info.Key),
		)
	})
	return result
}

// SectionCount returns the number of registered sections.
func SectionCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear empties the registry. Tests use it to install fixture sections.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]SectionDefinition)
}
