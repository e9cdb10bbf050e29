// Package lodstore persists terrain mip pyramids in a single SQLite file.
// Each terrain is stored level by level, level 0 being full resolution.
package lodstore

import (
	"errors"
	"strconv"
)

// ErrLevelNotFound is returned when a terrain has no stored level of the requested index.
var ErrLevelNotFound = errors.New("lodstore: level not found")

// Metadata describes the store as a whole.
type Metadata struct {
	Name        string // Human-readable store identifier
	Description string
	Version     string
	Filter      string // Mip filter used to build the pyramids (box or legacy)
	BaseSize    int    // Side length of level 0
	Levels      int    // Number of stored levels per terrain, including level 0
}

// TerrainInfo identifies one stored terrain.
type TerrainInfo struct {
	Name string
	Seed uint32
	Size int
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if m.Filter != "" {
		result["filter"] = m.Filter
	}
	if m.BaseSize > 0 {
		result["basesize"] = strconv.Itoa(m.BaseSize)
	}
	if m.Levels > 0 {
		result["levels"] = strconv.Itoa(m.Levels)
	}

	return result
}

func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Description: values["description"],
		Version:     values["version"],
		Filter:      values["filter"],
	}
	if v, ok := values["basesize"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.BaseSize = i
		}
	}
	if v, ok := values["levels"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.Levels = i
		}
	}
	return meta
}
