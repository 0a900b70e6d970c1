// Package common provides shared types and utilities for UI features.
package common

import (
	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/state"
)

// ShellData holds what the page shell needs around feature content.
type ShellData struct {
	Title       string
	CurrentPath string
	// UpdatesURL is the SSE endpoint the page subscribes to on load.
	UpdatesURL string
	// Source names where lineage edges are read from.
	Source string
}

// Snapshot is the latest known harvest as shown by the dashboard.
type Snapshot struct {
	Run         *state.Run
	Projects    []harvest.ProjectRow
	Datasources []harvest.Datasource
	Lineage     []harvest.Lineage
}
