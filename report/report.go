// Package report models the JSON reports produced by the code-quality CLI
// and the audit-level diff between two of them.
package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// SourcePosition is a location in a text file at the time a report was generated.
type SourcePosition struct {
	StartLine   int  `json:"startLine"`
	StartColumn *int `json:"startColumn,omitempty"`
	EndLine     *int `json:"endLine,omitempty"`
	EndColumn   *int `json:"endColumn,omitempty"`
}

// Source ties an issue to a file. A nil Position marks a file-level issue.
type Source struct {
	File     string          `json:"file"`
	Position *SourcePosition `json:"position,omitempty"`
}

// Issue is a single diagnostic reported by an audit.
type Issue struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Source   *Source  `json:"source,omitempty"`
}

// AuditDetails holds the optional per-issue breakdown of an audit.
type AuditDetails struct {
	Issues []Issue `json:"issues,omitempty"`
}

// AuditReport is the result of one audit within a plugin.
type AuditReport struct {
	Slug         string        `json:"slug"`
	Title        string        `json:"title"`
	Score        float64       `json:"score"`
	Value        float64       `json:"value"`
	DisplayValue string        `json:"displayValue,omitempty"`
	Details      *AuditDetails `json:"details,omitempty"`
}

// PluginReport groups the audits of one plugin.
type PluginReport struct {
	Slug   string        `json:"slug"`
	Title  string        `json:"title"`
	Audits []AuditReport `json:"audits"`
}

// Commit identifies the commit a report was collected on.
type Commit struct {
	Hash    string `json:"hash"`
	Message string `json:"message,omitempty"`
	Author  string `json:"author,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Report is the top-level report document.
type Report struct {
	PackageName string         `json:"packageName"`
	Version     string         `json:"version"`
	Date        string         `json:"date"`
	Duration    float64        `json:"duration"`
	Commit      *Commit        `json:"commit,omitempty"`
	Plugins     []PluginReport `json:"plugins"`
}

// FindAudit returns the audit identified by plugin and audit slug.
func (r *Report) FindAudit(pluginSlug, auditSlug string) (PluginReport, AuditReport, bool) {
	if r == nil {
		return PluginReport{}, AuditReport{}, false
	}
	for _, plugin := range r.Plugins {
		if plugin.Slug != pluginSlug {
			continue
		}
		for _, audit := range plugin.Audits {
			if audit.Slug == auditSlug {
				return plugin, audit, true
			}
		}
	}
	return PluginReport{}, AuditReport{}, false
}

// CountIssues returns the total number of issues across all audits.
func (r *Report) CountIssues() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, plugin := range r.Plugins {
		for _, audit := range plugin.Audits {
			if audit.Details != nil {
				n += len(audit.Details.Issues)
			}
		}
	}
	return n
}

// Parse decodes a report document.
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}

// LoadFromFile reads and decodes a report document.
func LoadFromFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
