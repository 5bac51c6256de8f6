package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// PluginMeta identifies a plugin.
type PluginMeta struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// AuditMeta identifies an audit within its plugin.
type AuditMeta struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// AuditLink references an audit in the reports diff.
type AuditLink struct {
	Slug   string     `json:"slug"`
	Title  string     `json:"title"`
	Plugin PluginMeta `json:"plugin"`
}

// AuditsDiff classifies audits between two report runs.
type AuditsDiff struct {
	Changed   []AuditLink `json:"changed"`
	Added     []AuditLink `json:"added"`
	Unchanged []AuditLink `json:"unchanged"`
	Removed   []AuditLink `json:"removed"`
}

// ReportsDiff summarizes which audits changed between two report runs.
type ReportsDiff struct {
	Audits AuditsDiff `json:"audits"`
}

// Candidates returns the changed and added audits, in that order. A nil
// diff has no candidates.
func (d *ReportsDiff) Candidates() []AuditLink {
	if d == nil {
		return nil
	}
	links := make([]AuditLink, 0, len(d.Audits.Changed)+len(d.Audits.Added))
	links = append(links, d.Audits.Changed...)
	return append(links, d.Audits.Added...)
}

// LoadDiffFromFile reads a reports diff produced by the CLI compare command.
func LoadDiffFromFile(path string) (*ReportsDiff, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports diff: %w", err)
	}
	var d ReportsDiff
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse reports diff %s: %w", path, err)
	}
	return &d, nil
}

// CompareReports computes the audit-level diff locally. An audit counts as
// changed when its score, value or display value differ.
func CompareReports(prev, curr *Report) *ReportsDiff {
	d := &ReportsDiff{}
	seen := make(map[string]bool)

	for _, plugin := range curr.Plugins {
		meta := PluginMeta{Slug: plugin.Slug, Title: plugin.Title}
		for _, audit := range plugin.Audits {
			link := AuditLink{Slug: audit.Slug, Title: audit.Title, Plugin: meta}
			seen[plugin.Slug+"/"+audit.Slug] = true

			_, before, ok := prev.FindAudit(plugin.Slug, audit.Slug)
			switch {
			case !ok:
				d.Audits.Added = append(d.Audits.Added, link)
			case before.Score != audit.Score ||
				before.Value != audit.Value ||
				before.DisplayValue != audit.DisplayValue:
				d.Audits.Changed = append(d.Audits.Changed, link)
			default:
				d.Audits.Unchanged = append(d.Audits.Unchanged, link)
			}
		}
	}

	for _, plugin := range prev.Plugins {
		meta := PluginMeta{Slug: plugin.Slug, Title: plugin.Title}
		for _, audit := range plugin.Audits {
			if !seen[plugin.Slug+"/"+audit.Slug] {
				d.Audits.Removed = append(d.Audits.Removed, AuditLink{Slug: audit.Slug, Title: audit.Title, Plugin: meta})
			}
		}
	}

	return d
}
