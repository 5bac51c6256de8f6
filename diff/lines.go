// Package diff maps positions in a pre-change file onto the post-change file
// using the hunks of a unified diff.
package diff

// LineRange is the span of a hunk on one side of the diff.
type LineRange struct {
	Line  int `json:"line"`
	Count int `json:"count"`
}

// LineChange is one hunk: Prev.Count lines starting at Prev.Line in the old
// file became Curr.Count lines starting at Curr.Line in the new file.
type LineChange struct {
	Prev LineRange `json:"prev"`
	Curr LineRange `json:"curr"`
}

// ChangedFile describes how one current file differs from its previous state.
// LineChanges are sorted by Prev.Line and never overlap.
type ChangedFile struct {
	OriginalFile string       `json:"originalFile,omitempty"`
	LineChanges  []LineChange `json:"lineChanges"`
}

// ChangedFiles is keyed by the current file path.
type ChangedFiles map[string]ChangedFile

// IsFileChanged reports whether the diff touched the current file.
func IsFileChanged(changed ChangedFiles, file string) bool {
	_, ok := changed[file]
	return ok
}

// AdjustFileName maps a file name from the previous report forward to its
// current name. Files that were not renamed keep their name.
func AdjustFileName(changed ChangedFiles, file string) string {
	for curr, cf := range changed {
		if cf.OriginalFile != "" && cf.OriginalFile == file {
			return curr
		}
	}
	return file
}

// OriginalFileName maps a current file name back to the name the previous
// report would have used.
func OriginalFileName(changed ChangedFiles, file string) string {
	if cf, ok := changed[file]; ok && cf.OriginalFile != "" {
		return cf.OriginalFile
	}
	return file
}

// AdjustLine returns where a line of the previous version of file sits in the
// current version. file is the current file name.
func AdjustLine(changed ChangedFiles, file string, line int) int {
	adjusted, _ := LocateLine(changed, file, line)
	return adjusted
}

// LocateLine is AdjustLine that also reports whether line fell strictly inside
// a changed hunk. Such a line has no exact counterpart; the hunk's first
// current line is returned as an approximation.
func LocateLine(changed ChangedFiles, file string, line int) (int, bool) {
	cf, ok := changed[file]
	if !ok {
		return line, false
	}

	offset := 0
	for _, lc := range cf.LineChanges {
		if lc.Prev.Count > 0 && line >= lc.Prev.Line && line < lc.Prev.Line+lc.Prev.Count {
			return lc.Curr.Line, true
		}
		if lc.Prev.Line >= line {
			break
		}
		offset += lc.Curr.Count - lc.Prev.Count
	}
	return line + offset, false
}
