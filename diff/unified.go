package diff

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// ParseUnified converts the output of `git diff` into ChangedFiles. Deleted
// and binary files are omitted; renamed files keep their previous name in
// OriginalFile.
func ParseUnified(text string) (ChangedFiles, error) {
	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	changed := make(ChangedFiles, len(fileDiffs))
	for _, fd := range fileDiffs {
		oldName, newName := fileNames(fd)
		if newName == "" || isBinary(fd) {
			continue
		}

		cf := ChangedFile{LineChanges: make([]LineChange, 0, len(fd.Hunks))}
		if oldName != "" && oldName != newName {
			cf.OriginalFile = oldName
		}
		for _, h := range fd.Hunks {
			if err := checkHunkBody(h); err != nil {
				return nil, fmt.Errorf("%s: %w", newName, err)
			}
			cf.LineChanges = append(cf.LineChanges, LineChange{
				Prev: LineRange{Line: int(h.OrigStartLine), Count: int(h.OrigLines)},
				Curr: LineRange{Line: int(h.NewStartLine), Count: int(h.NewLines)},
			})
		}
		changed[newName] = cf
	}
	return changed, nil
}

// fileNames returns the previous and current path of a file diff, empty for
// /dev/null. Rename headers win over the a/ and b/ names.
func fileNames(fd *godiff.FileDiff) (string, string) {
	oldName := trimPathPrefix(fd.OrigName, "a/")
	newName := trimPathPrefix(fd.NewName, "b/")
	for _, line := range fd.Extended {
		if v, ok := strings.CutPrefix(line, "rename from "); ok {
			oldName = unquote(v)
		}
		if v, ok := strings.CutPrefix(line, "rename to "); ok {
			newName = unquote(v)
		}
	}
	return oldName, newName
}

func trimPathPrefix(name, prefix string) string {
	name = unquote(name)
	if name == devNull {
		return ""
	}
	return strings.TrimPrefix(name, prefix)
}

func isBinary(fd *godiff.FileDiff) bool {
	for _, line := range fd.Extended {
		if strings.HasPrefix(line, "Binary files ") || line == "GIT binary patch" {
			return true
		}
	}
	return false
}

// checkHunkBody rejects a hunk whose body doesn't hold the line counts its
// header announces, as in a truncated diff.
func checkHunkBody(h *godiff.Hunk) error {
	var orig, curr int32
	if len(h.Body) > 0 {
		for _, line := range bytes.Split(bytes.TrimSuffix(h.Body, []byte("\n")), []byte("\n")) {
			switch {
			case len(line) == 0 || line[0] == ' ':
				orig++
				curr++
			case line[0] == '-':
				orig++
			case line[0] == '+':
				curr++
			}
		}
	}
	if orig != h.OrigLines || curr != h.NewLines {
		return fmt.Errorf("hunk @@ -%d,%d +%d,%d @@ has %d old and %d new lines",
			h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines, orig, curr)
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}
