package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func appComponentChanges() ChangedFiles {
	return ChangedFiles{
		"src/app.component.ts": {
			LineChanges: []LineChange{
				{Prev: LineRange{Line: 12, Count: 0}, Curr: LineRange{Line: 12, Count: 50}},
				{Prev: LineRange{Line: 123, Count: 25}, Curr: LineRange{Line: 173, Count: 5}},
			},
		},
	}
}

func TestAdjustLine_UntouchedFile(t *testing.T) {
	changed := appComponentChanges()
	for _, line := range []int{1, 12, 100, 200, 10000} {
		assert.Equal(t, line, AdjustLine(changed, "src/other.ts", line))
	}
	assert.Equal(t, 42, AdjustLine(nil, "src/other.ts", 42))
}

func TestAdjustLine_OffsetAccumulation(t *testing.T) {
	changed := appComponentChanges()

	tests := []struct {
		name string
		line int
		want int
	}{
		{"before all hunks", 5, 5},
		{"at pure insertion point", 12, 12},
		{"after first hunk", 13, 63},
		{"between hunks", 100, 150},
		{"after both hunks", 200, 230},
		{"right after replaced span", 148, 178},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdjustLine(changed, "src/app.component.ts", tt.line))
		})
	}
}

func TestLocateLine_InsideChangedHunk(t *testing.T) {
	changed := appComponentChanges()

	line, inside := LocateLine(changed, "src/app.component.ts", 130)
	assert.True(t, inside)
	assert.Equal(t, 173, line)

	line, inside = LocateLine(changed, "src/app.component.ts", 123)
	assert.True(t, inside)
	assert.Equal(t, 173, line)

	_, inside = LocateLine(changed, "src/app.component.ts", 147)
	assert.True(t, inside)

	line, inside = LocateLine(changed, "src/app.component.ts", 148)
	assert.False(t, inside)
	assert.Equal(t, 178, line)
}

func TestAdjustFileName(t *testing.T) {
	changed := ChangedFiles{
		"src/utils/format.ts": {OriginalFile: "src/utils.ts", LineChanges: []LineChange{}},
		"src/app.ts":          {LineChanges: []LineChange{}},
	}

	assert.Equal(t, "src/utils/format.ts", AdjustFileName(changed, "src/utils.ts"))
	assert.Equal(t, "src/app.ts", AdjustFileName(changed, "src/app.ts"))
	assert.Equal(t, "src/untouched.ts", AdjustFileName(changed, "src/untouched.ts"))

	assert.Equal(t, "src/utils.ts", OriginalFileName(changed, "src/utils/format.ts"))
	assert.Equal(t, "src/app.ts", OriginalFileName(changed, "src/app.ts"))
}

func TestIsFileChanged(t *testing.T) {
	changed := appComponentChanges()
	assert.True(t, IsFileChanged(changed, "src/app.component.ts"))
	assert.False(t, IsFileChanged(changed, "src/app.module.ts"))
}
