package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

func TestPrecheckFlagsDebugStatements(t *testing.T) {
	f := core.FileDiff{
		Path: "app/service.py",
		Hunk: "@@ -1,2 +10,3 @@\n context line\n+print(\"checkpoint\")\n+result = compute()\n",
	}
	findings := Precheck([]core.FileDiff{f})
	require.Len(t, findings, 1)
	assert.Equal(t, core.SeverityMedium, findings[0].Severity)
	assert.Equal(t, "debug", findings[0].Category)
	assert.Equal(t, 11, findings[0].Line)
}

func TestPrecheckFlagsLongLines(t *testing.T) {
	long := "+x := " + strings.Repeat("a", 130)
	f := core.FileDiff{Path: "main.go", Hunk: "@@ -1 +5 @@\n" + long + "\n"}

	findings := Precheck([]core.FileDiff{f})
	require.Len(t, findings, 1)
	assert.Equal(t, core.SeverityLow, findings[0].Severity)
	assert.Equal(t, "style", findings[0].Category)
	assert.Equal(t, 5, findings[0].Line)
}

func TestPrecheckFlagsTodoMarkers(t *testing.T) {
	f := core.FileDiff{Path: "job.go", Hunk: "@@ -1 +1 @@\n+// FIXME: handle retry\n"}
	findings := Precheck([]core.FileDiff{f})
	require.Len(t, findings, 1)
	assert.Equal(t, "maintenance", findings[0].Category)
}

func TestPrecheckIgnoresRemovedLines(t *testing.T) {
	f := core.FileDiff{Path: "a.go", Hunk: "@@ -1 +1 @@\n-fmt.Println(\"old debug\")\n+clean := true\n"}
	assert.Empty(t, Precheck([]core.FileDiff{f}))
}

func TestHunkStartLine(t *testing.T) {
	assert.Equal(t, 42, hunkStartLine("@@ -10,3 +42,7 @@"))
	assert.Equal(t, 1, hunkStartLine("@@ -1 +1 @@"))
	assert.Equal(t, 0, hunkStartLine("not a header"))
}
