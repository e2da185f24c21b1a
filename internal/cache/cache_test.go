package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

func TestKeyIsStableAndPrefixed(t *testing.T) {
	k1 := Key("group/repo", "abc123", "main", core.ReviewFull)
	k2 := Key("group/repo", "abc123", "main", core.ReviewFull)
	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "review:cache:"))
	assert.Len(t, strings.TrimPrefix(k1, "review:cache:"), 16)
}

func TestKeyChangesWithEveryComponent(t *testing.T) {
	base := Key("group/repo", "abc123", "main", core.ReviewFull)
	assert.NotEqual(t, base, Key("group/other", "abc123", "main", core.ReviewFull))
	assert.NotEqual(t, base, Key("group/repo", "def456", "main", core.ReviewFull))
	assert.NotEqual(t, base, Key("group/repo", "abc123", "develop", core.ReviewFull))
	assert.NotEqual(t, base, Key("group/repo", "abc123", "main", core.ReviewSecurity))
}
