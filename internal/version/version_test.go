package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_PrefersLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = oldVersion, oldCommit, oldDate })

	Version, GitCommit, BuildDate = "1.4.0", "abc1234", "2024-08-01"

	info := Get()
	assert.Equal(t, Info{Version: "1.4.0", Commit: "abc1234", BuildDate: "2024-08-01"}, info)
	assert.Equal(t, "onestop 1.4.0 (commit abc1234, built 2024-08-01)", info.String())
}
