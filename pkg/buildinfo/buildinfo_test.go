package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_Defaults(t *testing.T) {
	info := Get("minuted")

	assert.Equal(t, "minuted", info.ServiceName)
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, "unknown", info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestString_StampedValues(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	assert.Equal(t, "dev (unknown, unknown)", String())

	Version = "v0.3.0"
	Commit = "abc123d"
	BuildTime = "2026-02-07T10:30:00Z"
	assert.Equal(t, "v0.3.0 (abc123d, 2026-02-07T10:30:00Z)", String())
}
