package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringFormatsFullIdentity(t *testing.T) {
	info := Info{
		Version:   "1.2.0",
		Commit:    "abc123def4567890",
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}
	assert.Equal(t, "planforge 1.2.0 (abc123de) go1.24.4 linux/amd64", info.String())
}

func TestStringMarksDirtyBuilds(t *testing.T) {
	info := Info{
		Version:   "dev",
		Commit:    "abc123def4567890",
		Dirty:     true,
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}
	assert.Contains(t, info.String(), "(abc123de-dirty)")
}

func TestStringWithoutCommitOmitsParens(t *testing.T) {
	info := Info{Version: "dev", GoVersion: "go1.24.4", Platform: "darwin/arm64"}
	assert.Equal(t, "planforge dev go1.24.4 darwin/arm64", info.String())
}

func TestShortCommitIsNotTruncated(t *testing.T) {
	info := Info{Version: "dev", Commit: "abc123", GoVersion: "go1.24.4", Platform: "linux/amd64"}
	assert.Contains(t, info.String(), "(abc123)")
}

func TestGetInfoReportsRuntime(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "9.9.9", Info{Version: "9.9.9"}.Short())
}
