package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tcases := []struct {
		ver string
		exp string
	}{
		{"", "0.0.0"},
		{"(devel)", "0.0.0"},
		{"v1.2.3", "1.2.3"},
		{"1.2", "1.2.0"},
		{"v0.16.88-0.20240101-abcdef", "0.16.88"},
		{"v2.0.1+incompatible", "2.0.1"},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.exp, parse(tc.ver).String(), tc.ver)
	}
}

func TestCurrent(t *testing.T) {
	GitVersion = "v1.0.2"
	GitCommit = "abc"
	defer func() {
		GitVersion, GitCommit = "", ""
	}()

	v := Current()
	assert.Equal(t, "1.0.2", v.String())
	assert.Equal(t, "abc", v.Commit)
	assert.NotEmpty(t, v.Runtime)
}
