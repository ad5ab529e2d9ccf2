package utils

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRevisionVersion(t *testing.T) {
	testCases := []struct {
		testName string
		settings []debug.BuildSetting
		expected string
	}{
		{testName: "no vcs data", settings: nil, expected: unknownVersion},
		{
			testName: "clean checkout",
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef0123"}, {Key: "vcs.modified", Value: "false"}},
			expected: "devel-0123456789ab",
		},
		{
			testName: "modified checkout",
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}, {Key: "vcs.modified", Value: "true"}},
			expected: "devel-abc123-dirty",
		},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, revisionVersion(testCase.settings), testCase.testName)
	}
}

func TestGetApplicationVersionPrefersStampedVersion(t *testing.T) {
	previous := Version
	Version = "v9.9.9"
	defer func() { Version = previous }()
	assert.Equal(t, "v9.9.9", GetApplicationVersion())
}
