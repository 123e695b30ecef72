package cli

import (
	"testing"

	"github.com/coreos/go-semver/semver"
	"github.com/stretchr/testify/require"
)

func TestVersion_PrintsRelease(t *testing.T) {
	code, stdout, _ := runMain(t, "version")

	require.Equal(t, ExitSuccess, code)
	require.Equal(t, "msbatch version 3.3.1\n", stdout)
}

func TestVersion_FlagMatchesSubcommand(t *testing.T) {
	_, fromFlag, _ := runMain(t, "--version")
	_, fromCmd, _ := runMain(t, "version")

	require.Equal(t, fromCmd, fromFlag)
}

func TestVersion_ReleaseIsSemver(t *testing.T) {
	_, err := semver.NewVersion(Version)
	require.NoError(t, err)
}
