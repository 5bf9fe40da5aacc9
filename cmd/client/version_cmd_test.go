package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/openmined/solvesync/internal/version"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runVersion(t *testing.T, args ...string) string {
	t.Helper()
	root := &cobra.Command{Use: "solvesync"}
	root.AddCommand(newVersionCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"version"}, args...))
	require.NoError(t, root.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, version.Detailed(), strings.TrimSpace(runVersion(t)))
}

func TestVersionCommand_JSON(t *testing.T) {
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(runVersion(t, "--json")), &info))
	assert.Equal(t, version.Get(), info)
}
