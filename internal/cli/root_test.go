package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "ingest"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	f := ingestCmd.Flags().Lookup("batch-size")
	require.NotNil(t, f)
	assert.Equal(t, "0", f.DefValue)
}
