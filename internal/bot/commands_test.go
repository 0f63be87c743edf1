package bot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandsAreGuildOnly(t *testing.T) {
	t.Parallel()
	b := &Bot{}

	defs := b.getCommandDefinitions()
	require.NotEmpty(t, defs)

	// Every handler reads i.Member, which Discord omits for DM
	// invocations of globally registered commands.
	for _, cmd := range defs {
		require.NotNil(t, cmd.DMPermission, cmd.Name)
		require.False(t, *cmd.DMPermission, cmd.Name)
	}
}
