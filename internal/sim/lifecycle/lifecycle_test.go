package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNext_WrapsToIdle(t *testing.T) {
	require.Equal(t, Idle, Setup.Next())
	require.Equal(t, Playing, Idle.Next())
	require.Equal(t, Done, Playing.Next())
	require.Equal(t, Idle, Done.Next())
}

func TestJoinable(t *testing.T) {
	require.False(t, Setup.Joinable())
	require.True(t, Idle.Joinable())
	require.True(t, Playing.Joinable())
	require.False(t, Done.Joinable())
}

func TestStrings(t *testing.T) {
	require.Equal(t, "PLAYING", Playing.String())
	require.Equal(t, "UNKNOWN", State(42).String())
	require.Equal(t, "TIME", ReasonTime.String())
	require.Equal(t, "UNKNOWN", ReasonUnknown.String())
}
