package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComposeDeterministic(t *testing.T) {
	require.Equal(t, Compose(ModeDirect), Compose(ModeDirect))
	require.Equal(t, Compose(ModeHint), Compose(ModeHint))
	require.NotEqual(t, Compose(ModeDirect), Compose(ModeHint))
}

func TestComposeOrder(t *testing.T) {
	out := Compose(ModeHint)
	markers := []string{
		"Du är en studiementor",
		"HANTERING AV DOKUMENT",
		"KONCISITET",
		"Matematisk formattering",
		"DIAGRAM OCH VISUALISERING",
		"SOKRATISK METOD",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.Greater(t, idx, last, m)
		last = idx
	}
	require.NotContains(t, out, "HJÄLPSAM OCH FLEXIBEL")
	require.Contains(t, out, DiagramRefusal)
	require.Contains(t, out, `\[...\]`)
}

func TestModeFor(t *testing.T) {
	require.Equal(t, ModeDirect, ModeFor(true))
	require.Equal(t, ModeHint, ModeFor(false))
	require.True(t, strings.HasSuffix(Compose(ModeFor(true)), "stunden.\n"))
}
