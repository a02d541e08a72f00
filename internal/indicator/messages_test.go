package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocaleDefaultsToEnglish(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
}

func TestIndicatorMessagesEnglish(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Equal(t, "Audio link connected", msg.linkUp)
	require.Equal(t, "Audio link lost, reconnecting…", msg.linkDown)
	require.Equal(t, "Audio streamer stopped: unrecoverable error", msg.fatalText)
}
