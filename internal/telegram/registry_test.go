package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func noopHandler(tele.Context) error { return nil }

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/set", Command{Handler: noopHandler, Description: "Add a key"})
	reg.RegisterCommand("/help", Command{
		Handler:     noopHandler,
		Description: "Show help",
		Aliases:     []string{"/start"},
	})

	key, _, ok := reg.LookupCommand("/set")
	require.True(t, ok)
	assert.Equal(t, "/set", key)

	// missing slash and trailing argument both resolve
	key, _, ok = reg.LookupCommand("set")
	require.True(t, ok)
	assert.Equal(t, "/set", key)

	key, _, ok = reg.LookupCommand("/set somekey")
	require.True(t, ok)
	assert.Equal(t, "/set", key)

	key, _, ok = reg.LookupCommand("/start")
	require.True(t, ok)
	assert.Equal(t, "/help", key)

	_, _, ok = reg.LookupCommand("/missing")
	assert.False(t, ok)
}

func TestRegisterCommandRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("set", Command{Handler: noopHandler, Description: "no slash"})
	reg.RegisterCommand("/nohandler", Command{Description: "x"})
	reg.RegisterCommand("/nodesc", Command{Handler: noopHandler})
	assert.Empty(t, reg.Commands())
}

func TestRegisterCommandDuplicateKeepsFirst(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/set", Command{Handler: noopHandler, Description: "first"})
	reg.RegisterCommand("/set", Command{Handler: noopHandler, Description: "second"})
	assert.Equal(t, "first", reg.Commands()["/set"].Description)
}

func TestListCommandsHiddenAndSorted(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/set", Command{Handler: noopHandler, Description: "Add a key"})
	reg.RegisterCommand("/echo", Command{Handler: noopHandler, Description: "Echo", Hidden: true})
	reg.RegisterCommand("/generate", Command{Handler: noopHandler, Description: "Generate"})

	visible := reg.ListCommands(true)
	require.Len(t, visible, 2)
	assert.Equal(t, "/generate", visible[0].Text)
	assert.Equal(t, "/set", visible[1].Text)

	all := reg.ListCommands(false)
	assert.Len(t, all, 3)
}
