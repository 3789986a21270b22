package webhook

import (
	"encoding/json"
	"testing"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Text(t *testing.T) {
	n := Extract(&Message{Type: "text", Text: &Text{Body: "hello"}})
	assert.Equal(t, "hello", n.Text)
	assert.Equal(t, model.MessageTypeText, n.Type)
	assert.Empty(t, n.MediaID)
}

func TestExtract_MissingTypeDefaultsToText(t *testing.T) {
	n := Extract(&Message{Text: &Text{Body: "untyped"}})
	assert.Equal(t, "untyped", n.Text)
	assert.Equal(t, model.MessageTypeText, n.Type)
}

func TestExtract_Media(t *testing.T) {
	t.Run("image with caption", func(t *testing.T) {
		n := Extract(&Message{Type: "image", Image: &Media{ID: "media.1", Caption: "sunset"}})
		assert.Equal(t, "sunset", n.Text)
		assert.Equal(t, "media.1", n.MediaID)
		assert.Equal(t, model.MessageTypeImage, n.Type)
	})

	t.Run("image without caption has no placeholder", func(t *testing.T) {
		n := Extract(&Message{Type: "image", Image: &Media{ID: "media.2"}})
		assert.Empty(t, n.Text)
		assert.Equal(t, "media.2", n.MediaID)
	})

	t.Run("video without caption", func(t *testing.T) {
		n := Extract(&Message{Type: "video", Video: &Media{ID: "media.3"}})
		assert.Equal(t, "Video message", n.Text)
		assert.Equal(t, "media.3", n.MediaID)
	})

	t.Run("video caption wins", func(t *testing.T) {
		n := Extract(&Message{Type: "video", Video: &Media{ID: "media.4", Caption: "demo"}})
		assert.Equal(t, "demo", n.Text)
	})

	t.Run("document caption then filename then empty", func(t *testing.T) {
		n := Extract(&Message{Type: "document", Document: &Document{ID: "d1", Caption: "Q3 report", Filename: "q3.pdf"}})
		assert.Equal(t, "Q3 report", n.Text)

		n = Extract(&Message{Type: "document", Document: &Document{ID: "d2", Filename: "q3.pdf"}})
		assert.Equal(t, "q3.pdf", n.Text)

		n = Extract(&Message{Type: "document", Document: &Document{ID: "d3"}})
		assert.Empty(t, n.Text)
		assert.Equal(t, "d3", n.MediaID)
	})

	t.Run("audio and sticker placeholders", func(t *testing.T) {
		n := Extract(&Message{Type: "audio", Audio: &Media{ID: "a1"}})
		assert.Equal(t, "Audio message", n.Text)
		assert.Equal(t, "a1", n.MediaID)

		n = Extract(&Message{Type: "sticker", Sticker: &Media{ID: "s1"}})
		assert.Equal(t, "Sticker", n.Text)
		assert.Equal(t, "s1", n.MediaID)
	})
}

func TestExtract_Reaction(t *testing.T) {
	n := Extract(&Message{Type: "reaction", Reaction: &Reaction{MessageID: "wamid.abc", Emoji: "\U0001F602"}})
	assert.Equal(t, "\U0001F602", n.Text)
	require.NotNil(t, n.Reaction)
	assert.Equal(t, "wamid.abc", n.Reaction.MessageID)
	assert.Equal(t, "\U0001F602", n.Reaction.Emoji)

	n = Extract(&Message{Type: "reaction", Reaction: &Reaction{MessageID: "wamid.abc"}})
	assert.Equal(t, "Reaction", n.Text)
}

func TestExtract_Interactive(t *testing.T) {
	t.Run("button reply", func(t *testing.T) {
		n := Extract(&Message{Type: "interactive", Interactive: &Interactive{
			Type:        "button_reply",
			ButtonReply: &Reply{ID: "b1", Title: "Yes"},
		}})
		assert.Equal(t, "Yes", n.Text)
		require.NotNil(t, n.Interactive)
		assert.Equal(t, "button_reply", n.Interactive.Type)
		require.NotNil(t, n.Interactive.ButtonReply)
		assert.Equal(t, "b1", n.Interactive.ButtonReply.ID)
	})

	t.Run("button reply without title", func(t *testing.T) {
		n := Extract(&Message{Type: "interactive", Interactive: &Interactive{Type: "button_reply"}})
		assert.Equal(t, "Button reply", n.Text)
	})

	t.Run("list reply with description", func(t *testing.T) {
		n := Extract(&Message{Type: "interactive", Interactive: &Interactive{
			Type:      "list_reply",
			ListReply: &Reply{ID: "l1", Title: "Plan A", Description: "Basic tier"},
		}})
		assert.Equal(t, "Plan A: Basic tier", n.Text)
		require.NotNil(t, n.Interactive.ListReply)
		assert.Equal(t, "Basic tier", n.Interactive.ListReply.Description)
	})

	t.Run("list reply without description", func(t *testing.T) {
		n := Extract(&Message{Type: "interactive", Interactive: &Interactive{
			Type:      "list_reply",
			ListReply: &Reply{Title: "Plan A"},
		}})
		assert.Equal(t, "Plan A", n.Text)
	})

	t.Run("other interactive type", func(t *testing.T) {
		n := Extract(&Message{Type: "interactive", Interactive: &Interactive{Type: "flow"}})
		assert.Equal(t, "Interactive: flow", n.Text)
	})
}

func TestExtract_Location(t *testing.T) {
	n := Extract(&Message{Type: "location", Location: &Location{Name: "Office", Address: "Main St"}})
	assert.Equal(t, "Office", n.Text)

	n = Extract(&Message{Type: "location", Location: &Location{Address: "Main St"}})
	assert.Equal(t, "Main St", n.Text)

	n = Extract(&Message{Type: "location", Location: &Location{Latitude: -23.55, Longitude: -46.63}})
	assert.Equal(t, "Location: -23.55, -46.63", n.Text)

	n = Extract(&Message{Type: "location", Location: &Location{}})
	assert.Equal(t, "Location", n.Text)
}

func TestExtract_ContactsAndSystem(t *testing.T) {
	n := Extract(&Message{Type: "contacts"})
	assert.Equal(t, "Contact", n.Text)
	assert.Equal(t, model.MessageTypeContacts, n.Type)

	n = Extract(&Message{Type: "system", System: &System{Body: "User changed number"}})
	assert.Equal(t, "User changed number", n.Text)

	n = Extract(&Message{Type: "system"})
	assert.Equal(t, "System message", n.Text)
}

func TestExtract_UnknownKind(t *testing.T) {
	n := Extract(&Message{Type: "order"})
	assert.Equal(t, "[ORDER]", n.Text)
	assert.Equal(t, model.MessageTypeUnknown, n.Type)
}

func TestExtract_ReplyContext(t *testing.T) {
	n := Extract(&Message{
		Type:    "text",
		Text:    &Text{Body: "replying"},
		Context: &Context{From: "+123", ID: "wamid.orig"},
	})
	require.NotNil(t, n.Context)
	assert.Equal(t, "wamid.orig", n.Context.ID)
	assert.Equal(t, "+123", n.Context.From)
}

// Extract must be total: partial or garbage kind objects degrade to
// fallbacks, never panic.
func TestExtract_NeverPanics(t *testing.T) {
	kinds := []string{
		"text", "image", "video", "document", "audio", "sticker",
		"reaction", "interactive", "location", "contacts", "system", "bogus", "",
	}

	for _, kind := range kinds {
		n := Extract(&Message{Type: kind})
		assert.NotEmpty(t, n.Type, "kind %q", kind)
	}

	assert.NotPanics(t, func() { Extract(nil) })

	t.Run("wrong typed nested fields fail decode, not extract", func(t *testing.T) {
		var m Message
		err := json.Unmarshal([]byte(`{"type":"text","text":{"body":123}}`), &m)
		if err == nil {
			assert.NotPanics(t, func() { Extract(&m) })
		}
	})
}
