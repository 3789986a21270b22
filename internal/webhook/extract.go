package webhook

import (
	"strconv"
	"strings"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
)

// Normalized is the one internal shape every provider message kind collapses
// into. Side-channel records (reaction, interactive, reply context) ride
// along for kinds that have them.
type Normalized struct {
	Text        string
	MediaID     string
	Type        model.MessageType
	Context     *ContextInfo
	Reaction    *ReactionInfo
	Interactive *InteractiveInfo
}

type ContextInfo struct {
	From string
	ID   string
}

type ReactionInfo struct {
	MessageID string
	Emoji     string
}

type InteractiveInfo struct {
	Type        string
	ButtonReply *Reply
	ListReply   *Reply
}

// Extract normalizes one provider message. It never fails: missing or
// malformed kind objects degrade to the kind's fallback text, and an
// unrecognized kind becomes MessageTypeUnknown with a "[TYPE]" text.
func Extract(m *Message) Normalized {
	if m == nil {
		m = &Message{}
	}

	kind := strings.ToLower(m.Type)
	if kind == "" {
		kind = "text"
	}

	n := Normalized{Type: messageType(kind)}
	if m.Context != nil {
		n.Context = &ContextInfo{From: m.Context.From, ID: m.Context.ID}
	}

	switch kind {
	case "text":
		if m.Text != nil {
			n.Text = m.Text.Body
		}

	case "image":
		if m.Image != nil {
			n.Text = m.Image.Caption
			n.MediaID = m.Image.ID
		}

	case "video":
		n.Text = "Video message"
		if m.Video != nil {
			if m.Video.Caption != "" {
				n.Text = m.Video.Caption
			}
			n.MediaID = m.Video.ID
		}

	case "document":
		if m.Document != nil {
			n.Text = m.Document.Caption
			if n.Text == "" {
				n.Text = m.Document.Filename
			}
			n.MediaID = m.Document.ID
		}

	case "audio":
		n.Text = "Audio message"
		if m.Audio != nil {
			n.MediaID = m.Audio.ID
		}

	case "sticker":
		n.Text = "Sticker"
		if m.Sticker != nil {
			n.MediaID = m.Sticker.ID
		}

	case "reaction":
		n.Text = "Reaction"
		if m.Reaction != nil {
			if m.Reaction.Emoji != "" {
				n.Text = m.Reaction.Emoji
			}
			n.Reaction = &ReactionInfo{
				MessageID: m.Reaction.MessageID,
				Emoji:     m.Reaction.Emoji,
			}
		}

	case "interactive":
		n.Text, n.Interactive = extractInteractive(m.Interactive)

	case "location":
		n.Text = extractLocation(m.Location)

	case "contacts":
		n.Text = "Contact"

	case "system":
		n.Text = "System message"
		if m.System != nil && m.System.Body != "" {
			n.Text = m.System.Body
		}

	default:
		n.Text = "[" + strings.ToUpper(kind) + "]"
	}

	return n
}

func extractInteractive(i *Interactive) (string, *InteractiveInfo) {
	if i == nil {
		return "Interactive: ", &InteractiveInfo{}
	}

	info := &InteractiveInfo{Type: i.Type}

	switch i.Type {
	case "button_reply":
		info.ButtonReply = i.ButtonReply
		text := "Button reply"
		if i.ButtonReply != nil && i.ButtonReply.Title != "" {
			text = i.ButtonReply.Title
		}
		return text, info

	case "list_reply":
		info.ListReply = i.ListReply
		text := "List reply"
		if i.ListReply != nil && i.ListReply.Title != "" {
			text = i.ListReply.Title
			if i.ListReply.Description != "" {
				text += ": " + i.ListReply.Description
			}
		}
		return text, info

	default:
		return "Interactive: " + i.Type, info
	}
}

func extractLocation(l *Location) string {
	if l == nil {
		return "Location"
	}
	if l.Name != "" {
		return l.Name
	}
	if l.Address != "" {
		return l.Address
	}
	if l.Latitude == 0 && l.Longitude == 0 {
		return "Location"
	}
	return "Location: " + strconv.FormatFloat(l.Latitude, 'f', -1, 64) +
		", " + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

func messageType(kind string) model.MessageType {
	switch kind {
	case "text":
		return model.MessageTypeText
	case "image":
		return model.MessageTypeImage
	case "document":
		return model.MessageTypeDocument
	case "audio":
		return model.MessageTypeAudio
	case "video":
		return model.MessageTypeVideo
	case "sticker":
		return model.MessageTypeSticker
	case "reaction":
		return model.MessageTypeReaction
	case "interactive":
		return model.MessageTypeInteractive
	case "location":
		return model.MessageTypeLocation
	case "contacts":
		return model.MessageTypeContacts
	case "system":
		return model.MessageTypeSystem
	default:
		return model.MessageTypeUnknown
	}
}
