// Package whatsapp speaks the transport gateway dialect: webhook
// payloads in, text messages out.
package whatsapp

import "strings"

// EventKind tags the webhook variants the bridge understands. Anything
// else maps to EventUnknown and is dropped without side effects.
type EventKind string

const (
	EventMessageUpsert    EventKind = "messages.upsert"
	EventMessageUpdate    EventKind = "messages.update"
	EventConnectionUpdate EventKind = "connection.update"
	EventQRCodeUpdated    EventKind = "qrcode.updated"
	EventUnknown          EventKind = ""
)

func ParseEventKind(raw string) EventKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "messages.upsert":
		return EventMessageUpsert
	case "messages.update":
		return EventMessageUpdate
	case "connection.update":
		return EventConnectionUpdate
	case "qrcode.updated":
		return EventQRCodeUpdated
	default:
		return EventUnknown
	}
}

// WebhookPayload is the envelope the transport gateway posts on every
// event. Data is only meaningful for message events.
type WebhookPayload struct {
	Event    string      `json:"event"`
	Instance string      `json:"instance"`
	Data     MessageData `json:"data"`
}

func (p WebhookPayload) Kind() EventKind {
	return ParseEventKind(p.Event)
}

// MessageData carries the message body plus the transport envelope.
type MessageData struct {
	Key         MessageKey   `json:"key"`
	PushName    string       `json:"pushName,omitempty"`
	Message     *MessageBody `json:"message,omitempty"`
	MessageType string       `json:"messageType,omitempty"`
	Status      string       `json:"status,omitempty"`
	State       string       `json:"state,omitempty"`
}

// MessageKey identifies a message within the transport.
type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// Phone extracts the bare phone number from the jid, e.g.
// "51987654321@s.whatsapp.net" -> "51987654321".
func (k MessageKey) Phone() string {
	jid := strings.TrimSpace(k.RemoteJid)
	if at := strings.Index(jid, "@"); at >= 0 {
		return jid[:at]
	}
	return jid
}

// IsGroup reports whether the jid addresses a group chat.
func (k MessageKey) IsGroup() bool {
	return strings.HasSuffix(strings.TrimSpace(k.RemoteJid), "@g.us")
}

// MessageBody mirrors the two text shapes the gateway emits.
type MessageBody struct {
	Conversation        string        `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedText `json:"extendedTextMessage,omitempty"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

// Text returns the trimmed message text, or "" for non-text payloads.
func (d MessageData) Text() string {
	if d.Message == nil {
		return ""
	}
	if text := strings.TrimSpace(d.Message.Conversation); text != "" {
		return text
	}
	if d.Message.ExtendedTextMessage != nil {
		return strings.TrimSpace(d.Message.ExtendedTextMessage.Text)
	}
	return ""
}
