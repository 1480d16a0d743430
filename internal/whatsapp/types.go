package whatsapp

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

// Webhook payload types (Cloud API shape)

type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string       `json:"messaging_product"`
	Metadata         Metadata     `json:"metadata"`
	Contacts         []Contact    `json:"contacts,omitempty"`
	Messages         []RawMessage `json:"messages,omitempty"`
	Statuses         []Status     `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type RawMessage struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Text      *Text   `json:"text,omitempty"`
	Image     *Media  `json:"image,omitempty"`
	Audio     *Media  `json:"audio,omitempty"`
	Video     *Media  `json:"video,omitempty"`
	Document  *Media  `json:"document,omitempty"`
	Errors    []Error `json:"errors,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
	Timestamp   string `json:"timestamp"`
}

type Error struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// HasMessages reports whether the change carries customer messages, as
// opposed to delivery-status-only notifications.
func (c *Change) HasMessages() bool {
	return c.Field == "messages" && len(c.Value.Messages) > 0
}

// InboundMessage is the normalized, total projection of a raw provider
// message. Unknown kinds become Type=other and keep the raw type tag;
// nothing is silently dropped.
type InboundMessage struct {
	ProviderID  string
	From        string
	Type        model.MessageType
	RawType     string
	Body        string
	MediaID     string
	MimeType    string
	DisplayName string
	SentAt      time.Time
}

// Normalize classifies a raw message into the tagged union. Contact display
// names are resolved best-effort from the companion contacts array.
func Normalize(raw RawMessage, contacts []Contact) InboundMessage {
	msg := InboundMessage{
		ProviderID: raw.ID,
		From:       raw.From,
		RawType:    raw.Type,
		SentAt:     parseTimestamp(raw.Timestamp),
	}

	for _, contact := range contacts {
		if contact.WaID == raw.From && contact.Profile.Name != "" {
			msg.DisplayName = contact.Profile.Name
			break
		}
	}

	switch raw.Type {
	case "text":
		msg.Type = model.MessageTypeText
		if raw.Text != nil {
			msg.Body = raw.Text.Body
		}
	case "image":
		msg.Type = model.MessageTypeImage
		msg.fillMedia(raw.Image)
	case "audio":
		msg.Type = model.MessageTypeAudio
		msg.fillMedia(raw.Audio)
	case "video":
		msg.Type = model.MessageTypeVideo
		msg.fillMedia(raw.Video)
	case "document":
		msg.Type = model.MessageTypeDocument
		msg.fillMedia(raw.Document)
	default:
		msg.Type = model.MessageTypeOther
	}

	return msg
}

func (m *InboundMessage) fillMedia(media *Media) {
	if media == nil {
		return
	}
	m.MediaID = media.ID
	m.MimeType = media.MimeType
	m.Body = media.Caption
}

// Placeholder is the body stored when media could not be persisted.
func Placeholder(t model.MessageType) string {
	switch t {
	case model.MessageTypeImage:
		return "[image]"
	case model.MessageTypeAudio:
		return "[audio]"
	case model.MessageTypeVideo:
		return "[video]"
	case model.MessageTypeDocument:
		return "[document]"
	default:
		return "[unsupported]"
	}
}

func parseTimestamp(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now()
	}
	return time.Unix(secs, 0)
}

// ParsePayload decodes a webhook delivery body.
func ParsePayload(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
