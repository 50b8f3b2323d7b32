package models

import (
	"bytes"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participant is a chat member as it appears on a message sender or a room's member list.
// The server sends either a populated object or the bare user id.
type Participant struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts both `"<id>"` and `{"_id": "<id>", "name": "..."}`
func (p *Participant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.ID)
	}
	type participant Participant
	var raw participant
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Participant(raw)
	return nil
}

// Message holds the structure of a group chat message
type Message struct {
	ID        string      `json:"_id"`
	GroupChat string      `json:"groupChat,omitempty"` // room id
	Sender    Participant `json:"sender"`
	Content   string      `json:"content,omitempty"`
	Text      string      `json:"text,omitempty"`
	SentAt    *time.Time  `json:"sentAt,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

// Body returns the message text, preferring content over the legacy text field
func (m Message) Body() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Text
}

// Time returns the server assigned timestamp of the message. When neither sentAt nor
// timestamp were sent, the creation time embedded in an ObjectID message id is used.
// The zero time is returned when nothing is known.
func (m Message) Time() time.Time {
	if m.SentAt != nil {
		return *m.SentAt
	}
	if m.Timestamp != nil {
		return *m.Timestamp
	}
	if oid, err := primitive.ObjectIDFromHex(m.ID); err == nil {
		return oid.Timestamp()
	}
	return time.Time{}
}

// SendMessageRequest is the body of an append message call
type SendMessageRequest struct {
	Content string `json:"content"`
}
