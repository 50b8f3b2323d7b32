package models

// ChatRoom holds the structure of a group chat created for an assignment
type ChatRoom struct {
	ID              string        `json:"_id"`
	Name            string        `json:"name"`
	Assignment      string        `json:"assignment,omitempty"`
	AssignmentTitle string        `json:"assignmentTitle,omitempty"`
	Members         []Participant `json:"members"`
	CreatedBy       string        `json:"createdBy,omitempty"`
}

// HasMember reports whether the user id is part of the room membership
func (c ChatRoom) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// CreateChatRoomRequest is the body used to create a group chat
type CreateChatRoomRequest struct {
	Name            string `json:"name"`
	AssignmentID    string `json:"assignmentId,omitempty"`
	AssignmentTitle string `json:"assignmentTitle,omitempty"`
}
