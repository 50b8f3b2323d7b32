package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/models"
)

const groupChatsPath = "/api/group-chats"

// GroupChatService contains the group chat calls of the API
type GroupChatService interface {
	Create(ctx context.Context, req models.CreateChatRoomRequest) (*models.ChatRoom, error)
	List(ctx context.Context, assignmentTitle string) ([]models.ChatRoom, error)
	ListAll(ctx context.Context) ([]models.ChatRoom, error)
	Join(ctx context.Context, roomID string) (*models.ChatRoom, error)
	Messages(ctx context.Context, roomID string) ([]models.Message, error)
	Send(ctx context.Context, roomID, content string) (*models.Message, error)
	Leave(ctx context.Context, roomID string) (*models.ChatRoom, error)
}

type groupChatService struct {
	client *api.Client
}

// NewGroupChatService initializes a new instance of the group chat service with the provided api client
func NewGroupChatService(client *api.Client) GroupChatService {
	return &groupChatService{
		client: client,
	}
}

func roomPath(roomID string, suffix string) (string, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return "", api.Validationf("room id is required")
	}
	if strings.ContainsAny(roomID, "/?#") {
		return "", api.Validationf("invalid room id %q", roomID)
	}
	return groupChatsPath + "/" + roomID + suffix, nil
}

func (g *groupChatService) Create(ctx context.Context, req models.CreateChatRoomRequest) (*models.ChatRoom, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, api.Validationf("group name is required")
	}
	if strings.TrimSpace(req.AssignmentID) == "" && strings.TrimSpace(req.AssignmentTitle) == "" {
		return nil, api.Validationf("an assignment is required")
	}
	room := &models.ChatRoom{}
	err := g.client.Do(ctx, api.Request{Method: http.MethodPost, Path: groupChatsPath, Body: req}, room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (g *groupChatService) List(ctx context.Context, assignmentTitle string) ([]models.ChatRoom, error) {
	var query url.Values
	if t := strings.TrimSpace(assignmentTitle); t != "" {
		query = url.Values{"assignmentTitle": {t}}
	}
	var rooms []models.ChatRoom
	err := g.client.Do(ctx, api.Request{Method: http.MethodGet, Path: groupChatsPath, Query: query}, &rooms)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (g *groupChatService) ListAll(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := g.client.Do(ctx, api.Request{Method: http.MethodGet, Path: groupChatsPath + "/all"}, &rooms)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (g *groupChatService) Join(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	return g.membership(ctx, roomID, "/join")
}

func (g *groupChatService) Leave(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	return g.membership(ctx, roomID, "/leave")
}

func (g *groupChatService) membership(ctx context.Context, roomID, action string) (*models.ChatRoom, error) {
	path, err := roomPath(roomID, action)
	if err != nil {
		return nil, err
	}
	room := &models.ChatRoom{}
	err = g.client.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: struct{}{}}, room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (g *groupChatService) Messages(ctx context.Context, roomID string) ([]models.Message, error) {
	path, err := roomPath(roomID, "/messages")
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	err = g.client.Do(ctx, api.Request{Method: http.MethodGet, Path: path}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (g *groupChatService) Send(ctx context.Context, roomID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, api.Validationf("message text is required")
	}
	path, err := roomPath(roomID, "/messages")
	if err != nil {
		return nil, err
	}
	msg := &models.Message{}
	err = g.client.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: models.SendMessageRequest{Content: content}}, msg)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
