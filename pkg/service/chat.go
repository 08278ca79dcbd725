package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zfogg/circle/cli/pkg/api"
	"github.com/zfogg/circle/cli/pkg/cache"
	"github.com/zfogg/circle/cli/pkg/db"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/poll"
	"github.com/zfogg/circle/cli/pkg/resource"
)

// MaxMessageLength is the longest accepted chat message
const MaxMessageLength = 1000

// ChatService lists rooms and reads and writes conversations
type ChatService struct {
	db            *db.Client
	api           *api.Client
	userID        string
	conversations *resource.Resource[*models.Conversation]
}

// NewChatService creates a chat service whose conversations are cached in
// c and polled every interval while watched.
func NewChatService(dbClient *db.Client, apiClient *api.Client, userID string, c *cache.Cache[*models.Conversation], interval time.Duration, opts ...resource.Option) *ChatService {
	cs := &ChatService{db: dbClient, api: apiClient, userID: userID}
	cs.conversations = resource.New[*models.Conversation]("conversation", c,
		resource.FetchFunc[*models.Conversation](cs.fetchConversation), interval, opts...)
	return cs
}

// Rooms lists the chat rooms the user belongs to
func (cs *ChatService) Rooms(ctx context.Context) ([]models.ChatRoom, error) {
	if err := requireUser(cs.userID); err != nil {
		return nil, err
	}

	var members []models.ChatRoomMember
	err := cs.db.From(models.TableChatRoomIndividual).
		Select("*,chat_rooms(*)").
		Eq("user_id", cs.userID).
		Order("joined_at", false).
		Execute(ctx, &members)
	if err != nil {
		return nil, err
	}

	rooms := make([]models.ChatRoom, 0, len(members))
	for _, m := range members {
		if m.Room != nil {
			rooms = append(rooms, *m.Room)
		}
	}
	return rooms, nil
}

// Open returns the one-to-one room shared with peerID, creating it when
// it does not exist yet.
func (cs *ChatService) Open(ctx context.Context, peerID string) (string, error) {
	if err := requireUser(cs.userID); err != nil {
		return "", err
	}
	if peerID == "" {
		return "", clierrors.ValidationError("user id", "is required")
	}
	if peerID == cs.userID {
		return "", clierrors.ValidationError("user id", "you cannot chat with yourself")
	}

	roomID, err := cs.sharedRoom(ctx, peerID)
	if err != nil || roomID != "" {
		return roomID, err
	}

	var rooms []models.ChatRoom
	if err := cs.db.From(models.TableChatRooms).Insert(models.NewChatRoom{}).Execute(ctx, &rooms); err != nil {
		return "", err
	}
	if len(rooms) == 0 {
		return "", clierrors.ServerError()
	}
	roomID = rooms[0].ID

	err = cs.db.From(models.TableChatRoomIndividual).
		Insert([]models.NewChatRoomMember{
			{ChatRoomID: roomID, UserID: cs.userID},
			{ChatRoomID: roomID, UserID: peerID},
		}).
		Execute(ctx, nil)
	if err != nil {
		return "", err
	}

	logger.Info("Chat room created", "room_id", roomID, "peer_id", peerID)
	return roomID, nil
}

// Conversation returns a conversation, served from the cache while fresh
func (cs *ChatService) Conversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if err := requireUser(cs.userID); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, clierrors.ValidationError("conversation id", "is required")
	}
	return cs.conversations.Load(ctx, ConversationKey(conversationID))
}

// Cached returns a conversation even when it is stale
func (cs *ChatService) Cached(conversationID string) (*models.Conversation, bool) {
	return cs.conversations.Peek(ConversationKey(conversationID))
}

// Watch delivers the conversation now and after every poll
func (cs *ChatService) Watch(ctx context.Context, conversationID string, l poll.Listener[*models.Conversation]) (*poll.Handle, error) {
	if err := requireUser(cs.userID); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, clierrors.ValidationError("conversation id", "is required")
	}
	return cs.conversations.Watch(ctx, ConversationKey(conversationID), l), nil
}

// Send posts a message. The client refuses when the user is not a
// participant; the server is still the authority.
func (cs *ChatService) Send(ctx context.Context, conversationID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, clierrors.ValidationError("message", "cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, clierrors.ValidationError("message", "is too long")
	}
	if err := cs.checkParticipant(ctx, conversationID); err != nil {
		return nil, err
	}

	msg, err := cs.api.SendMessage(ctx, conversationID, cs.userID, content)
	if err != nil {
		return nil, err
	}
	cs.conversations.Invalidate(ConversationKey(conversationID))
	return msg, nil
}

// Delete removes a conversation. Non-participants are refused before the
// delete request is sent.
func (cs *ChatService) Delete(ctx context.Context, conversationID string) error {
	if err := cs.checkParticipant(ctx, conversationID); err != nil {
		return err
	}

	if err := cs.api.DeleteConversation(ctx, conversationID, cs.userID); err != nil {
		return err
	}
	cs.conversations.Invalidate(ConversationKey(conversationID))
	logger.Info("Conversation deleted", "conversation_id", conversationID)
	return nil
}

// Close stops every conversation poller
func (cs *ChatService) Close() {
	cs.conversations.Close()
}

func (cs *ChatService) checkParticipant(ctx context.Context, conversationID string) error {
	conv, err := cs.Conversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(cs.userID) {
		return clierrors.AuthorizationError("You are not a participant in this conversation")
	}
	return nil
}

func (cs *ChatService) fetchConversation(ctx context.Context, key string) (*models.Conversation, error) {
	return cs.api.GetConversation(ctx, idFromKey(key, ConversationKeyPrefix))
}

// sharedRoom finds a one-to-one room containing both the user and peerID
func (cs *ChatService) sharedRoom(ctx context.Context, peerID string) (string, error) {
	var mine []models.ChatRoomMember
	err := cs.db.From(models.TableChatRoomIndividual).
		Select("chat_room_id,chat_rooms(*)").
		Eq("user_id", cs.userID).
		Execute(ctx, &mine)
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(mine))
	for _, m := range mine {
		if m.Room != nil && m.Room.IsGroup {
			continue
		}
		ids = append(ids, m.ChatRoomID)
	}
	if len(ids) == 0 {
		return "", nil
	}

	var shared []models.ChatRoomMember
	err = cs.db.From(models.TableChatRoomIndividual).
		Select("chat_room_id").
		In("chat_room_id", ids).
		Eq("user_id", peerID).
		Limit(1).
		Execute(ctx, &shared)
	if err != nil {
		return "", err
	}
	if len(shared) == 0 {
		return "", nil
	}
	return shared[0].ChatRoomID, nil
}
