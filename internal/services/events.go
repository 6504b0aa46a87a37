package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/models"
)

// EventService publishes realtime events over Redis pub/sub. The websocket
// hub subscribes to the same channels and relays messages to clients.
type EventService struct {
	pubsub *redis.Client
}

func NewEventService(pubsub *redis.Client) *EventService {
	return &EventService{pubsub: pubsub}
}

// PublishUserUpdate sends a message on the user's private channel.
func (s *EventService) PublishUserUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	s.publish(ctx, fmt.Sprintf("user_updates:%s", userID), msg)
}

// PublishRoomEvent fans a room event out to everyone subscribed to the room.
func (s *EventService) PublishRoomEvent(ctx context.Context, roomID uuid.UUID, event models.RoomEvent) {
	s.publish(ctx, fmt.Sprintf("room_updates:%s", roomID), models.WSMessage{
		Type:    "room_event",
		Payload: event,
	})
}

func (s *EventService) publish(ctx context.Context, channel string, msg models.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal event for %s: %v", channel, err)
		return
	}
	if err := s.pubsub.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("failed to publish event to %s: %v", channel, err)
	}
}
