package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%s"
	SkillKeyPrefix       = "skill:%s"
	ChatHistoryKeyPrefix = "chat:history:%s"
	WSTicketKeyPrefix    = "ws_ticket:%s"
	BlacklistKeyPrefix   = "blacklist:%s"
)

const (
	UserTTL        = 5 * time.Minute
	SkillTTL       = 10 * time.Minute
	ChatHistoryTTL = 2 * time.Minute
)

func UserKey(userID string) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func SkillKey(skillID string) string {
	return fmt.Sprintf(SkillKeyPrefix, skillID)
}

// ChatHistoryKey is the cached message history of one booking.
func ChatHistoryKey(bookingID string) string {
	return fmt.Sprintf(ChatHistoryKeyPrefix, bookingID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID string) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateSkill(ctx context.Context, skillID string) {
	Invalidate(ctx, SkillKey(skillID))
}

func InvalidateChatHistory(ctx context.Context, bookingID string) {
	Invalidate(ctx, ChatHistoryKey(bookingID))
}
