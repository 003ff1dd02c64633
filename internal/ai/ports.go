package ai

import (
	"context"

	"github.com/Vovarama1992/voice_assistant/internal/conversation"
)

type ChatModel interface {
	// Complete получает ответ модели на историю диалога (последнее сообщение — пользователя)
	Complete(ctx context.Context, system string, history []conversation.Message) (string, error)
}
