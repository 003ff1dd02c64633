package ai

import (
	"sync"

	"github.com/Vovarama1992/voice_assistant/internal/conversation"
	tiktoken "github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// HistoryWindow оставляет самые свежие сообщения, влезающие в лимит токенов.
// Последнее сообщение (текущий вопрос) передаётся всегда.
type HistoryWindow struct {
	limit int
	model string
	log   *zap.SugaredLogger

	once  sync.Once
	count func(string) int
}

func NewHistoryWindow(limit int, model string, log *zap.SugaredLogger) *HistoryWindow {
	return &HistoryWindow{limit: limit, model: model, log: log}
}

func (w *HistoryWindow) counter() func(string) int {
	w.once.Do(func() {
		if w.count != nil {
			return
		}
		enc, err := tiktoken.EncodingForModel(w.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			w.log.Warnw("tokenizer init failed, history is not trimmed", "model", w.model, "err", err)
			return
		}
		w.count = func(s string) int { return len(enc.Encode(s, nil, nil)) }
	})
	return w.count
}

func (w *HistoryWindow) Fit(history []conversation.Message) []conversation.Message {
	if w == nil || w.limit <= 0 || len(history) == 0 {
		return history
	}
	count := w.counter()
	if count == nil {
		return history
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		tokens := count(history[i].Content)
		if total+tokens > w.limit && i < len(history)-1 {
			break
		}
		total += tokens
		start = i
	}

	// окно начинаем с реплики пользователя
	for start < len(history)-1 && history[start].Role != conversation.RoleUser {
		start++
	}

	if start > 0 {
		w.log.Debugw("history trimmed", "kept", len(history)-start, "dropped", start, "tokens", total)
	}
	return history[start:]
}
