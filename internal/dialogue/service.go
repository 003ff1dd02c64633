package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ai"
	"github.com/Vovarama1992/voice_assistant/internal/conversation"
	"github.com/Vovarama1992/voice_assistant/internal/metrics"
	"github.com/Vovarama1992/voice_assistant/internal/ports"
	"github.com/Vovarama1992/voice_assistant/internal/speech"
	"go.uber.org/zap"
)

const DefaultSystemPrompt = "あなたは親切で役立つAIアシスタントです。音声対話で使われるため、簡潔で明瞭な応答を心がけてください。"

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error)
}

type Options struct {
	SystemPrompt string
	Window       *ai.HistoryWindow
}

// Engine — один ход: аудио → текст → ответ модели → голос.
// Ошибка любой стадии обрывает ход; LLM и синтез здесь не ретраятся.
type Engine struct {
	stt    Transcriber
	store  *conversation.Store
	llm    ai.ChatModel
	tts    *speech.Service
	system string
	window *ai.HistoryWindow

	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func NewEngine(
	stt Transcriber,
	store *conversation.Store,
	llm ai.ChatModel,
	tts *speech.Service,
	opts Options,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *Engine {
	system := opts.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &Engine{
		stt:     stt,
		store:   store,
		llm:     llm,
		tts:     tts,
		system:  system,
		window:  opts.Window,
		metrics: m,
		log:     log,
	}
}

type ChatResult struct {
	ConversationID string
	Text           string
}

type TurnResult struct {
	ConversationID string
	Transcript     string
	// false — речь не распознана, модель не вызывалась
	Recognized bool
	Text       string
	Speech     *speech.Reply
}

func (e *Engine) SpeechAvailable() bool {
	return e.tts.Available()
}

func (e *Engine) Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error) {
	defer e.stage("transcribe", time.Now())
	return e.stt.Transcribe(ctx, audio, formatHint)
}

// Chat дописывает реплику пользователя и ответ модели в диалог.
// Ход по одному диалогу выполняется строго по очереди; в историю
// пара попадает только после успешного ответа модели.
func (e *Engine) Chat(ctx context.Context, conversationID, message string) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is empty", ports.ErrInvalidInput)
	}
	if e.llm == nil {
		return nil, fmt.Errorf("%w: language model is not configured", ports.ErrServiceUnavailable)
	}
	defer e.stage("chat", time.Now())

	id, conv := e.store.GetOrCreate(conversationID)
	e.metrics.Conversations.Set(float64(e.store.Len()))
	log := e.log.With("conversation", id)

	unlock, err := e.store.Lock(ctx, conv)
	if err != nil {
		return nil, contextError(err)
	}
	defer unlock()

	history := append(conv.Messages(), conversation.Message{Role: conversation.RoleUser, Content: message})
	reply, err := e.llm.Complete(ctx, e.system, e.window.Fit(history))
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx.Err())
		}
		log.Errorw("llm call failed", "err", err)
		return nil, fmt.Errorf("%w: language model: %w", ports.ErrUpstream, err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, fmt.Errorf("%w: language model returned an empty reply", ports.ErrDataIncomplete)
	}
	// клиент ушёл или вышел таймаут запроса: ответ выбрасываем
	if ctx.Err() != nil {
		log.Warnw("reply discarded, request is gone", "err", ctx.Err())
		return nil, contextError(ctx.Err())
	}

	if err := e.store.AppendTurn(id, message, reply); err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}
	log.Infow("chat turn stored", "messages", len(history)+1)

	return &ChatResult{ConversationID: id, Text: reply}, nil
}

func (e *Engine) Speak(ctx context.Context, text string) (*speech.Reply, error) {
	defer e.stage("synthesize", time.Now())
	return e.tts.Speak(ctx, text)
}

// RunTurn — полный ход. Пустая расшифровка завершает ход без вызова модели.
// Без модели или синтеза ход не начинается вовсе.
func (e *Engine) RunTurn(ctx context.Context, audio []byte, formatHint, conversationID string) (*TurnResult, error) {
	if e.llm == nil {
		e.metrics.Turns.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: language model is not configured", ports.ErrServiceUnavailable)
	}
	if !e.SpeechAvailable() {
		e.metrics.Turns.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: text-to-speech is not configured", ports.ErrServiceUnavailable)
	}

	transcript, err := e.Transcribe(ctx, audio, formatHint)
	if err != nil {
		e.metrics.Turns.WithLabelValues("transcribe_error").Inc()
		return nil, err
	}
	if transcript == "" {
		e.metrics.Turns.WithLabelValues("unrecognized").Inc()
		e.log.Infow("nothing recognized, turn halted", "conversation", conversationID)
		return &TurnResult{ConversationID: conversationID}, nil
	}

	chat, err := e.Chat(ctx, conversationID, transcript)
	if err != nil {
		e.metrics.Turns.WithLabelValues("chat_error").Inc()
		return nil, err
	}

	reply, err := e.Speak(ctx, chat.Text)
	if err != nil {
		e.metrics.Turns.WithLabelValues("speech_error").Inc()
		return nil, err
	}

	e.metrics.Turns.WithLabelValues("ok").Inc()
	return &TurnResult{
		ConversationID: chat.ConversationID,
		Transcript:     transcript,
		Recognized:     true,
		Text:           chat.Text,
		Speech:         reply,
	}, nil
}

func (e *Engine) stage(name string, start time.Time) {
	e.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request deadline: %w", ports.ErrTimeout, err)
	}
	return err
}
