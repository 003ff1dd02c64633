package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/voice_assistant/internal/dialogue"
	"github.com/Vovarama1992/voice_assistant/internal/ports"
	"github.com/Vovarama1992/voice_assistant/internal/speech"
	json "github.com/goccy/go-json"
)

const (
	serviceName = "voice_assistant"

	// запас на заголовки multipart сверх лимита самого аудио
	multipartOverhead = 1 << 20
	maxJSONBody       = 1 << 20
)

// TurnEngine — то, что транспорт вызывает у движка диалога
type TurnEngine interface {
	Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error)
	Chat(ctx context.Context, conversationID, message string) (*dialogue.ChatResult, error)
	Speak(ctx context.Context, text string) (*speech.Reply, error)
	RunTurn(ctx context.Context, audio []byte, formatHint, conversationID string) (*dialogue.TurnResult, error)
}

type Handler struct {
	engine   TurnEngine
	maxAudio int64
	log      *logger.ZapLogger
}

func NewHandler(engine TurnEngine, maxAudioBytes int64, log *logger.ZapLogger) *Handler {
	return &Handler{
		engine:   engine,
		maxAudio: maxAudioBytes,
		log:      log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/transcribe, multipart с полем audio
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	audio, hint, err := h.readAudio(w, r)
	if err != nil {
		h.fail(w, r, "transcribe", err)
		return
	}

	text, err := h.engine.Transcribe(r.Context(), audio, hint)
	if err != nil {
		h.fail(w, r, "transcribe", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
}

// POST /api/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "chat", err)
		return
	}

	res, err := h.engine.Chat(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		h.fail(w, r, "chat", err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Text: res.Text, ConversationID: res.ConversationID})
}

type speechRequest struct {
	Text string `json:"text"`
}

// POST /api/speech: {url} при удалённом хранилище, иначе сам mp3
func (h *Handler) Speech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "speech", err)
		return
	}

	reply, err := h.engine.Speak(r.Context(), req.Text)
	if err != nil {
		h.fail(w, r, "speech", err)
		return
	}

	if reply.URL != "" {
		writeJSON(w, http.StatusOK, map[string]string{"url": reply.URL})
		return
	}
	writeAudio(w, reply)
}

type turnResponse struct {
	ConversationID string `json:"conversationId,omitempty"`
	Transcript     string `json:"transcript"`
	Recognized     bool   `json:"recognized"`
	Text           string `json:"text,omitempty"`
	URL            string `json:"url,omitempty"`
}

// POST /api/turn: весь ход за один запрос
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request) {
	audio, hint, err := h.readAudio(w, r)
	if err != nil {
		h.fail(w, r, "turn", err)
		return
	}

	res, err := h.engine.RunTurn(r.Context(), audio, hint, r.FormValue("conversationId"))
	if err != nil {
		h.fail(w, r, "turn", err)
		return
	}

	if !res.Recognized || res.Speech.URL != "" {
		out := turnResponse{
			ConversationID: res.ConversationID,
			Transcript:     res.Transcript,
			Recognized:     res.Recognized,
			Text:           res.Text,
		}
		if res.Speech != nil {
			out.URL = res.Speech.URL
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	w.Header().Set("X-Conversation-Id", res.ConversationID)
	w.Header().Set("X-Transcript", url.PathEscape(res.Transcript))
	w.Header().Set("X-Reply-Text", url.PathEscape(res.Text))
	writeAudio(w, res.Speech)
}

// readAudio достаёт файл из поля audio и возвращает байты и подсказку формата
func (h *Handler) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	if h.maxAudio > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxAudio+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("%w: request body over %d bytes", ports.ErrPayloadTooLarge, tooLarge.Limit)
		}
		return nil, "", fmt.Errorf("%w: invalid multipart: %w", ports.ErrInvalidInput, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, "", fmt.Errorf("%w: no audio file provided", ports.ErrInvalidInput)
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read audio: %w", ports.ErrInvalidInput, err)
	}

	// браузер шлёт Blob с именем "blob", тогда формат берём из Content-Type
	hint := header.Filename
	if filepath.Ext(hint) == "" {
		hint = header.Header.Get("Content-Type")
	}
	return audio, hint, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ports.ErrInvalidInput, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("%w: empty body", ports.ErrInvalidInput)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid json: %w", ports.ErrInvalidInput, err)
	}
	return nil
}

func writeAudio(w http.ResponseWriter, reply *speech.Reply) {
	ct := reply.ContentType
	if ct == "" {
		ct = "audio/mpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(reply.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply.Audio)
}
