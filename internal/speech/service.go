package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
)

const contentTypeMP3 = "audio/mpeg"

// Service — синтез + доставка. tts == nil значит, что ключей синтеза нет.
type Service struct {
	tts     Synthesizer
	deliver Deliverer
}

func NewService(tts Synthesizer, deliver Deliverer) *Service {
	return &Service{
		tts:     tts,
		deliver: deliver,
	}
}

func (s *Service) Available() bool {
	return s != nil && s.tts != nil
}

func (s *Service) Speak(ctx context.Context, text string) (*Reply, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%w: text-to-speech is not configured", ports.ErrServiceUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ports.ErrInvalidInput)
	}

	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: synthesize: %w", ports.ErrUpstream, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: synthesizer returned no audio", ports.ErrDataIncomplete)
	}

	return s.deliver.Deliver(ctx, audio, contentTypeMP3)
}
