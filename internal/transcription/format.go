package transcription

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
)

// Format — контейнер аудио, например "webm" или "wav"
type Format string

var contentTypes = map[Format]string{
	"webm": "audio/webm",
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"flac": "audio/flac",
}

var aliases = map[string]Format{
	"mpeg":     "mp3",
	"x-wav":    "wav",
	"wave":     "wav",
	"vnd.wave": "wav",
	"x-m4a":    "m4a",
	"opus":     "ogg",
}

func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ParseFormat понимает имя файла ("a.webm"), расширение (".wav", "mp3")
// или MIME-тип ("audio/webm;codecs=opus").
func ParseFormat(hint string) Format {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return ""
	}

	if strings.Contains(h, "/") {
		if mt, _, err := mime.ParseMediaType(h); err == nil {
			h = mt
		}
		if sub, ok := strings.CutPrefix(h, "audio/"); ok {
			h = sub
		} else if sub, ok := strings.CutPrefix(h, "video/"); ok {
			h = sub
		} else {
			h = filepath.Ext(h)
		}
	} else if ext := filepath.Ext(h); ext != "" {
		h = ext
	}

	h = strings.TrimPrefix(h, ".")
	if a, ok := aliases[h]; ok {
		return a
	}
	return Format(h)
}

// AllowList — разрешённые контейнеры
type AllowList map[Format]struct{}

func NewAllowList(formats ...string) AllowList {
	al := make(AllowList, len(formats))
	for _, f := range formats {
		if p := ParseFormat(f); p != "" {
			al[p] = struct{}{}
		}
	}
	return al
}

func (al AllowList) Check(hint string) (Format, error) {
	f := ParseFormat(hint)
	if f == "" {
		return "", fmt.Errorf("%w: format is unknown", ports.ErrInvalidFormat)
	}
	if _, ok := al[f]; !ok {
		return "", fmt.Errorf("%w: %q", ports.ErrInvalidFormat, string(f))
	}
	return f, nil
}
