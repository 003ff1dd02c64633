package ports

import (
	"errors"
	"fmt"
)

// Базовые категории ошибок. Транспорт маппит их в HTTP-статусы через errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUpstream           = errors.New("upstream failure")
	ErrNotFound           = errors.New("not found")
)

// Уточнения
var (
	ErrInvalidFormat   = fmt.Errorf("%w: unsupported audio format", ErrInvalidInput)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrInvalidInput)

	ErrStorageRequired    = fmt.Errorf("%w: remote storage is required", ErrServiceUnavailable)
	ErrSigningUnsupported = errors.New("signed urls are not supported by this store")

	ErrTranscriptionFailed = fmt.Errorf("%w: transcription failed", ErrUpstream)
	ErrDataIncomplete      = fmt.Errorf("%w: data incomplete", ErrUpstream)
	ErrTimeout             = fmt.Errorf("%w: timeout", ErrUpstream)
)
