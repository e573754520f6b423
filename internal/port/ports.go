// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the session engine
// from concrete collaborator implementations.
package port

import (
	"context"

	chatdomain "github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"
)

// RoutineGenerator turns a completed assessment into an AM/PM routine.
// Implementations must return both halves non-empty with unique step ids.
type RoutineGenerator interface {
	GenerateRoutine(ctx context.Context, assessment domain.Assessment) (*domain.DailyRoutine, error)
}

// ImageAnalyzer scores a skin photo. Any field of the result may be absent.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image domain.ImagePayload) (*domain.AnalysisResult, error)
}

// Collaborator is the external AI service behind both calls.
type Collaborator interface {
	RoutineGenerator
	ImageAnalyzer
}

// CoachReplier answers a transcript message.
type CoachReplier interface {
	Reply(ctx context.Context, chatCtx *chatdomain.CoachContext) (*chatdomain.CoachReply, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	// Touch is Get that restarts the entry's TTL.
	Touch(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Len() int
	Close()
}
