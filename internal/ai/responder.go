package ai

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"moodguard/internal/mood"
	"moodguard/internal/telemetry"
)

const instructions = "Reply in one or two short sentences like a regular member of this chat. Never say you are an AI."

// Responder builds prompts from mood and history and always produces a reply.
type Responder struct {
	gen       Generator
	mood      *mood.Provider
	maxTokens int
	logger    *zap.Logger
	now       func() time.Time
	intn      func(n int) int
}

func NewResponder(gen Generator, provider *mood.Provider, maxTokens int, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		gen:       gen,
		mood:      provider,
		maxTokens: maxTokens,
		logger:    logger,
		now:       time.Now,
		intn:      rand.IntN,
	}
}

// BuildPrompt renders the prompt for text sent by userID in channelID.
func (r *Responder) BuildPrompt(userID, channelID, text string) string {
	var b strings.Builder
	b.WriteString("Context (recent messages in this channel):\n")
	b.WriteString(r.mood.BuildContext(userID, channelID))
	b.WriteString("\n\nCurrent mood: ")
	b.WriteString(r.mood.Instruction())
	b.WriteString("\n\nUser message: ")
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	return b.String()
}

// Reply never fails: on generator errors it falls back to a canned line for the current mood.
func (r *Responder) Reply(ctx context.Context, userID, channelID, text string) string {
	log := telemetry.Logger(ctx, r.logger)
	prompt := r.BuildPrompt(userID, channelID, text)

	reply, err := r.gen.Generate(ctx, Request{
		Prompt:      prompt,
		Temperature: r.mood.Temperature(),
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		log.Warn("ai reply failed, using fallback", zap.String("user", userID), zap.Error(err))
		telemetry.CountAI("fallback")
		reply = r.mood.Fallback(r.intn)
	} else {
		telemetry.CountAI("ok")
	}

	r.mood.RecordExchange(userID, channelID, text, reply, r.now())
	return reply
}
