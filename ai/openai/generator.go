// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/mediamind/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// AnswerGenerator implements ai.AnswerGenerator using OpenAI-compatible chat APIs.
type AnswerGenerator struct {
	client llms.Model
	logger *slog.Logger
}

const answerSystemPrompt = `You answer questions about a recorded conversation or presentation.
You are given numbered excerpts from its transcript. Answer the question using
only the excerpts. If the excerpts do not contain the answer, say so plainly.
Keep the answer concise and do not mention the excerpts' numbering.`

// newAnswerGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newAnswerGenerator(config *ai.Config) (*AnswerGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken("none"),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &AnswerGenerator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewAnswerGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.AnswerGenerator interface to enforce abstraction.
func NewAnswerGenerator(config *ai.Config) (ai.AnswerGenerator, error) {
	return newAnswerGenerator(config)
}

// GenerateAnswer produces an answer grounded in the given transcript excerpts.
func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, query string, excerpts []string) (string, error) {
	g.logger.Debug("generating answer", "query_length", len(query), "excerpts", len(excerpts))

	var user strings.Builder
	for i, excerpt := range excerpts {
		fmt.Fprintf(&user, "[%d] %s\n\n", i+1, excerpt)
	}
	fmt.Fprintf(&user, "Question: %s", query)

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(answerSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(user.String()),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		g.logger.Warn("no choices returned from model")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
