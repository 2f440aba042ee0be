package llm

import (
	"context"
	"fmt"
)

const voiceAssistantPrompt = `You are a helpful voice assistant for IT support that communicates naturally with users. You're having a natural conversation where users can interrupt you or ask you to repeat information.

Answer questions based primarily on the following knowledge base article. If the question cannot be answered using this knowledge, politely state that you don't have that information.

Important formatting instructions:
1. Structure complex answers with numbered steps (e.g., "1. First step", "2. Second step")
2. Keep each step or section concise for easier comprehension in audio format
3. Include clear section headers when appropriate
4. Break down technical processes into clear, sequential instructions

The user is interacting with you by voice, and can say things like:
- "Stop I didn't catch that" - which means you should be prepared to repeat information
- "Please repeat the step about X" - which means you should repeat a specific section
- "I couldn't understand what you said about Y" - which means elaborate on that topic

KNOWLEDGE BASE ARTICLE:
%s

Remember, you're having a natural conversation, so keep your responses clear, concise, and well-structured.`

// VoiceAssistantMessages builds the chat for one spoken IT-support query:
// the system prompt carrying the knowledge base article, the prior history,
// then the query itself. Clients send history that already ends with the
// query; that entry is not repeated.
func VoiceAssistantMessages(article string, history []Message, text string) []Message {
	if n := len(history); n > 0 && history[n-1].Role == "user" && history[n-1].Content == text {
		history = history[:n-1]
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: fmt.Sprintf(voiceAssistantPrompt, article)})
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		messages = append(messages, m)
	}
	return append(messages, Message{Role: "user", Content: text})
}

// Answer replies to a voice assistant query.
func (c *Client) Answer(ctx context.Context, article string, history []Message, text string) (string, error) {
	return c.Chat(ctx, ChatRequest{
		Messages:    VoiceAssistantMessages(article, history, text),
		Temperature: 0.7,
		MaxTokens:   4000,
	})
}
