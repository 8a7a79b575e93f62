package agentapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/waabox/builddeck/internal/domain"
)

const doneSentinel = "[DONE]"

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Chat sends the conversation to the agent and streams the reply.
// Each content fragment is passed to onDelta as it arrives; the assembled
// reply is returned once the stream ends with the [DONE] sentinel or closes.
func (c *Client) Chat(ctx context.Context, ownerID, agentID string, messages []domain.ChatMessage, onDelta func(string)) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", domain.ErrInvalidRequest)
	}
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		UserID   string    `json:"user_id"`
		AgentID  string    `json:"agent_id"`
		Stream   bool      `json:"stream"`
		Messages []message `json:"messages"`
	}{UserID: ownerID, AgentID: agentID, Stream: true}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, message{Role: m.Role, Content: m.Content})
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/api/v1/chat", ownerQuery(ownerID)), ownerID, payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.do(c.stream, req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == doneSentinel {
			return reply.String(), nil
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil || len(chunk.Choices) == 0 {
			continue
		}
		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		reply.WriteString(fragment)
		if onDelta != nil {
			onDelta(fragment)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return reply.String(), ctx.Err()
		}
		return reply.String(), fmt.Errorf("reading chat stream: %w", err)
	}
	return reply.String(), nil
}
