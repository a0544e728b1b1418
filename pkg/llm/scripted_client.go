package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient is an in-memory Client used by tests to seed deterministic
// LLM replies, mirroring how the teacher isolates the provider behind a
// narrow interface its controller tests can fake. Replies are consumed in
// FIFO order; once exhausted, Default is returned.
type ScriptedClient struct {
	mu       sync.Mutex
	replies  []string
	Default  string
	Prompts  []string // every prompt Send/SendChat was called with, for assertions
	sendErrs []error
}

// NewScriptedClient returns a ScriptedClient that answers replies in order.
func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{replies: replies, Default: "OK"}
}

// Enqueue appends additional replies to the script.
func (c *ScriptedClient) Enqueue(replies ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
}

// EnqueueError makes the next call fail with err instead of returning text.
func (c *ScriptedClient) EnqueueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErrs = append(c.sendErrs, err)
}

// Send implements Client.
func (c *ScriptedClient) Send(_ context.Context, prompt string) (string, error) {
	return c.next(prompt)
}

// SendChat implements Client.
func (c *ScriptedClient) SendChat(_ context.Context, system, user string, history []Message) (string, error) {
	return c.next(fmt.Sprintf("%s\n%s\n%v", system, user, history))
}

func (c *ScriptedClient) next(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prompts = append(c.Prompts, prompt)

	if len(c.sendErrs) > 0 {
		err := c.sendErrs[0]
		c.sendErrs = c.sendErrs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(c.replies) == 0 {
		return c.Default, nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}
