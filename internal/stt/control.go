package stt

import "context"

// Control adapts an engine and a broadcaster to the pause/resume contract
// the turn pipeline expects: pause before synthesis, resume after, with a
// state broadcast on every actual change and none when the state already
// matches.
type Control struct {
	ctx       context.Context
	engine    Engine
	broadcast *Broadcaster
}

// NewControl binds resume redials to ctx, which should cover the
// application lifetime.
func NewControl(ctx context.Context, engine Engine, broadcast *Broadcaster) *Control {
	return &Control{ctx: ctx, engine: engine, broadcast: broadcast}
}

func (c *Control) Pause() {
	if !c.engine.IsListening() {
		return
	}
	c.engine.PauseListening()
	c.broadcast.Broadcast(false)
}

// Listening reports the engine's current capture state.
func (c *Control) Listening() bool {
	return c.engine.IsListening()
}

// Resume turns listening on even when it was off before the turn started,
// the hands-free flow the rest of the server assumes.
func (c *Control) Resume() {
	if c.engine.IsListening() {
		return
	}
	if err := c.engine.StartListening(c.ctx); err != nil {
		return
	}
	c.broadcast.Broadcast(true)
}
