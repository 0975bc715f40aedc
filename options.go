package audiochat

import (
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/control"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/screenshare"
)

// Option configures a Client.
type Option func(*Client)

// WithOpener sets how audio devices are opened for calls and audio tests.
// The default opener produces silence.
func WithOpener(opener audio.Opener) Option {
	return func(c *Client) { c.opener = opener }
}

// WithPipeline sets the screenshare media pipeline.
func WithPipeline(p screenshare.Pipeline) Option {
	return func(c *Client) { c.pipeline = p }
}

// WithAcceptor replaces the API hub as the decider for incoming calls.
func WithAcceptor(a control.Acceptor) Option {
	return func(c *Client) { c.acceptor = a }
}

// WithSink adds a sink that receives every event alongside the API hub.
func WithSink(sink events.Sink) Option {
	return func(c *Client) { c.sinks = append(c.sinks, sink) }
}

// WithPassphrase sets the passphrase protecting the SQLite contact store.
func WithPassphrase(passphrase []byte) Option {
	return func(c *Client) { c.passphrase = passphrase }
}
