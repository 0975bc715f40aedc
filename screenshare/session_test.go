package screenshare

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPipeline struct {
	mu       sync.Mutex
	captures []Description
	plays    []Description
	ctxs     []context.Context
	fail     error
}

func (p *recordingPipeline) StartCapture(ctx context.Context, desc Description) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.captures = append(p.captures, desc)
	p.ctxs = append(p.ctxs, ctx)
	return nil
}

func (p *recordingPipeline) StartPlayback(ctx context.Context, desc Description) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.plays = append(p.plays, desc)
	p.ctxs = append(p.ctxs, ctx)
	return nil
}

func TestSessionLifecycle(t *testing.T) {
	p := &recordingPipeline{}
	s := NewSession(p)
	assert.False(t, s.Active())
	assert.False(t, s.Stop())

	desc := Description{Host: "192.0.2.1", Port: 20000}
	require.NoError(t, s.StartSending(context.Background(), desc))
	assert.True(t, s.Active())
	assert.True(t, s.Sending())
	require.Len(t, p.captures, 1)

	assert.True(t, s.Stop())
	assert.False(t, s.Active())
	assert.Error(t, p.ctxs[0].Err(), "pipeline context must be cancelled on stop")

	require.NoError(t, s.StartReceiving(context.Background(), desc))
	assert.True(t, s.Active())
	assert.False(t, s.Sending())
	require.Len(t, p.plays, 1)
}

func TestSessionPipelineFailure(t *testing.T) {
	p := &recordingPipeline{fail: errors.New("ffmpeg missing")}
	s := NewSession(p)

	assert.Error(t, s.StartSending(context.Background(), Description{}))
	assert.False(t, s.Active())
}

func TestLogPipelineDefault(t *testing.T) {
	s := NewSession(nil)
	require.NoError(t, s.StartReceiving(context.Background(), Description{Port: 1}))
	assert.True(t, s.Active())
}
