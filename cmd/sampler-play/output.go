package main

import (
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-sampler/engine"
)

// output feeds the engine to the sound device. oto pulls from Read on its
// own goroutine, which acts as the engine's audio thread.
type output struct {
	engine *engine.Engine
	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	started bool
}

func newOutput(e *engine.Engine, sampleRate int, buffer time.Duration) (*output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	o := &output{
		engine: e,
		ctx:    ctx,
	}
	frames := int(int64(sampleRate) * int64(buffer) / int64(time.Second))
	o.player = ctx.NewPlayer(newDeviceReader(e, frames))
	return o, nil
}

// deviceReader renders engine output into the byte stream the player pulls.
type deviceReader struct {
	engine *engine.Engine
	buf    []float32
}

func newDeviceReader(e *engine.Engine, frames int) *deviceReader {
	frames = max(frames, engine.BlockSize)
	return &deviceReader{engine: e, buf: make([]float32, 2*frames)}
}

// Read renders interleaved float32 frames into p, one buffer-sized chunk at
// a time. It runs on the audio thread and never allocates.
func (r *deviceReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	n -= n % 2
	for done := 0; done < n; {
		chunk := r.buf[:min(len(r.buf), n-done)]
		r.engine.ProcessInto(chunk)
		copy(p[done*4:], unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(chunk))), len(chunk)*4))
		done += len(chunk)
	}
	return n * 4, nil
}

func (o *output) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		o.engine.Start()
		o.player.Play()
		o.started = true
	}
}

func (o *output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		o.player.Pause()
		o.engine.Stop()
		o.started = false
	}
}

func (o *output) Close() {
	o.Stop()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
}
