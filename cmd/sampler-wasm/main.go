//go:build js && wasm

package main

import (
	"context"
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-sampler/engine"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/sample"
)

const maxBlockFrames = 128

var (
	globalEngine  *engine.Engine
	globalSamples *sample.Manager
	outputBuffer  []float32
)

func main() {
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmLoadLayout", js.FuncOf(wasmLoadLayout))
	js.Global().Set("wasmNoteOn", js.FuncOf(wasmNoteOn))
	js.Global().Set("wasmNoteOff", js.FuncOf(wasmNoteOff))
	js.Global().Set("wasmSetSustain", js.FuncOf(wasmSetSustain))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM sampler module loaded")
	<-c
}

func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	cfg := engine.DefaultConfig()
	cfg.SampleRate = args[0].Int()
	globalEngine = engine.New(cfg)
	globalSamples = sample.NewManager(cfg.SampleRate)
	outputBuffer = make([]float32, maxBlockFrames*2)
	println("Sampler initialized at", cfg.SampleRate, "Hz")
	return nil
}

// wasmLoadLayout builds a JSON layout. Variants must use synthesized tones;
// there is no file system to load samples from.
func wasmLoadLayout(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return "not initialized"
	}
	f, err := preset.Parse([]byte(args[0].String()), "json")
	if err != nil {
		return err.Error()
	}
	if _, err := f.Build(context.Background(), globalEngine, globalSamples, ""); err != nil {
		return err.Error()
	}
	return nil
}

func wasmNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	_ = globalEngine.NoteOn(0, args[0].Int(), -1, float32(args[1].Int())/127)
	return nil
}

func wasmNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	_ = globalEngine.NoteOff(0, args[0].Int(), -1, 0)
	return nil
}

func wasmSetSustain(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	_ = globalEngine.SetSustain(0, args[0].Bool())
	return nil
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return 0
	}
	numFrames := min(args[0].Int(), maxBlockFrames)
	globalEngine.ProcessInto(outputBuffer[:numFrames*2])
	globalEngine.PollControl()

	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
