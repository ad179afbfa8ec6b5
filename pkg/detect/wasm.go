package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
)

// WASMDetector runs an untrusted third-party detector inside a
// deny-by-default WebAssembly sandbox: no filesystem, no network, no
// environment, memory capped, CPU bounded by deadline.
//
// The module reads a JSON request on stdin and writes its findings as a
// JSON array on stdout. A trap, timeout or malformed output is a
// detector error; the set converts it to failure evidence, so a
// misbehaving plugin can only narrow the gate, never widen it.
type WASMDetector struct {
	name     string
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	timeout  time.Duration
}

// wasmRequest is the sandbox input contract.
type wasmRequest struct {
	Text   string   `json:"text"`
	Tokens []string `json:"tokens"`
}

// wasmFinding is one finding reported by the module. The detector name
// is overwritten on the way out so a plugin cannot impersonate another
// detector in the audit trail.
type wasmFinding struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Strength   float64        `json:"strength"`
	Confidence float64        `json:"confidence"`
	Span       *evidence.Span `json:"span,omitempty"`
}

const wasmMemoryLimitPages = 64 // 4 MiB

// NewWASM compiles a detector module for sandboxed execution. Zero or
// negative timeout falls back to one second per call.
func NewWASM(ctx context.Context, name string, wasmBytes []byte, timeout time.Duration) (*WASMDetector, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	// Close-on-context-done makes the per-call deadline binding even
	// when the guest never yields.
	runtimeCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(wasmMemoryLimitPages).
		WithCloseOnContextDone(true)
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasm detector %q: compile: %w", name, err)
	}
	return &WASMDetector{
		name:     name,
		runtime:  r,
		compiled: compiled,
		timeout:  timeout,
	}, nil
}

// Name implements evidence.Detector.
func (d *WASMDetector) Name() string { return d.name }

// Detect implements evidence.Detector.
func (d *WASMDetector) Detect(ctx context.Context, t *evidence.Target) ([]evidence.Evidence, error) {
	if t == nil {
		return nil, fmt.Errorf("nil target")
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	input, err := json.Marshal(wasmRequest{Text: t.Normalized, Tokens: t.Tokens})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	// Deny-by-default: no FS config, no nanotime, no random source.
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_start").
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := d.runtime.InstantiateModule(ctx, d.compiled, modCfg)
	if err != nil {
		// A clean WASI exit(0) still surfaces as an error here.
		if exitErr, ok := err.(*sys.ExitError); !ok || exitErr.ExitCode() != 0 {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("sandbox timed out after %v", d.timeout)
			}
			return nil, fmt.Errorf("sandbox execution: %w", err)
		}
	}
	if mod != nil {
		_ = mod.Close(ctx)
	}
	if stderr.Len() > 0 {
		return nil, fmt.Errorf("sandbox stderr: %s", stderr.String())
	}

	var findings []wasmFinding
	if err := json.Unmarshal(stdout.Bytes(), &findings); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}

	out := make([]evidence.Evidence, 0, len(findings))
	for _, f := range findings {
		code := evidence.Code(f.Code)
		if !code.Known() {
			return nil, fmt.Errorf("sandbox reported unknown code %q", f.Code)
		}
		out = append(out, evidence.Evidence{
			Detector:   d.name,
			Code:       code,
			Message:    f.Message,
			Strength:   f.Strength,
			Confidence: f.Confidence,
			Span:       f.Span,
		})
	}
	return out, nil
}

// Close releases the sandbox runtime.
func (d *WASMDetector) Close(ctx context.Context) error {
	return d.runtime.Close(ctx)
}
