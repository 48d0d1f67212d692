package synth

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/audifyhq/audify/internal/errs"
)

// PiperConfig holds configuration for the local Piper TTS backend.
type PiperConfig struct {
	BinPath   string // default: "piper"
	ModelPath string // required: path to the .onnx voice model
}

// PiperSynthesizer generates speech by piping text through a local
// Piper binary. Voice selection is fixed by the model file, so the
// request's voice id is ignored.
type PiperSynthesizer struct {
	cfg PiperConfig
}

func NewPiperSynthesizer(cfg PiperConfig) *PiperSynthesizer {
	if cfg.BinPath == "" {
		cfg.BinPath = "piper"
	}
	return &PiperSynthesizer{cfg: cfg}
}

func (p *PiperSynthesizer) Name() string { return "local-piper" }

func (p *PiperSynthesizer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	if p.cfg.ModelPath == "" {
		return nil, errs.Errorf(errs.KindSynthesis, "piper model path is required (set TTS_LOCAL_PIPER_MODEL)")
	}

	cmd := exec.CommandContext(ctx, p.cfg.BinPath, "--model", p.cfg.ModelPath, "--output-raw")
	cmd.Stdin = strings.NewReader(req.Text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errs.Errorf(errs.KindSynthesis, "piper failed: %w (stderr: %s)", err, stderr.String())
	}

	return &Result{
		Audio:       stdout.Bytes(),
		ContentType: "audio/wav",
	}, nil
}
