package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds one command probe sample
const DefaultCommandTimeout = 3 * time.Second

// Spec is one custom probe declaration from configuration
type Spec struct {
	Name      string
	Type      string
	Path      string // file
	Command   string // command
	Variable  string // env
	Default   string // env fallback when the variable is unset
	Transform string
	Unit      string
	Timeout   time.Duration // command, zero means DefaultCommandTimeout
}

// NewCustom builds a probe from its declaration. Unknown kinds and
// transforms are rejected here, at load time.
func NewCustom(spec Spec) (Probe, error) {
	transform, err := ParseTransform(spec.Transform)
	if err != nil {
		return nil, fmt.Errorf("probe %q: %w", spec.Name, err)
	}

	switch Kind(spec.Type) {
	case KindFile:
		if spec.Path == "" {
			return nil, fmt.Errorf("probe %q: %w: path", spec.Name, ErrMissingField)
		}
		return &fileProbe{name: spec.Name, path: spec.Path, unit: spec.Unit, transform: transform}, nil

	case KindCommand:
		if spec.Command == "" {
			return nil, fmt.Errorf("probe %q: %w: command", spec.Name, ErrMissingField)
		}
		timeout := spec.Timeout
		if timeout == 0 {
			timeout = DefaultCommandTimeout
		}
		return &commandProbe{name: spec.Name, command: spec.Command, unit: spec.Unit, timeout: timeout, transform: transform}, nil

	case KindEnv:
		if spec.Variable == "" {
			return nil, fmt.Errorf("probe %q: %w: variable", spec.Name, ErrMissingField)
		}
		return &envProbe{name: spec.Name, variable: spec.Variable, fallback: spec.Default, unit: spec.Unit, transform: transform}, nil

	default:
		return nil, fmt.Errorf("probe %q: %w: %q", spec.Name, ErrUnknownKind, spec.Type)
	}
}

type fileProbe struct {
	name      string
	path      string
	unit      string
	transform Transform
}

func (p *fileProbe) Name() string { return p.name }
func (p *fileProbe) Kind() Kind   { return KindFile }

func (p *fileProbe) Sample(_ context.Context) (Value, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return Value{}, err
	}

	data, err := p.transform(string(raw))
	if err != nil {
		return Value{}, err
	}
	return Value{Data: data, Unit: p.unit, Kind: KindFile}, nil
}

type commandProbe struct {
	name      string
	command   string
	unit      string
	timeout   time.Duration
	transform Transform
}

func (p *commandProbe) Name() string { return p.name }
func (p *commandProbe) Kind() Kind   { return KindCommand }

func (p *commandProbe) Sample(ctx context.Context) (Value, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", p.command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Value{}, fmt.Errorf("%w after %s", ErrCommandTimeout, p.timeout)
		}
		return Value{}, fmt.Errorf("%w: %v: %s", ErrCommandFailed, err, bytes.TrimSpace(stderr.Bytes()))
	}

	data, err := p.transform(stdout.String())
	if err != nil {
		return Value{}, err
	}
	return Value{Data: data, Unit: p.unit, Kind: KindCommand}, nil
}

type envProbe struct {
	name      string
	variable  string
	fallback  string
	unit      string
	transform Transform
}

func (p *envProbe) Name() string { return p.name }
func (p *envProbe) Kind() Kind   { return KindEnv }

func (p *envProbe) Sample(_ context.Context) (Value, error) {
	raw, ok := os.LookupEnv(p.variable)
	if !ok {
		if p.fallback == "" {
			return Value{}, fmt.Errorf("%w: %s", ErrEnvNotSet, p.variable)
		}
		raw = p.fallback
	}

	data, err := p.transform(raw)
	if err != nil {
		return Value{}, err
	}
	return Value{Data: data, Unit: p.unit, Kind: KindEnv}, nil
}
