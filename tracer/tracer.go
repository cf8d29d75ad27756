// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracer loads a kernel program, configures it and attaches it to
// its hook points.
package tracer // import "github.com/ktelemetry/kstat/tracer"

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	cebpf "github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	log "github.com/sirupsen/logrus"

	"github.com/ktelemetry/kstat/rlimit"
	"github.com/ktelemetry/kstat/support"
)

// Config configures Load.
type Config struct {
	// Dir holds the compiled kernel objects.
	Dir     string
	Program support.Program
	// Variables are written to the read-only data of the program before it
	// is loaded. Every name must exist in the object.
	Variables map[string]any
	// BPFVerifierLogLevel is the log level of the eBPF verifier output.
	BPFVerifierLogLevel uint32
}

// Tracer is a loaded and attached kernel program.
type Tracer struct {
	program support.Program
	coll    *cebpf.Collection
	hooks   map[hookPoint]link.Link
}

// Load loads the kernel program of cfg and attaches all of its programs.
func Load(cfg Config) (*Tracer, error) {
	spec, err := support.LoadCollectionSpec(cfg.Dir, cfg.Program)
	if err != nil {
		return nil, err
	}
	if err := setVariables(spec, cfg.Variables); err != nil {
		return nil, err
	}

	restoreRlimit, err := rlimit.MaximizeMemlock()
	if err != nil {
		return nil, fmt.Errorf("failed to adjust rlimit: %v", err)
	}
	defer restoreRlimit()

	coll, err := cebpf.NewCollectionWithOptions(spec, cebpf.CollectionOptions{
		Programs: cebpf.ProgramOptions{
			LogLevel: cebpf.LogLevel(cfg.BPFVerifierLogLevel),
		},
	})
	if err != nil {
		logVerifierError(err)
		return nil, fmt.Errorf("failed to load %s: %w", cfg.Program, err)
	}

	t := &Tracer{
		program: cfg.Program,
		coll:    coll,
		hooks:   make(map[hookPoint]link.Link),
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Programs)) {
		if err := t.attach(spec.Programs[name], coll.Programs[name]); err != nil {
			t.Close()
			return nil, err
		}
	}
	log.Debugf("Loaded %s with %d hooks", cfg.Program, len(t.hooks))
	return t, nil
}

// setVariables writes vars into the read-only data of spec.
func setVariables(spec *cebpf.CollectionSpec, vars map[string]any) error {
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		v, ok := spec.Variables[name]
		if !ok {
			return fmt.Errorf("variable %s not found in kernel object", name)
		}
		if err := v.Set(vars[name]); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

// logVerifierError logs the verifier output line by line. These errors tend
// to have hundreds of lines.
func logVerifierError(err error) {
	var ve *cebpf.VerifierError
	if errors.As(err, &ve) {
		for _, line := range ve.Log {
			log.Error(line)
		}
		return
	}
	scanner := bufio.NewScanner(strings.NewReader(err.Error()))
	for scanner.Scan() {
		log.Error(scanner.Text())
	}
}

// Map returns the map called name. The map stays owned by the Tracer.
func (t *Tracer) Map(name string) (*cebpf.Map, error) {
	m, ok := t.coll.Maps[name]
	if !ok {
		return nil, fmt.Errorf("map %s not found in %s", name, t.program)
	}
	return m, nil
}

// Close detaches all hooks and releases the maps and programs.
func (t *Tracer) Close() error {
	var errs []error
	for hp, hook := range t.hooks {
		if err := hook.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to detach %s: %w", hp, err))
		}
	}
	clear(t.hooks)
	t.coll.Close()
	return errors.Join(errs...)
}
