// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracer // import "github.com/ktelemetry/kstat/tracer"

import (
	"fmt"
	"strings"

	cebpf "github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// hookPoint is a kernel attach point.
type hookPoint struct {
	kind, group, name string
}

func (hp hookPoint) String() string {
	if hp.group == "" {
		return hp.kind + "/" + hp.name
	}
	return hp.kind + "/" + hp.group + "/" + hp.name
}

// parseSection derives the hook point from the ELF section of a program,
// for example "tracepoint/raw_syscalls/sys_enter" or "tp_btf/block_rq_issue".
func parseSection(section string) (hookPoint, error) {
	parts := strings.Split(section, "/")
	switch {
	case (parts[0] == "tracepoint" || parts[0] == "tp") && len(parts) == 3 &&
		parts[1] != "" && parts[2] != "":
		return hookPoint{kind: "tracepoint", group: parts[1], name: parts[2]}, nil
	case parts[0] == "tp_btf" && len(parts) == 2 && parts[1] != "":
		return hookPoint{kind: "tp_btf", name: parts[1]}, nil
	}
	return hookPoint{}, fmt.Errorf("unsupported program section %q", section)
}

// attach attaches prog according to the section of its spec.
func (t *Tracer) attach(spec *cebpf.ProgramSpec, prog *cebpf.Program) error {
	hp, err := parseSection(spec.SectionName)
	if err != nil {
		return fmt.Errorf("program %s: %w", spec.Name, err)
	}

	var hook link.Link
	switch hp.kind {
	case "tracepoint":
		hook, err = link.Tracepoint(hp.group, hp.name, prog, nil)
	case "tp_btf":
		hook, err = link.AttachTracing(link.TracingOptions{Program: prog})
	}
	if err != nil {
		return fmt.Errorf("failed to configure %s: %v", hp, err)
	}
	t.hooks[hp] = hook
	return nil
}
