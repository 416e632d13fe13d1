package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/fxc"
)

// targetSpec is the on-disk form of a target descriptor:
//
//	arch: rv32im
//	numeric: q16
type targetSpec struct {
	Arch    string `yaml:"arch"`
	Numeric string `yaml:"numeric"`
}

// loadTarget reads a yaml target descriptor, or returns the default
// target when path is empty. Unknown keys are rejected to catch typos.
func loadTarget(path string) (fxc.Target, error) {
	if path == "" {
		return fxc.DefaultTarget(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fxc.Target{}, fmt.Errorf("read target descriptor: %w", err)
	}

	var spec targetSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return fxc.Target{}, fmt.Errorf("parse target descriptor %s: %w", path, err)
	}

	t := fxc.DefaultTarget()
	if spec.Arch != "" {
		t.Arch = spec.Arch
	}
	switch spec.Numeric {
	case "", "q16":
		t.Numeric = fxc.NumericQ16
	case "float32":
		t.Numeric = fxc.NumericFloat32
	default:
		return fxc.Target{}, fmt.Errorf("unknown numeric model %q in %s", spec.Numeric, path)
	}
	return t, nil
}
