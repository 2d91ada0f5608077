package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// batchFile is the YAML description of one batch.
type batchFile struct {
	Mode    string `yaml:"mode"`
	Workers int    `yaml:"workers"`
	Name    string `yaml:"name"`
	// Proc applies to every task that does not name its own.
	Proc  string      `yaml:"proc"`
	Tasks []taskEntry `yaml:"tasks"`
}

type taskEntry struct {
	Proc    string `yaml:"proc"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	Text    string `yaml:"text"`
	DelayMS int    `yaml:"delay_ms"`
}

func (t taskEntry) args() Args {
	return Args{X: t.X, Y: t.Y, Text: t.Text, DelayMS: t.DelayMS}
}

var errInvalidBatch = errors.New("invalid batch file")

func loadBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBatchFile(data)
}

func parseBatchFile(data []byte) (*batchFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var bf batchFile
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidBatch, err)
	}
	if len(bf.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks", errInvalidBatch)
	}
	for i, t := range bf.Tasks {
		if t.Proc == "" && bf.Proc == "" {
			return nil, fmt.Errorf("%w: task %d names no procedure", errInvalidBatch, i)
		}
	}
	return &bf, nil
}

// procNames returns the procedure each task runs.
func (bf *batchFile) procNames() []string {
	names := make([]string, len(bf.Tasks))
	for i, t := range bf.Tasks {
		names[i] = t.Proc
		if names[i] == "" {
			names[i] = bf.Proc
		}
	}
	return names
}
