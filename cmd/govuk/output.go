package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// jsonArrayWriter streams values as a JSON array, one element per line.
type jsonArrayWriter struct {
	w io.Writer
	n int
}

func newJSONArrayWriter(w io.Writer) *jsonArrayWriter {
	return &jsonArrayWriter{w: w}
}

// Write appends v to the array.
func (j *jsonArrayWriter) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding item %d: %w", j.n, err)
	}

	sep := ",\n"
	if j.n == 0 {
		sep = "["
	}
	if _, err := io.WriteString(j.w, sep); err != nil {
		return err
	}
	if _, err := j.w.Write(data); err != nil {
		return err
	}
	j.n++
	return nil
}

// Close terminates the array. An array with no elements is written as "[]".
func (j *jsonArrayWriter) Close() error {
	closing := "]\n"
	if j.n == 0 {
		closing = "[]\n"
	}
	_, err := io.WriteString(j.w, closing)
	return err
}
