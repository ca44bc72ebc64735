// Package dumpfile reads and writes catalog dump files: a YAML stream with a
// comment header followed by one document per data chunk. Objects within a
// chunk are keyed by their unique key so relations between chunks can be
// restored by key lookup.
package dumpfile

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RestoreOrder lists the entity types a dump file may contain, in the order
// their objects must be created on restore. Types referenced by others come
// first.
var RestoreOrder = []string{
	"user",
	"grouping",
	"userGroup",
	"rule",
	"publicStep",
	"facility",
	"instrument",
	"instrumentScientist",
	"parameterType",
	"permissibleStringValue",
	"investigationType",
	"sampleType",
	"datasetType",
	"datafileFormat",
	"facilityCycle",
	"application",
	"investigation",
	"investigationParameter",
	"keyword",
	"publication",
	"shift",
	"investigationGroup",
	"investigationInstrument",
	"investigationUser",
	"sample",
	"sampleParameter",
	"dataset",
	"datasetParameter",
	"datafile",
	"datafileParameter",
	"study",
	"studyInvestigation",
	"relatedDatafile",
	"dataCollection",
	"dataCollectionParameter",
	"dataCollectionDataset",
	"dataCollectionDatafile",
	"job",
}

var knownTypes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(RestoreOrder))
	for _, t := range RestoreOrder {
		m[t] = struct{}{}
	}
	return m
}()

// Object is one dumped entity: plain attributes, related objects by unique
// key, and nested one-to-many children.
type Object = map[string]any

// Chunk is one YAML document of the dump: entity type name to unique key to
// object.
type Chunk map[string]map[string]Object

// Head is the meta information from the comment header of a dump file.
type Head struct {
	Date       string
	Service    string
	APIVersion string
	Generator  string
}

// Writer produces a dump file on an io.Writer. Chunks are written as
// explicit-start YAML documents in the order given.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter writes the header and returns a Writer for the data chunks.
func NewWriter(w io.Writer, head Head) (*Writer, error) {
	bw := bufio.NewWriter(w)
	_, err := fmt.Fprintf(bw, "%%YAML 1.1\n# Date: %s\n# Service: %s\n# API-Version: %s\n# Generator: %s\n",
		head.Date, head.Service, head.APIVersion, head.Generator)
	if err != nil {
		return nil, fmt.Errorf("dumpfile: write header: %w", err)
	}
	return &Writer{w: bw}, nil
}

// WriteChunk appends one data chunk. Empty chunks are skipped. Entity types
// not in RestoreOrder are rejected since no reader could restore them.
func (w *Writer) WriteChunk(c Chunk) error {
	if w.err != nil {
		return w.err
	}
	if len(c) == 0 {
		return nil
	}
	for t := range c {
		if _, ok := knownTypes[t]; !ok {
			return fmt.Errorf("dumpfile: unknown entity type %q", t)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		w.err = fmt.Errorf("dumpfile: encode chunk: %w", err)
		return w.err
	}
	if _, err := w.w.WriteString("---\n"); err != nil {
		w.err = fmt.Errorf("dumpfile: write chunk: %w", err)
		return w.err
	}
	if _, err := w.w.Write(data); err != nil {
		w.err = fmt.Errorf("dumpfile: write chunk: %w", err)
		return w.err
	}
	return nil
}

// Close flushes buffered output. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("dumpfile: flush: %w", err)
	}
	return nil
}

// Reader consumes a dump file: the header first, then one chunk per call to
// Next until io.EOF.
type Reader struct {
	head Head
	dec  *yaml.Decoder
}

// NewReader parses the comment header and prepares to stream the chunks.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	head, err := readHead(br)
	if err != nil {
		return nil, err
	}
	return &Reader{head: head, dec: yaml.NewDecoder(br)}, nil
}

// Head returns the meta information from the file header.
func (r *Reader) Head() Head { return r.head }

// readHead consumes the leading directive and comment lines. Unknown comment
// keys are ignored; the header may be absent entirely.
func readHead(br *bufio.Reader) (Head, error) {
	var head Head
	for {
		b, err := br.Peek(1)
		if err == io.EOF {
			return head, nil
		}
		if err != nil {
			return head, fmt.Errorf("dumpfile: read header: %w", err)
		}
		if b[0] != '%' && b[0] != '#' {
			return head, nil
		}
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return head, fmt.Errorf("dumpfile: read header: %w", err)
		}
		if line == "" || line[0] != '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimSpace(line[1:]), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Date":
			head.Date = value
		case "Service":
			head.Service = value
		case "API-Version":
			head.APIVersion = value
		case "Generator":
			head.Generator = value
		}
	}
}

// Next returns the next data chunk, or io.EOF after the last one. Chunks
// containing entity types outside RestoreOrder are rejected.
func (r *Reader) Next() (Chunk, error) {
	var c Chunk
	if err := r.dec.Decode(&c); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("dumpfile: decode chunk: %w", err)
	}
	for t := range c {
		if _, ok := knownTypes[t]; !ok {
			return nil, fmt.Errorf("dumpfile: unknown entity type %q", t)
		}
	}
	return c, nil
}

// Objects iterates over the objects of a chunk in restore order, calling fn
// with the entity type, the unique key, and the object. Iteration stops on
// the first error from fn.
func (c Chunk) Objects(fn func(entityType, key string, obj Object) error) error {
	for _, t := range RestoreOrder {
		keyed, ok := c[t]
		if !ok {
			continue
		}
		for _, key := range sortedObjectKeys(keyed) {
			if err := fn(t, key, keyed[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedObjectKeys(m map[string]Object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Unique keys embed the parent keys as prefixes, so lexicographic order
	// creates parents before children within a type.
	sort.Strings(keys)
	return keys
}
