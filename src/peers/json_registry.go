package peers

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"sync"

	"github.com/ugorji/go/codec"
)

const jsonRegistryPath = "nodes.json"

// JSONRegistry reads node records from a JSON file on every query. This allows
// human operators to manipulate the file while the node runs.
type JSONRegistry struct {
	l    sync.Mutex
	path string
}

// NewJSONRegistry creates a JSONRegistry reading <base>/nodes.json.
func NewJSONRegistry(base string) *JSONRegistry {
	path := filepath.Join(base, jsonRegistryPath)
	store := &JSONRegistry{
		path: path,
	}
	return store
}

// Path returns the file the registry reads.
func (j *JSONRegistry) Path() string {
	return j.path
}

// Query implements the Registry interface.
func (j *JSONRegistry) Query(ctx context.Context, pubKeyFilter string) ([]NodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.l.Lock()
	defer j.l.Unlock()

	// Read the file
	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	// Check for no records
	if len(buf) == 0 {
		return []NodeRecord{}, nil
	}

	// Decode the records
	var records []NodeRecord
	dec := codec.NewDecoderBytes(buf, jsonHandle())
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}

	return filterRecords(records, pubKeyFilter), nil
}

// Write replaces the content of the file with records.
func (j *JSONRegistry) Write(records []NodeRecord) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf []byte
	enc := codec.NewEncoderBytes(&buf, jsonHandle())
	if err := enc.Encode(records); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf, 0644)
}

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.Indent = 2
	return jh
}
