package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"collective/internal/services"
)

// Descriptor is a named, parsed program interface. Descriptors are immutable
// and shared by every program bound from them.
type Descriptor struct {
	Name string
	ABI  abi.ABI
}

// Methods returns the method signatures in name order.
func (d *Descriptor) Methods() []string {
	out := make([]string, 0, len(d.ABI.Methods))
	for _, m := range d.ABI.Methods {
		out = append(out, m.Sig)
	}
	sort.Strings(out)
	return out
}

// Events returns the event signatures in name order.
func (d *Descriptor) Events() []string {
	out := make([]string, 0, len(d.ABI.Events))
	for _, e := range d.ABI.Events {
		out = append(out, e.Sig)
	}
	sort.Strings(out)
	return out
}

// Loader reads descriptors from a directory and caches them for the life of the process.
type Loader struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*Descriptor
}

// NewLoader returns a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]*Descriptor)}
}

// Dir returns the descriptor directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Load returns the descriptor stored as <dir>/<name>.json. The file may hold a
// bare interface array or a build artifact with an "abi" member.
func (l *Loader) Load(name string) (*Descriptor, error) {
	name = strings.TrimSpace(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.cache[name]; ok {
		return d, nil
	}

	path := filepath.Join(l.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDescriptorLoad, name, "", "read "+path, err)
	}
	parsed, err := parseDescriptor(data)
	if err != nil {
		return nil, services.Wrap(services.ErrDescriptorLoad, name, "", "parse "+path, err)
	}
	d := &Descriptor{Name: name, ABI: parsed}
	l.cache[name] = d
	return d, nil
}

func parseDescriptor(data []byte) (abi.ABI, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return abi.ABI{}, fmt.Errorf("descriptor is empty")
	}
	if trimmed[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return abi.ABI{}, err
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact has no abi member")
		}
		trimmed = artifact.ABI
	}
	return abi.JSON(bytes.NewReader(trimmed))
}
