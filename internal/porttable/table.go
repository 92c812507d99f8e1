// Package porttable holds the static port -> VLAN mode mapping of a switch.
package porttable

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"firestige.xyz/vswitch/internal/core"
)

// TrunkMarker is the mode token for trunk ports in the port-table file.
const TrunkMarker = "T"

// Mode is the VLAN mode of a port. The zero value is Access on VLAN 0.
type Mode struct {
	Trunk bool
	VLAN  core.VLANID // bound VLAN of an access port
}

// Trunk returns the trunk mode.
func Trunk() Mode { return Mode{Trunk: true} }

// Access returns the access mode bound to vlan.
func Access(vlan core.VLANID) Mode { return Mode{VLAN: vlan} }

// Carries reports whether a frame of vlan may egress a port in this mode.
func (m Mode) Carries(vlan core.VLANID) bool {
	return m.Trunk || m.VLAN == vlan
}

func (m Mode) String() string {
	if m.Trunk {
		return "trunk"
	}
	return fmt.Sprintf("access(%d)", m.VLAN)
}

// Entry is one configured port.
type Entry struct {
	Name string
	Mode Mode
}

// Table is immutable after Parse returns.
type Table struct {
	priority int
	entries  []Entry
	index    map[string]int
}

// FileName returns the port-table file name for a switch id.
func FileName(switchID string) string {
	return "switch" + switchID + ".cfg"
}

// Load reads <dir>/switch<ID>.cfg.
func Load(dir, switchID string) (*Table, error) {
	path := filepath.Join(dir, FileName(switchID))
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.ConfigError{File: path, Msg: err.Error()}
	}
	defer f.Close()

	t, err := parse(f, path)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Parse reads a port table. The first non-comment line is the bridge
// priority; every following line is "<port_name> <T|vlan_id>".
func Parse(r io.Reader) (*Table, error) {
	return parse(r, "")
}

func parse(r io.Reader, file string) (*Table, error) {
	t := &Table{index: make(map[string]int)}
	sawPriority := false

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if !sawPriority {
			prio, err := strconv.Atoi(text)
			if err != nil {
				return nil, &core.ConfigError{File: file, Line: line, Msg: fmt.Sprintf("invalid priority %q", text)}
			}
			t.priority = prio
			sawPriority = true
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, &core.ConfigError{File: file, Line: line, Msg: fmt.Sprintf("expected \"<port> <mode>\", got %q", text)}
		}
		name, token := fields[0], fields[1]

		mode, err := parseMode(token)
		if err != nil {
			return nil, &core.ConfigError{File: file, Line: line, Msg: err.Error()}
		}
		if _, dup := t.index[name]; dup {
			return nil, &core.ConfigError{File: file, Line: line, Msg: fmt.Sprintf("duplicate port %q", name)}
		}

		t.index[name] = len(t.entries)
		t.entries = append(t.entries, Entry{Name: name, Mode: mode})
	}
	if err := scanner.Err(); err != nil {
		return nil, &core.ConfigError{File: file, Msg: err.Error()}
	}
	if !sawPriority {
		return nil, &core.ConfigError{File: file, Msg: "missing priority line"}
	}

	return t, nil
}

func parseMode(token string) (Mode, error) {
	if token == TrunkMarker {
		return Trunk(), nil
	}
	id, err := strconv.Atoi(token)
	if err != nil {
		return Mode{}, fmt.Errorf("invalid mode %q (want %s or a vlan id)", token, TrunkMarker)
	}
	if id < 0 || id > int(core.MaxVLAN) {
		return Mode{}, fmt.Errorf("vlan id %d out of range 0-%d", id, core.MaxVLAN)
	}
	return Access(core.VLANID(id)), nil
}

// Priority returns the bridge priority from the first line.
func (t *Table) Priority() int { return t.priority }

// Len returns the number of configured ports.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the configured ports in file order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Names returns the configured port names in file order.
func (t *Table) Names() []string {
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.Name
	}
	return names
}

// ModeOf returns the mode of a port, or a ConfigError if it has none.
func (t *Table) ModeOf(name string) (Mode, error) {
	i, ok := t.index[name]
	if !ok {
		return Mode{}, &core.ConfigError{Msg: fmt.Sprintf("port %q has no configured mode", name)}
	}
	return t.entries[i].Mode, nil
}

// PortsForVLAN returns every trunk port plus every access port bound to
// vlan, in file order. This is the flood domain of vlan.
func (t *Table) PortsForVLAN(vlan core.VLANID) []string {
	var out []string
	for _, e := range t.entries {
		if e.Mode.Carries(vlan) {
			out = append(out, e.Name)
		}
	}
	return out
}
