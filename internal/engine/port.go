package engine

import (
	"fmt"
	"sort"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/porttable"
)

// Port is an attached link together with its configured mode.
type Port struct {
	ID   core.PortID
	Name string
	Mode porttable.Mode
}

// Bind resolves the configured port names against the attached links.
// attached maps interface name to port id; ids must be 0..len(attached)-1.
// A configured port with no link is an UnknownPortError; a link with no
// configured mode is a ConfigError. The result is indexed by port id.
func Bind(tbl *porttable.Table, attached map[string]core.PortID) ([]Port, error) {
	for _, name := range tbl.Names() {
		if _, ok := attached[name]; !ok {
			return nil, &core.UnknownPortError{Name: name}
		}
	}

	names := make([]string, 0, len(attached))
	for name := range attached {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return attached[names[i]] < attached[names[j]] })

	ports := make([]Port, len(attached))
	seen := make([]bool, len(attached))
	for _, name := range names {
		id := attached[name]
		if id < 0 || int(id) >= len(ports) || seen[id] {
			return nil, fmt.Errorf("link %s has invalid port id %d", name, id)
		}
		seen[id] = true

		mode, err := tbl.ModeOf(name)
		if err != nil {
			return nil, &core.ConfigError{Msg: fmt.Sprintf("attached link %q has no configured mode", name)}
		}
		ports[id] = Port{ID: id, Name: name, Mode: mode}
	}
	return ports, nil
}

// floodDomains maps each access VLAN to its member ports plus every trunk,
// in configuration order. VLANs without access ports flood to trunks only.
type floodDomains struct {
	byVLAN map[core.VLANID][]core.PortID
	trunks []core.PortID
}

func newFloodDomains(tbl *porttable.Table, ports []Port) floodDomains {
	byName := make(map[string]core.PortID, len(ports))
	for _, p := range ports {
		byName[p.Name] = p.ID
	}
	resolve := func(names []string) []core.PortID {
		ids := make([]core.PortID, 0, len(names))
		for _, n := range names {
			ids = append(ids, byName[n])
		}
		return ids
	}

	fd := floodDomains{byVLAN: make(map[core.VLANID][]core.PortID)}
	for _, p := range ports {
		if p.Mode.Trunk {
			continue
		}
		if _, done := fd.byVLAN[p.Mode.VLAN]; !done {
			fd.byVLAN[p.Mode.VLAN] = resolve(tbl.PortsForVLAN(p.Mode.VLAN))
		}
	}
	for _, e := range tbl.Entries() {
		if e.Mode.Trunk {
			fd.trunks = append(fd.trunks, byName[e.Name])
		}
	}
	return fd
}

func (fd floodDomains) members(vlan core.VLANID) []core.PortID {
	if ids, ok := fd.byVLAN[vlan]; ok {
		return ids
	}
	return fd.trunks
}

func contains(ids []core.PortID, id core.PortID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
