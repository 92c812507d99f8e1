package command

import "firestige.xyz/vswitch/internal/engine"

// Result payloads. The json tags are the wire format and are also used to
// decode results on the client side.

type PingResult struct {
	Pong bool `json:"pong" yaml:"pong"`
}

// FDBShowParams filters fdb_show output.
type FDBShowParams struct {
	Port string `json:"port,omitempty"`
}

type FDBEntryResult struct {
	MAC       string `json:"mac" yaml:"mac"`
	Port      string `json:"port" yaml:"port"`
	PortID    int    `json:"port_id" yaml:"port_id"`
	ExpiresIn string `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
}

type FDBShowResult struct {
	Entries   []FDBEntryResult `json:"entries" yaml:"entries"`
	Count     int              `json:"count" yaml:"count"`
	AgingTime string           `json:"aging_time" yaml:"aging_time"`
}

type FDBFlushResult struct {
	Flushed int `json:"flushed" yaml:"flushed"`
}

type PortResult struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Mode string `json:"mode" yaml:"mode"`
}

type StatusResult struct {
	SwitchID          string       `json:"switch_id" yaml:"switch_id"`
	BridgeID          string       `json:"bridge_id" yaml:"bridge_id"`
	Driver            string       `json:"driver" yaml:"driver"`
	Protocol          string       `json:"protocol" yaml:"protocol"`
	UptimeSec         int64        `json:"uptime_sec" yaml:"uptime_sec"`
	StrictVLANUnicast bool         `json:"strict_vlan_unicast" yaml:"strict_vlan_unicast"`
	FDBEntries        int          `json:"fdb_entries" yaml:"fdb_entries"`
	AgingTime         string       `json:"aging_time" yaml:"aging_time"`
	Ports             []PortResult `json:"ports" yaml:"ports"`
	Stats             engine.Stats `json:"stats" yaml:"stats"`
}

type ShutdownResult struct {
	Status string `json:"status" yaml:"status"`
}

type ReloadResult struct {
	Status string `json:"status" yaml:"status"`
}
