package vm

import (
	"encoding/json"
	"slices"
	"strings"
)

const (
	NoIPFound   = "no_ip_found"
	NoDiskFound = "no_disk_found"
)

// State is the normalized power state of a domain.
type State int

const (
	StateUnknown State = iota
	StateUp
	StateDown
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is one observation of a domain. It is never updated after Build returns;
// a new observation is a new Record.
type Record struct {
	name               string
	networkDevice      string
	macAddresses       []string
	ipAddresses        []string
	disks              []string
	configArtifactPath string
	state              State
	rawState           string
	configChanged      bool
	configDiff         string
}

func (r *Record) Name() string               { return r.name }
func (r *Record) NetworkDevice() string      { return r.networkDevice }
func (r *Record) MACAddresses() []string     { return slices.Clone(r.macAddresses) }
func (r *Record) IPAddresses() []string      { return slices.Clone(r.ipAddresses) }
func (r *Record) Disks() []string            { return slices.Clone(r.disks) }
func (r *Record) ConfigArtifactPath() string { return r.configArtifactPath }
func (r *Record) State() State               { return r.state }
func (r *Record) RawState() string           { return r.rawState }

// ConfigChanged reports whether the configuration differs from the artifact left by
// the previous observation.
func (r *Record) ConfigChanged() bool { return r.configChanged }

// ConfigDiff is the unified diff behind ConfigChanged, empty when nothing changed.
func (r *Record) ConfigDiff() string { return r.configDiff }

// DiskList joins the disks the way the summary line prints them.
func (r *Record) DiskList() string {
	return strings.Join(r.disks, ", ")
}

// View is the serialized form of a Record.
type View struct {
	Name               string   `json:"name" yaml:"name"`
	NetworkDevice      string   `json:"network_device" yaml:"network_device"`
	MACAddresses       []string `json:"mac_addresses" yaml:"mac_addresses"`
	IPAddresses        []string `json:"ip_addresses" yaml:"ip_addresses"`
	Disks              []string `json:"disks" yaml:"disks"`
	ConfigArtifactPath string   `json:"config_artifact_path" yaml:"config_artifact_path"`
	State              string   `json:"state" yaml:"state"`
	RawState           string   `json:"raw_state,omitempty" yaml:"raw_state,omitempty"`
	ConfigChanged      bool     `json:"config_changed" yaml:"config_changed"`
}

func (r *Record) View() View {
	macs := r.MACAddresses()
	if macs == nil {
		macs = []string{}
	}
	return View{
		Name:               r.name,
		NetworkDevice:      r.networkDevice,
		MACAddresses:       macs,
		IPAddresses:        r.IPAddresses(),
		Disks:              r.Disks(),
		ConfigArtifactPath: r.configArtifactPath,
		State:              r.state.String(),
		RawState:           r.rawState,
		ConfigChanged:      r.configChanged,
	}
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.View())
}

func (r *Record) MarshalYAML() (any, error) {
	return r.View(), nil
}
