// Package topology builds the per-run view of monitored devices, their
// interfaces and the APNs configured on each interface, and resolves which
// datacenters and gateways can carry a given APN.
package topology

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/johngiles12345/cisco-iot-giles/internal/models"
)

type (
	DeviceID    int
	InterfaceID int
)

// Device is an Active monitored device of an allowed type.
type Device struct {
	ID        DeviceID
	Name      string
	IPAddress string
	Type      string
}

// Site is the upper-cased three-letter prefix of the device name, which
// matches the datacenter acronym for devices that belong to it.
func (d Device) Site() string {
	if len(d.Name) < 3 {
		return strings.ToUpper(d.Name)
	}
	return strings.ToUpper(d.Name[:3])
}

// Interface is an Active device interface. Its Alias is the gateway name.
type Interface struct {
	ID       InterfaceID
	DeviceID DeviceID
	Name     string
	Alias    string
	Number   int
}

// Association links an interface to an APN name.
type Association struct {
	InterfaceID InterfaceID
	APN         string
}

// Topology is an arena of devices, interfaces and associations joined by id.
type Topology struct {
	Devices      []Device
	Interfaces   []Interface
	Associations []Association

	byDevice map[DeviceID][]InterfaceID
	apns     map[InterfaceID]map[string]struct{}
}

// New returns an empty topology.
func New() *Topology {
	return &Topology{
		byDevice: make(map[DeviceID][]InterfaceID),
		apns:     make(map[InterfaceID]map[string]struct{}),
	}
}

// AddDevice appends a device and returns its id.
func (t *Topology) AddDevice(name, ip, deviceType string) DeviceID {
	id := DeviceID(len(t.Devices))
	t.Devices = append(t.Devices, Device{ID: id, Name: name, IPAddress: ip, Type: deviceType})
	return id
}

// AddInterface appends an interface owned by dev and returns its id.
func (t *Topology) AddInterface(dev DeviceID, name, alias string, number int) InterfaceID {
	id := InterfaceID(len(t.Interfaces))
	t.Interfaces = append(t.Interfaces, Interface{ID: id, DeviceID: dev, Name: name, Alias: alias, Number: number})
	t.byDevice[dev] = append(t.byDevice[dev], id)
	return id
}

// Associate records that iface carries apn. Repeats are ignored.
func (t *Topology) Associate(iface InterfaceID, apn string) {
	set, ok := t.apns[iface]
	if !ok {
		set = make(map[string]struct{})
		t.apns[iface] = set
	}
	if _, dup := set[apn]; dup {
		return
	}
	set[apn] = struct{}{}
	t.Associations = append(t.Associations, Association{InterfaceID: iface, APN: apn})
}

func (t *Topology) Device(id DeviceID) Device          { return t.Devices[id] }
func (t *Topology) Interface(id InterfaceID) Interface { return t.Interfaces[id] }

// InterfacesOf returns the interfaces of dev in discovery order.
func (t *Topology) InterfacesOf(dev DeviceID) []Interface {
	ids := t.byDevice[dev]
	out := make([]Interface, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.Interfaces[id])
	}
	return out
}

// Associated reports whether iface carries apn.
func (t *Topology) Associated(iface InterfaceID, apn string) bool {
	_, ok := t.apns[iface][apn]
	return ok
}

// APNsOf returns the sorted APN names configured on iface.
func (t *Topology) APNsOf(iface InterfaceID) []string {
	out := make([]string, 0, len(t.apns[iface]))
	for apn := range t.apns[iface] {
		out = append(out, apn)
	}
	sort.Strings(out)
	return out
}

// DevicesIn returns the devices whose site prefix equals acronym.
func (t *Topology) DevicesIn(acronym string) []Device {
	var out []Device
	for _, d := range t.Devices {
		if d.Site() == strings.ToUpper(acronym) {
			out = append(out, d)
		}
	}
	return out
}

// ── Build ─────────────────────────────────────────────────────────────────────

// Source is the read side of the nG1 client needed to build a topology.
type Source interface {
	ListDevices(ctx context.Context) ([]models.DeviceConfig, error)
	ListInterfaces(ctx context.Context, device string) ([]models.InterfaceConfig, error)
	ListAPNAssociations(ctx context.Context, device string, iface int) ([]string, error)
}

// Filter restricts which devices take part. An empty AllowedTypes admits every type.
type Filter struct {
	AllowedTypes []string
}

func (f Filter) allows(deviceType string) bool {
	if len(f.AllowedTypes) == 0 {
		return true
	}
	for _, t := range f.AllowedTypes {
		if strings.EqualFold(t, deviceType) {
			return true
		}
	}
	return false
}

// FetchError reports a remote listing that failed while building the topology.
type FetchError struct {
	Op        string // "devices", "interfaces" or "associations"
	Device    string
	Interface int
	Err       error
}

func (e *FetchError) Error() string {
	switch e.Op {
	case "devices":
		return fmt.Sprintf("topology: listing devices: %v", e.Err)
	case "interfaces":
		return fmt.Sprintf("topology: listing interfaces of %s: %v", e.Device, e.Err)
	default:
		return fmt.Sprintf("topology: listing APN associations of %s interface %d: %v", e.Device, e.Interface, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func isActive(status string) bool {
	return strings.EqualFold(status, models.StatusActive)
}

// Build fetches every Active device of an allowed type, its Active
// interfaces, and each interface's APN associations. Any failed listing
// aborts the build; an interface without associations is not a failure.
func Build(ctx context.Context, src Source, f Filter) (*Topology, error) {
	devices, err := src.ListDevices(ctx)
	if err != nil {
		return nil, &FetchError{Op: "devices", Err: err}
	}

	t := New()
	for _, d := range devices {
		if !isActive(d.Status) {
			log.Printf("[topology] skipping %s: status %q", d.DeviceName, d.Status)
			continue
		}
		if !f.allows(d.DeviceType) {
			log.Printf("[topology] skipping %s: device type %q not allowed", d.DeviceName, d.DeviceType)
			continue
		}

		ifaces, err := src.ListInterfaces(ctx, d.DeviceName)
		if err != nil {
			return nil, &FetchError{Op: "interfaces", Device: d.DeviceName, Err: err}
		}

		dev := t.AddDevice(d.DeviceName, d.DeviceIPAddress, d.DeviceType)
		for _, ifc := range ifaces {
			if !isActive(ifc.Status) {
				continue
			}
			apns, err := src.ListAPNAssociations(ctx, d.DeviceName, ifc.InterfaceNumber)
			if err != nil {
				return nil, &FetchError{Op: "associations", Device: d.DeviceName, Interface: ifc.InterfaceNumber, Err: err}
			}
			id := t.AddInterface(dev, ifc.InterfaceName, ifc.Alias, ifc.InterfaceNumber)
			if len(apns) == 0 {
				log.Printf("[topology] %s interface %d (%s) has no APN associations", d.DeviceName, ifc.InterfaceNumber, ifc.Alias)
				continue
			}
			for _, apn := range apns {
				t.Associate(id, apn)
			}
		}
	}

	log.Printf("[topology] built %d devices, %d interfaces, %d APN associations",
		len(t.Devices), len(t.Interfaces), len(t.Associations))
	return t, nil
}
