package provision

import (
	"context"
	"fmt"
	"sort"

	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/ng1"
)

// fakeNG1 is a stateful in-memory nG1 that counts create calls.
type fakeNG1 struct {
	devices    []models.DeviceConfig
	interfaces map[string][]models.InterfaceConfig
	locations  map[string]map[int][]string
	apns       []models.APN

	services      map[string]models.ServiceDetail
	domains       []models.DomainSummary
	domainMembers map[int][]models.DomainMember
	nextID        int

	serviceCreates int
	domainCreates  int

	serviceCreateErr map[string]error
	domainCreateErr  map[string]error
	// hideDomains makes created domains invisible to ListDomains.
	hideDomains bool
}

func newFakeNG1() *fakeNG1 {
	return &fakeNG1{
		interfaces:       map[string][]models.InterfaceConfig{},
		locations:        map[string]map[int][]string{},
		services:         map[string]models.ServiceDetail{},
		domains:          []models.DomainSummary{{ServiceName: "Enterprise", ID: models.EnterpriseDomainID}},
		domainMembers:    map[int][]models.DomainMember{},
		nextID:           100,
		serviceCreateErr: map[string]error{},
		domainCreateErr:  map[string]error{},
	}
}

// addDevice registers an Active device with Active interfaces; each
// interface alias maps to the APNs located on it.
func (f *fakeNG1) addDevice(name, ip string, ifaces map[int]string, apns map[int][]string) {
	f.devices = append(f.devices, models.DeviceConfig{DeviceName: name, DeviceIPAddress: ip, Status: "Active", DeviceType: "InfiniStreamNG"})
	numbers := make([]int, 0, len(ifaces))
	for n := range ifaces {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		alias := ifaces[n]
		f.interfaces[name] = append(f.interfaces[name], models.InterfaceConfig{
			InterfaceName: fmt.Sprintf("if%d", n), Alias: alias, InterfaceNumber: n, Status: "Active",
		})
	}
	f.locations[name] = apns
}

func (f *fakeNG1) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeNG1) ListDevices(context.Context) ([]models.DeviceConfig, error) {
	return f.devices, nil
}

func (f *fakeNG1) ListInterfaces(_ context.Context, device string) ([]models.InterfaceConfig, error) {
	return f.interfaces[device], nil
}

func (f *fakeNG1) ListAPNAssociations(_ context.Context, device string, iface int) ([]string, error) {
	return f.locations[device][iface], nil
}

func (f *fakeNG1) ListAPNs(context.Context) ([]models.APN, error) {
	return f.apns, nil
}

func (f *fakeNG1) GetService(_ context.Context, name string) (*models.ServiceDetail, error) {
	s, ok := f.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: service %s", ng1.ErrNotFound, name)
	}
	return &s, nil
}

func (f *fakeNG1) CreateService(_ context.Context, def models.ServiceDetail) error {
	if err := f.serviceCreateErr[def.ServiceName]; err != nil {
		return err
	}
	if _, ok := f.services[def.ServiceName]; ok {
		return fmt.Errorf("%w: %s", ng1.ErrAlreadyExists, def.ServiceName)
	}
	f.serviceCreates++
	def.ID = f.id()
	f.services[def.ServiceName] = def
	return nil
}

func (f *fakeNG1) ListDomains(context.Context) ([]models.DomainSummary, error) {
	return append([]models.DomainSummary(nil), f.domains...), nil
}

func (f *fakeNG1) CreateDomain(_ context.Context, def models.DomainDetail) error {
	if err := f.domainCreateErr[def.DomainName]; err != nil {
		return err
	}
	f.domainCreates++
	if f.hideDomains {
		return nil
	}
	id := f.id()
	f.domains = append(f.domains, models.DomainSummary{ServiceName: def.DomainName, ID: id, Parent: def.ParentID})
	f.domainMembers[id] = def.DomainMembers
	return nil
}

// domainID returns the id of the domain at a slash path below Enterprise.
func (f *fakeNG1) domainID(path ...string) (int, bool) {
	parent := models.EnterpriseDomainID
	for _, name := range path {
		found := false
		for _, d := range f.domains {
			if d.ServiceName == name && d.Parent == parent {
				parent, found = d.ID, true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return parent, true
}

// onstarFake is one device per datacenter, each with a single interface
// carrying both Onstar APNs.
func onstarFake() *fakeNG1 {
	f := newFakeNG1()
	f.apns = []models.APN{{Name: "Onstar01", ID: 11}, {Name: "Onstar02", ID: 12}, {Name: "Ring", ID: 13}}
	f.addDevice("ATL-ISNG1", "10.10.0.1", map[int]string{3: "ATL-GGSN1"}, map[int][]string{3: {"Onstar01", "Onstar02"}})
	f.addDevice("PHX-ISNG1", "10.20.0.1", map[int]string{3: "PHX-GGSN1"}, map[int][]string{3: {"Onstar01", "Onstar02"}})
	return f
}
