package provision

import (
	"sort"
)

type ServiceKind int

const (
	KindNetwork ServiceKind = iota
	KindApplication
)

// ServiceRef is a provisioned service with explicit tags. Membership
// decisions are made on these tags, never on substrings of the name.
type ServiceRef struct {
	Name       string
	ID         int
	Kind       ServiceKind
	APN        string
	Datacenter string

	// network services
	Gateway   string
	Aggregate bool

	// application services
	App         string
	Branch      string
	MonitorType string

	Created bool // false when an existing service was reused
}

// ServiceIndex keeps provisioned services in creation order.
type ServiceIndex struct {
	refs   []ServiceRef
	byName map[string]int
}

func newServiceIndex() *ServiceIndex {
	return &ServiceIndex{byName: make(map[string]int)}
}

func (x *ServiceIndex) add(ref ServiceRef) {
	if i, ok := x.byName[ref.Name]; ok {
		x.refs[i] = ref
		return
	}
	x.byName[ref.Name] = len(x.refs)
	x.refs = append(x.refs, ref)
}

// Len is the number of services.
func (x *ServiceIndex) Len() int { return len(x.refs) }

// Get looks up a service by name.
func (x *ServiceIndex) Get(name string) (ServiceRef, bool) {
	i, ok := x.byName[name]
	if !ok {
		return ServiceRef{}, false
	}
	return x.refs[i], true
}

// IDs maps service names to nG1 ids.
func (x *ServiceIndex) IDs() map[string]int {
	out := make(map[string]int, len(x.refs))
	for _, r := range x.refs {
		out[r.Name] = r.ID
	}
	return out
}

// Names returns the service names sorted.
func (x *ServiceIndex) Names() []string {
	out := make([]string, 0, len(x.refs))
	for _, r := range x.refs {
		out = append(out, r.Name)
	}
	sort.Strings(out)
	return out
}

// Created counts services created during this run.
func (x *ServiceIndex) Created() int {
	n := 0
	for _, r := range x.refs {
		if r.Created {
			n++
		}
	}
	return n
}

// Select returns the refs accepted by keep, in creation order.
func (x *ServiceIndex) Select(keep func(ServiceRef) bool) []ServiceRef {
	var out []ServiceRef
	for _, r := range x.refs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// PerGateway returns the per-gateway network services of apn in dc.
// Aggregate All-GGSNs services are never included: application services
// built on both would count every gateway twice.
func (x *ServiceIndex) PerGateway(apn, dc string) []ServiceRef {
	return x.Select(func(r ServiceRef) bool {
		return r.Kind == KindNetwork && !r.Aggregate && r.APN == apn && r.Datacenter == dc
	})
}
