package topology

import (
	"errors"
	"fmt"
	"sort"
)

// Gateway is an interface that can carry a given APN, tagged with the
// datacenter its device belongs to.
type Gateway struct {
	Alias      string
	Interface  InterfaceID
	Device     DeviceID
	Datacenter string
}

// APNValidity holds the datacenters and gateways that can carry one APN.
type APNValidity struct {
	Datacenters map[string]struct{}
	Gateways    map[string]struct{}

	list []Gateway
}

func newAPNValidity() *APNValidity {
	return &APNValidity{
		Datacenters: make(map[string]struct{}),
		Gateways:    make(map[string]struct{}),
	}
}

// Empty reports whether no datacenter can carry the APN.
func (a *APNValidity) Empty() bool {
	return a == nil || len(a.Datacenters) == 0 || len(a.Gateways) == 0
}

// HasDatacenter reports whether dc is valid for the APN.
func (a *APNValidity) HasDatacenter(dc string) bool {
	if a == nil {
		return false
	}
	_, ok := a.Datacenters[dc]
	return ok
}

// DatacenterNames returns the valid datacenters sorted by name.
func (a *APNValidity) DatacenterNames() []string {
	return sortedKeys(a.Datacenters)
}

// GatewayAliases returns the valid gateway aliases sorted.
func (a *APNValidity) GatewayAliases() []string {
	return sortedKeys(a.Gateways)
}

// Validity maps each requested APN to what can carry it.
type Validity map[string]*APNValidity

// Resolve computes, for every requested APN, the datacenters that have at
// least one device with an interface associated to the APN, and those
// interfaces' aliases. Gateways keep datacenter/device/interface order.
func Resolve(apns []string, dcs []Datacenter, topo *Topology) Validity {
	v := make(Validity, len(apns))
	for _, apn := range apns {
		av := newAPNValidity()
		seen := make(map[InterfaceID]bool)
		for _, dc := range dcs {
			for _, dev := range topo.DevicesIn(dc.Acronym) {
				for _, ifc := range topo.InterfacesOf(dev.ID) {
					if !topo.Associated(ifc.ID, apn) || seen[ifc.ID] {
						continue
					}
					seen[ifc.ID] = true
					av.Gateways[ifc.Alias] = struct{}{}
					av.Datacenters[dc.Name] = struct{}{}
					av.list = append(av.list, Gateway{
						Alias:      ifc.Alias,
						Interface:  ifc.ID,
						Device:     dev.ID,
						Datacenter: dc.Name,
					})
				}
			}
		}
		v[apn] = av
	}
	return v
}

// EmptyError reports an APN with no eligible deployment target.
type EmptyError struct {
	APN         string
	Datacenters []string // scope that was searched, if narrowed
}

func (e *EmptyError) Error() string {
	if len(e.Datacenters) > 0 {
		return fmt.Sprintf("APN %q has no valid gateway in datacenters %v", e.APN, e.Datacenters)
	}
	return fmt.Sprintf("APN %q has no valid datacenter or gateway", e.APN)
}

// ErrInvalidGateway is returned when a selected gateway cannot carry the APN.
var ErrInvalidGateway = errors.New("gateway not valid for APN")

// Check fails with *EmptyError for the first APN that resolved to nothing.
func (v Validity) Check(apns []string) error {
	for _, apn := range apns {
		if v[apn].Empty() {
			return &EmptyError{APN: apn}
		}
	}
	return nil
}

// GatewaysIn returns the valid gateways for apn located in datacenter dc.
func (v Validity) GatewaysIn(apn, dc string) []Gateway {
	av := v[apn]
	if av == nil {
		return nil
	}
	var out []Gateway
	for _, g := range av.list {
		if g.Datacenter == dc {
			out = append(out, g)
		}
	}
	return out
}

// Select narrows the valid gateways for apn to the datacenters in dcs and,
// when wanted is non-empty, to the named aliases. Naming a gateway that is
// not valid for the APN in those datacenters is an error, as is ending up
// with nothing.
func (v Validity) Select(apn string, dcs []string, wanted []string) ([]Gateway, error) {
	var scoped []Gateway
	for _, dc := range dcs {
		scoped = append(scoped, v.GatewaysIn(apn, dc)...)
	}

	if len(wanted) > 0 {
		byAlias := make(map[string]Gateway, len(scoped))
		for _, g := range scoped {
			byAlias[g.Alias] = g
		}
		want := make(map[string]bool, len(wanted))
		for _, w := range wanted {
			if _, ok := byAlias[w]; !ok {
				return nil, fmt.Errorf("%w: %q for APN %q in %v", ErrInvalidGateway, w, apn, dcs)
			}
			want[w] = true
		}
		filtered := scoped[:0:0]
		for _, g := range scoped {
			if want[g.Alias] {
				filtered = append(filtered, g)
			}
		}
		scoped = filtered
	}

	if len(scoped) == 0 {
		return nil, &EmptyError{APN: apn, Datacenters: dcs}
	}
	return scoped, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
