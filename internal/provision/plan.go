package provision

import (
	"fmt"
	"log"

	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/topology"
)

// Placement is one (APN, datacenter) pair the customer is deployed to,
// with the gateways selected for it.
type Placement struct {
	APN        string
	APNID      int
	Datacenter topology.Datacenter
	Gateways   []topology.Gateway
}

// Plan is everything service and domain synthesis needs for one customer.
// Placements are ordered by the profile's APN order, then datacenter order.
type Plan struct {
	Customer   models.CustomerProfile
	Topology   *topology.Topology
	Placements []Placement
}

// PlacementsFor returns the placements of one APN.
func (p *Plan) PlacementsFor(apn string) []Placement {
	var out []Placement
	for _, pl := range p.Placements {
		if pl.APN == apn {
			out = append(out, pl)
		}
	}
	return out
}

// NewPlan intersects the customer's selections with what the topology can
// carry. Selected datacenters that are not valid for an APN are skipped;
// an APN left with no placement fails with *topology.EmptyError.
func NewPlan(profile models.CustomerProfile, apnIDs map[string]int, dcs []topology.Datacenter,
	validity topology.Validity, topo *topology.Topology) (*Plan, error) {

	plan := &Plan{Customer: profile, Topology: topo}
	for _, sel := range profile.APNList {
		id, ok := apnIDs[sel.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAPN, sel.Name)
		}
		av := validity[sel.Name]

		var scope []string
		for _, dc := range dcs {
			if !av.HasDatacenter(dc.Name) {
				log.Printf("[plan] APN %s has no gateway in %s; skipping datacenter", sel.Name, dc.Name)
				continue
			}
			scope = append(scope, dc.Name)
		}
		if len(scope) == 0 {
			return nil, &topology.EmptyError{APN: sel.Name, Datacenters: profile.DatacenterList}
		}

		gws, err := validity.Select(sel.Name, scope, sel.Gateways)
		if err != nil {
			return nil, err
		}

		for _, dc := range dcs {
			var inDC []topology.Gateway
			for _, g := range gws {
				if g.Datacenter == dc.Name {
					inDC = append(inDC, g)
				}
			}
			if len(inDC) == 0 {
				continue
			}
			plan.Placements = append(plan.Placements, Placement{
				APN:        sel.Name,
				APNID:      id,
				Datacenter: dc,
				Gateways:   inDC,
			})
		}
	}
	return plan, nil
}
