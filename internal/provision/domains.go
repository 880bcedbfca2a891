package provision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/johngiles12345/cisco-iot-giles/internal/catalog"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/ng1"
)

// Fixed upper layers of the dashboard tree, shared by all customers.
const (
	DomainCiscoIOT = "Cisco IOT"
	DomainAPNs     = "APNs"
)

// DomainState is where a domain ended up in the create-or-reuse cycle:
// Pending -> Exists, or Pending -> Created -> Resolved.
type DomainState int

const (
	DomainPending DomainState = iota
	DomainExists
	DomainCreated
	DomainResolved
)

func (s DomainState) String() string {
	switch s {
	case DomainExists:
		return "exists"
	case DomainCreated:
		return "created"
	case DomainResolved:
		return "resolved"
	}
	return "pending"
}

// DomainResult records one EnsureDomain call.
type DomainResult struct {
	Path     string
	Name     string
	ID       int
	ParentID int
	State    DomainState
}

// TreeBuilder creates or reuses domains. A domain is identified by its
// (name, parent) pair: "Control" recurs under every APN.
type TreeBuilder struct {
	client  ResourceClient
	results []DomainResult
}

func NewTreeBuilder(client ResourceClient) *TreeBuilder {
	return &TreeBuilder{client: client}
}

// Results lists every domain touched, in call order.
func (b *TreeBuilder) Results() []DomainResult { return b.results }

// EnsureDomain returns the id of the domain (name, parentID), creating it
// with members when absent. Members are not re-applied to an existing domain.
func (b *TreeBuilder) EnsureDomain(ctx context.Context, name string, parentID int, members []models.DomainMember) (int, error) {
	res, err := b.ensure(ctx, name, parentID, members)
	if err != nil {
		return 0, err
	}
	b.results = append(b.results, res)
	return res.ID, nil
}

func (b *TreeBuilder) ensure(ctx context.Context, name string, parentID int, members []models.DomainMember) (DomainResult, error) {
	res := DomainResult{Name: name, ParentID: parentID, State: DomainPending}

	matches, err := b.find(ctx, name, parentID)
	if err != nil {
		return res, err
	}
	switch len(matches) {
	case 0:
	case 1:
		res.ID, res.State = matches[0].ID, DomainExists
		log.Printf("[domains] %q under %d exists (id=%d), reusing", name, parentID, res.ID)
		return res, nil
	default:
		return res, &ResolutionError{Kind: "domain", Name: name, ParentID: parentID, Matches: len(matches)}
	}

	def := models.DomainDetail{DomainName: name, ID: -1, ParentID: parentID, DomainMembers: members}
	if err := b.client.CreateDomain(ctx, def); err != nil {
		if !errors.Is(err, ng1.ErrAlreadyExists) {
			return res, &CreateError{Kind: "domain", Name: name, Err: err}
		}
		log.Printf("[domains] %q under %d already exists on create", name, parentID)
	}
	res.State = DomainCreated

	matches, err = b.find(ctx, name, parentID)
	if err != nil {
		return res, err
	}
	if len(matches) != 1 {
		return res, &ResolutionError{Kind: "domain", Name: name, ParentID: parentID, Matches: len(matches)}
	}
	res.ID, res.State = matches[0].ID, DomainResolved
	log.Printf("[domains] created %q under %d (id=%d, %d members)", name, parentID, res.ID, len(members))
	return res, nil
}

func (b *TreeBuilder) find(ctx context.Context, name string, parentID int) ([]models.DomainSummary, error) {
	all, err := b.client.ListDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	var out []models.DomainSummary
	for _, d := range all {
		if d.ServiceName == name && d.Parent == parentID {
			out = append(out, d)
		}
	}
	return out, nil
}

// Tree maps slash-joined domain paths below Enterprise to ids, e.g.
// "Cisco IOT/APNs/IOT APNs/Acme/Control/Atlanta/GTPv1".
type Tree map[string]int

// BuildTree lays out the customer's dashboard:
//
//	Cisco IOT / APNs / {type} APNs / {customer} / [{apn} /]
//	    Control / {datacenter} / {control app}   (app services as members)
//	    User                                     (User-branch app services)
//	    DNS                                      (DNS-branch app services)
//
// The per-APN level only appears when the customer has more than one APN.
func (b *TreeBuilder) BuildTree(ctx context.Context, plan *Plan, appServices *ServiceIndex, apps []catalog.App) (Tree, error) {
	tree := make(Tree)
	start := len(b.results)
	ensure := func(parentPath string, parentID int, name string, members []models.DomainMember) (string, int, error) {
		path := name
		if parentPath != "" {
			path = parentPath + "/" + name
		}
		id, err := b.EnsureDomain(ctx, name, parentID, members)
		if err != nil {
			return "", 0, err
		}
		b.results[len(b.results)-1].Path = path
		tree[path] = id
		return path, id, nil
	}

	profile := plan.Customer
	p, id, err := ensure("", models.EnterpriseDomainID, DomainCiscoIOT, nil)
	if err != nil {
		return nil, err
	}
	if p, id, err = ensure(p, id, DomainAPNs, nil); err != nil {
		return nil, err
	}
	if p, id, err = ensure(p, id, profile.Type.Label()+" APNs", nil); err != nil {
		return nil, err
	}
	custPath, custID, err := ensure(p, id, profile.Name, nil)
	if err != nil {
		return nil, err
	}

	apnNames := profile.APNNames()
	for _, apn := range apnNames {
		apnPath, apnID := custPath, custID
		if len(apnNames) > 1 {
			if apnPath, apnID, err = ensure(custPath, custID, apn, nil); err != nil {
				return nil, err
			}
		}

		ctlPath, ctlID, err := ensure(apnPath, apnID, catalog.DomainControl, nil)
		if err != nil {
			return nil, err
		}
		for _, pl := range plan.PlacementsFor(apn) {
			dcPath, dcID, err := ensure(ctlPath, ctlID, pl.Datacenter.Name, nil)
			if err != nil {
				return nil, err
			}
			for _, app := range apps {
				if app.Branch() != catalog.DomainControl {
					continue
				}
				refs := appServices.Select(func(r ServiceRef) bool {
					return r.Kind == KindApplication && r.APN == apn && r.Datacenter == pl.Datacenter.Name && r.App == app.Name
				})
				if len(refs) == 0 {
					continue
				}
				if _, _, err := ensure(dcPath, dcID, app.Name, domainMembers(refs)); err != nil {
					return nil, err
				}
			}
		}

		for _, branch := range []string{catalog.DomainUser, catalog.DomainDNS} {
			refs := appServices.Select(func(r ServiceRef) bool {
				return r.Kind == KindApplication && r.APN == apn && r.Branch == branch
			})
			if _, _, err := ensure(apnPath, apnID, branch, domainMembers(refs)); err != nil {
				return nil, err
			}
		}
	}

	log.Printf("[domains] tree for %s: %d domains (%s)", profile.Name, len(tree), summarize(b.results[start:]))
	return tree, nil
}

func domainMembers(refs []ServiceRef) []models.DomainMember {
	if len(refs) == 0 {
		return nil
	}
	out := make([]models.DomainMember, 0, len(refs))
	for _, r := range refs {
		out = append(out, models.DomainMember{
			ID:                    r.ID,
			ServiceDefMonitorType: r.MonitorType,
			ServiceName:           r.Name,
			ServiceType:           models.ServiceTypeApplication,
		})
	}
	return out
}

func summarize(results []DomainResult) string {
	counts := map[DomainState]int{}
	for _, r := range results {
		counts[r.State]++
	}
	parts := []string{
		fmt.Sprintf("%d reused", counts[DomainExists]),
		fmt.Sprintf("%d created", counts[DomainResolved]),
	}
	return strings.Join(parts, ", ")
}
