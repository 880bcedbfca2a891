package provision

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/johngiles12345/cisco-iot-giles/internal/catalog"
	"github.com/johngiles12345/cisco-iot-giles/internal/config"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/registry"
	"github.com/johngiles12345/cisco-iot-giles/internal/topology"
)

// Result is what one onboarding run produced or reused.
type Result struct {
	Plan         *Plan
	Network      *ServiceIndex
	Applications *ServiceIndex
	Tree         Tree
	Domains      []DomainResult
	RegistryPath string
}

// Onboarder runs the full provisioning flow for one customer.
type Onboarder struct {
	rc          *config.RunContext
	client      ResourceClient
	registry    *registry.Registry
	datacenters []string
	apps        []catalog.App
	now         func() time.Time
}

// NewOnboarder wires the engine. datacenters and apps are the loaded catalogs.
func NewOnboarder(rc *config.RunContext, client ResourceClient, reg *registry.Registry, datacenters []string, apps []catalog.App) *Onboarder {
	return &Onboarder{
		rc:          rc,
		client:      client,
		registry:    reg,
		datacenters: datacenters,
		apps:        apps,
		now:         time.Now,
	}
}

// Run validates the profile, provisions services and domains on nG1, and
// appends the customer to the registry. Nothing is written remotely before
// every validation has passed; the registry is only touched after every
// remote step succeeded. A failure midway leaves remote objects in place
// and a rerun converges through create-or-reuse.
func (o *Onboarder) Run(ctx context.Context, profile models.CustomerProfile) (*Result, error) {
	profile, err := normalized(profile)
	if err != nil {
		return nil, err
	}
	log.Printf("[onboard] run %s: customer %q (%s) from %s", o.rc.RunID(), profile.Name, profile.Type, o.rc.Operator())

	plan, err := o.Prepare(ctx, profile)
	if err != nil {
		return nil, err
	}
	profiles, _, err := o.registry.LoadAll()
	if err != nil {
		return nil, err
	}

	synth := NewSynthesizer(o.client)
	nws, err := synth.EnsureNetworkServices(ctx, plan)
	if err != nil {
		return nil, err
	}
	aps, err := synth.EnsureApplicationServices(ctx, plan, nws, o.apps)
	if err != nil {
		return nil, err
	}

	builder := NewTreeBuilder(o.client)
	tree, err := builder.BuildTree(ctx, plan, aps, o.apps)
	if err != nil {
		return nil, err
	}

	record := profile
	at := o.now().UTC()
	record.ProvisionedAt = &at
	record.ProvisionedBy = o.rc.Operator()
	if err := o.registry.AppendAndPersist(profiles, record); err != nil {
		return nil, fmt.Errorf("customer %q provisioned on nG1 but not recorded, rerun registry update: %w", profile.Name, err)
	}

	return &Result{
		Plan:         plan,
		Network:      nws,
		Applications: aps,
		Tree:         tree,
		Domains:      builder.Results(),
		RegistryPath: o.registry.CurrentPath(),
	}, nil
}

// Prepare performs every read-only step: profile checks, registry
// uniqueness, APN and datacenter existence, topology build and validity
// resolution. It issues no remote writes.
func (o *Onboarder) Prepare(ctx context.Context, profile models.CustomerProfile) (*Plan, error) {
	profile, err := normalized(profile)
	if err != nil {
		return nil, err
	}
	if _, idx, err := o.registry.LoadAll(); err != nil {
		return nil, err
	} else if idx.Has(profile.Name) {
		return nil, fmt.Errorf("%w: %q", registry.ErrDuplicateCustomer, profile.Name)
	}

	known := make(map[string]bool, len(o.datacenters))
	for _, dc := range o.datacenters {
		known[dc] = true
	}
	for _, dc := range profile.DatacenterList {
		if !known[dc] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDatacenter, dc)
		}
	}
	dcs, err := topology.Datacenters(profile.DatacenterList)
	if err != nil {
		return nil, err
	}

	apnIDs, err := o.apnIDs(ctx, profile.APNNames())
	if err != nil {
		return nil, err
	}

	topo, err := topology.Build(ctx, o.client, topology.Filter{AllowedTypes: o.rc.Config().AllowedDeviceTypes})
	if err != nil {
		return nil, err
	}
	validity := topology.Resolve(profile.APNNames(), dcs, topo)
	if err := validity.Check(profile.APNNames()); err != nil {
		return nil, err
	}
	for _, apn := range profile.APNNames() {
		log.Printf("[onboard] APN %s: datacenters %v, gateways %v", apn,
			validity[apn].DatacenterNames(), validity[apn].GatewayAliases())
	}

	return NewPlan(profile, apnIDs, dcs, validity, topo)
}

// apnIDs fetches the APN list once and returns the ids of the wanted names.
func (o *Onboarder) apnIDs(ctx context.Context, wanted []string) (map[string]int, error) {
	all, err := o.client.ListAPNs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing APNs: %w", err)
	}
	byName := make(map[string]int, len(all))
	for _, a := range all {
		byName[a.Name] = a.ID
	}
	ids := make(map[string]int, len(wanted))
	for _, name := range wanted {
		id, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (create it first)", ErrUnknownAPN, name)
		}
		ids[name] = id
	}
	return ids, nil
}

// normalized returns a canonical copy of p. The slices are detached so
// the caller's profile is left as it was.
func normalized(p models.CustomerProfile) (models.CustomerProfile, error) {
	p.APNList = append([]models.APNSelection(nil), p.APNList...)
	p.DatacenterList = append([]string(nil), p.DatacenterList...)
	err := p.Normalize()
	return p, err
}
