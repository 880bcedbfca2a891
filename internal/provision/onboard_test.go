package provision

import (
	"context"
	"testing"

	"github.com/johngiles12345/cisco-iot-giles/internal/catalog"
	"github.com/johngiles12345/cisco-iot-giles/internal/config"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/ng1"
	"github.com/johngiles12345/cisco-iot-giles/internal/registry"
	"github.com/johngiles12345/cisco-iot-giles/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allDatacenters = []string{"Atlanta", "Phoenix", "San Jose", "Toronto", "Vancouver"}

func gtpApps() []catalog.App {
	var apps []catalog.App
	for _, n := range []string{"GTPv0", "GTPv1", "GTPv2"} {
		apps = append(apps, catalog.App{Name: n, Type: catalog.TypeSingle, MonitorType: "ADM_MONITOR_ENT_ADM", Domain: catalog.DomainControl})
	}
	return apps
}

func newTestOnboarder(t *testing.T, f ResourceClient, apps []catalog.App) (*Onboarder, *registry.Registry) {
	t.Helper()
	rc := config.NewRunContext(&config.Config{AllowedDeviceTypes: []string{"InfiniStreamNG"}})
	reg := registry.New(t.TempDir(), "cust")
	return NewOnboarder(rc, f, reg, allDatacenters, apps), reg
}

func onstarProfile() models.CustomerProfile {
	return models.CustomerProfile{
		Name:           "Acme",
		Type:           models.CustomerIOT,
		APNList:        []models.APNSelection{{Name: "Onstar01"}, {Name: "Onstar02"}},
		DatacenterList: []string{"Atlanta", "Phoenix"},
	}
}

func TestOnboardOnstarScenario(t *testing.T) {
	f := onstarFake()
	o, reg := newTestOnboarder(t, f, gtpApps())

	res, err := o.Run(context.Background(), onstarProfile())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ATL-NWS-Onstar01-ATL-GGSN1",
		"ATL-NWS-Onstar01-All-GGSNs",
		"ATL-NWS-Onstar02-ATL-GGSN1",
		"ATL-NWS-Onstar02-All-GGSNs",
		"PHX-NWS-Onstar01-All-GGSNs",
		"PHX-NWS-Onstar01-PHX-GGSN1",
		"PHX-NWS-Onstar02-All-GGSNs",
		"PHX-NWS-Onstar02-PHX-GGSN1",
	}, res.Network.Names())

	agg := f.services["PHX-NWS-Onstar02-All-GGSNs"]
	require.Len(t, agg.ServiceMembers, 1)
	m := agg.ServiceMembers[0]
	assert.Equal(t, "10.20.0.1", m.IPAddress)
	assert.Equal(t, 3, m.InterfaceNumber)
	assert.Equal(t, "PHX-GGSN1", m.MEAlias)
	assert.Equal(t, "if3", m.MEName)
	require.Len(t, m.LocationKeyInfo, 1)
	assert.Equal(t, 12, m.LocationKeyInfo[0].KeyAttr)
	assert.Equal(t, models.LocationKeyTypeAPN, m.LocationKeyInfo[0].KeyType)
	assert.Equal(t, models.ServiceTypeNetwork, agg.ServiceType)

	assert.Equal(t, 12, res.Applications.Len())
	as := f.services["ATL-AS-GTPv1-Onstar02"]
	require.Len(t, as.ServiceMembers, 1)
	assert.Equal(t, "ATL-NWS-Onstar02-ATL-GGSN1", as.ServiceMembers[0].NetworkDomainName)
	assert.Equal(t, res.Network.IDs()["ATL-NWS-Onstar02-ATL-GGSN1"], as.ServiceMembers[0].NetworkDomainID)
	assert.Equal(t, "GTPv1", as.ServiceMembers[0].ProtocolOrGroupCode)

	for _, apn := range []string{"Onstar01", "Onstar02"} {
		for _, dc := range []string{"Atlanta", "Phoenix"} {
			for _, app := range []string{"GTPv0", "GTPv1", "GTPv2"} {
				path := []string{"Cisco IOT", "APNs", "IOT APNs", "Acme", apn, "Control", dc, app}
				id, ok := f.domainID(path...)
				require.True(t, ok, "missing domain %v", path)
				assert.Equal(t, id, res.Tree["Cisco IOT/APNs/IOT APNs/Acme/"+apn+"/Control/"+dc+"/"+app])
			}
		}
		_, ok := f.domainID("Cisco IOT", "APNs", "IOT APNs", "Acme", apn, "User")
		assert.True(t, ok)
		_, ok = f.domainID("Cisco IOT", "APNs", "IOT APNs", "Acme", apn, "DNS")
		assert.True(t, ok)
	}
	assert.Equal(t, 28, f.domainCreates)

	gtp0, _ := f.domainID("Cisco IOT", "APNs", "IOT APNs", "Acme", "Onstar01", "Control", "Atlanta", "GTPv0")
	members := f.domainMembers[gtp0]
	require.Len(t, members, 1)
	assert.Equal(t, "ATL-AS-GTPv0-Onstar01", members[0].ServiceName)
	assert.Equal(t, models.ServiceTypeApplication, members[0].ServiceType)

	profiles, idx, err := reg.LoadAll()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.True(t, idx.Has("acme"))
	assert.NotNil(t, profiles[0].ProvisionedAt)
	assert.NotEmpty(t, profiles[0].ProvisionedBy)
}

func TestRerunIsIdempotent(t *testing.T) {
	f := onstarFake()
	ctx := context.Background()

	run := func() (map[string]int, map[string]int, Tree) {
		o, _ := newTestOnboarder(t, f, gtpApps())
		plan, err := o.Prepare(ctx, onstarProfile())
		require.NoError(t, err)
		synth := NewSynthesizer(f)
		nws, err := synth.EnsureNetworkServices(ctx, plan)
		require.NoError(t, err)
		aps, err := synth.EnsureApplicationServices(ctx, plan, nws, gtpApps())
		require.NoError(t, err)
		tree, err := NewTreeBuilder(f).BuildTree(ctx, plan, aps, gtpApps())
		require.NoError(t, err)
		return nws.IDs(), aps.IDs(), tree
	}

	nws1, aps1, tree1 := run()
	services, domains := f.serviceCreates, f.domainCreates

	nws2, aps2, tree2 := run()
	assert.Equal(t, nws1, nws2)
	assert.Equal(t, aps1, aps2)
	assert.Equal(t, tree1, tree2)
	assert.Equal(t, services, f.serviceCreates, "second run must not create services")
	assert.Equal(t, domains, f.domainCreates, "second run must not create domains")
}

func TestSharedLayersReusedAcrossCustomers(t *testing.T) {
	f := onstarFake()
	ctx := context.Background()
	o, _ := newTestOnboarder(t, f, gtpApps())

	_, err := o.Run(ctx, onstarProfile())
	require.NoError(t, err)

	second := models.CustomerProfile{
		Name:           "Beta",
		Type:           models.CustomerIOT,
		APNList:        []models.APNSelection{{Name: "Onstar01"}},
		DatacenterList: []string{"Atlanta"},
	}
	res, err := o.Run(ctx, second)
	require.NoError(t, err)

	for _, d := range res.Domains[:3] {
		assert.Equal(t, DomainExists, d.State, d.Path)
	}
	assert.Equal(t, DomainResolved, res.Domains[3].State)
	assert.Equal(t, "Cisco IOT/APNs/IOT APNs/Beta", res.Domains[3].Path)

	// Single APN: Control hangs directly off the customer.
	_, ok := res.Tree["Cisco IOT/APNs/IOT APNs/Beta/Control/Atlanta/GTPv2"]
	assert.True(t, ok)

	profiles, _, err := o.registry.LoadAll()
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestCustomerTypeSpellingSharesTypeLayer(t *testing.T) {
	f := onstarFake()
	ctx := context.Background()
	o, reg := newTestOnboarder(t, f, gtpApps())

	_, err := o.Run(ctx, onstarProfile())
	require.NoError(t, err)
	layers := f.domainCreates

	second := models.CustomerProfile{
		Name:           " Beta ",
		Type:           "iot",
		APNList:        []models.APNSelection{{Name: "Onstar01"}},
		DatacenterList: []string{"Atlanta"},
	}
	res, err := o.Run(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "Cisco IOT/APNs/IOT APNs/Beta", res.Domains[3].Path)

	_, ok := f.domainID("Cisco IOT", "APNs", "IOT APNs", "Beta")
	assert.True(t, ok)
	_, ok = f.domainID("Cisco IOT", "APNs", "iot APNs")
	assert.False(t, ok)
	assert.Greater(t, f.domainCreates, layers)
	assert.Equal(t, models.CustomerType("iot"), second.Type, "caller's profile left untouched")

	profiles, _, err := reg.LoadAll()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Beta", profiles[1].Name)
	assert.Equal(t, models.CustomerIOT, profiles[1].Type)
}

func TestOnboardRejectsBeforeAnyWrite(t *testing.T) {
	cases := map[string]struct {
		mutate func(*models.CustomerProfile)
		check  func(t *testing.T, err error)
	}{
		"unknown APN": {
			mutate: func(p *models.CustomerProfile) { p.APNList = []models.APNSelection{{Name: "Nope"}} },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrUnknownAPN) },
		},
		"datacenter not in catalog": {
			mutate: func(p *models.CustomerProfile) { p.DatacenterList = []string{"Berlin"} },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrUnknownDatacenter) },
		},
		"APN without gateways": {
			mutate: func(p *models.CustomerProfile) { p.APNList = []models.APNSelection{{Name: "Ring"}} },
			check: func(t *testing.T, err error) {
				var ee *topology.EmptyError
				require.ErrorAs(t, err, &ee)
				assert.Equal(t, "Ring", ee.APN)
			},
		},
		"datacenter without gateways for the APN": {
			mutate: func(p *models.CustomerProfile) { p.DatacenterList = []string{"Toronto"} },
			check: func(t *testing.T, err error) {
				var ee *topology.EmptyError
				assert.ErrorAs(t, err, &ee)
			},
		},
		"gateway outside valid set": {
			mutate: func(p *models.CustomerProfile) {
				p.APNList = []models.APNSelection{{Name: "Onstar01", Gateways: []string{"TOR-GGSN9"}}}
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, topology.ErrInvalidGateway) },
		},
		"datacenter listed twice": {
			mutate: func(p *models.CustomerProfile) { p.DatacenterList = []string{"Atlanta", " Atlanta"} },
			check:  func(t *testing.T, err error) { assert.ErrorContains(t, err, "listed twice") },
		},
		"unknown customer type": {
			mutate: func(p *models.CustomerProfile) { p.Type = "pager" },
			check:  func(t *testing.T, err error) { assert.ErrorContains(t, err, "unknown customer type") },
		},
		"missing name": {
			mutate: func(p *models.CustomerProfile) { p.Name = " " },
			check:  func(t *testing.T, err error) { assert.Error(t, err) },
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := onstarFake()
			o, reg := newTestOnboarder(t, f, gtpApps())
			p := onstarProfile()
			tc.mutate(&p)

			_, err := o.Run(context.Background(), p)
			tc.check(t, err)
			assert.Zero(t, f.serviceCreates)
			assert.Zero(t, f.domainCreates)
			assert.NoFileExists(t, reg.CurrentPath())
		})
	}
}

func TestOnboardRejectsRegisteredCustomer(t *testing.T) {
	f := onstarFake()
	o, reg := newTestOnboarder(t, f, gtpApps())
	existing := onstarProfile()
	existing.Name = "ACME"
	require.NoError(t, reg.AppendAndPersist(nil, existing))

	_, err := o.Run(context.Background(), onstarProfile())
	assert.ErrorIs(t, err, registry.ErrDuplicateCustomer)
	assert.Zero(t, f.serviceCreates)
}

func TestGatewaySelectionNarrowsPlacements(t *testing.T) {
	f := onstarFake()
	o, _ := newTestOnboarder(t, f, gtpApps())
	p := onstarProfile()
	p.APNList = []models.APNSelection{{Name: "Onstar01", Gateways: []string{"ATL-GGSN1"}}}

	plan, err := o.Prepare(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, plan.Placements, 1)
	assert.Equal(t, "Atlanta", plan.Placements[0].Datacenter.Name)
	assert.Equal(t, 11, plan.Placements[0].APNID)
}

func TestServiceCreateFailureAborts(t *testing.T) {
	f := onstarFake()
	f.serviceCreateErr["ATL-NWS-Onstar01-ATL-GGSN1"] = &ng1.APIError{Method: "POST", Path: "/ng1api/ncm/services", Status: 500, Body: "invalid member"}
	o, reg := newTestOnboarder(t, f, gtpApps())

	_, err := o.Run(context.Background(), onstarProfile())
	var ce *CreateError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ATL-NWS-Onstar01-ATL-GGSN1", ce.Name)
	assert.Contains(t, err.Error(), "invalid member")

	assert.Equal(t, 1, f.serviceCreates, "the aggregate created before the failure stays")
	assert.Zero(t, f.domainCreates)
	assert.NoFileExists(t, reg.CurrentPath())
}
