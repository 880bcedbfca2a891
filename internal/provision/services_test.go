package provision

import (
	"context"
	"testing"

	"github.com/johngiles12345/cisco-iot-giles/internal/catalog"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/ng1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceNames(t *testing.T) {
	assert.Equal(t, "ATL-NWS-Onstar01-All-GGSNs", AggregateServiceName("ATL", "Onstar01"))
	assert.Equal(t, "PHX-NWS-Onstar02-PHX-GGSN1", GatewayServiceName("PHX", "Onstar02", "PHX-GGSN1"))
	assert.Equal(t, "SJC-AS-GTPv2-Onstar01", AppServiceName("SJC", "GTPv2", "Onstar01"))
}

func prepareOnstar(t *testing.T, f *fakeNG1, p models.CustomerProfile) *Plan {
	t.Helper()
	o, _ := newTestOnboarder(t, f, gtpApps())
	plan, err := o.Prepare(context.Background(), p)
	require.NoError(t, err)
	return plan
}

func TestAggregateNeverAppMember(t *testing.T) {
	f := onstarFake()
	// second gateway in Atlanta so the aggregate holds two interfaces
	f.interfaces["ATL-ISNG1"] = append(f.interfaces["ATL-ISNG1"], models.InterfaceConfig{
		InterfaceName: "if4", Alias: "ATL-GGSN2", InterfaceNumber: 4, Status: "Active",
	})
	f.locations["ATL-ISNG1"][4] = []string{"Onstar01"}

	p := onstarProfile()
	p.APNList = p.APNList[:1]
	p.DatacenterList = []string{"Atlanta"}
	plan := prepareOnstar(t, f, p)

	ctx := context.Background()
	synth := NewSynthesizer(f)
	nws, err := synth.EnsureNetworkServices(ctx, plan)
	require.NoError(t, err)
	assert.Len(t, f.services["ATL-NWS-Onstar01-All-GGSNs"].ServiceMembers, 2)

	aps, err := synth.EnsureApplicationServices(ctx, plan, nws, gtpApps())
	require.NoError(t, err)
	require.Equal(t, 3, aps.Len())

	for _, m := range f.services["ATL-AS-GTPv0-Onstar01"].ServiceMembers {
		ref, ok := nws.Get(m.NetworkDomainName)
		require.True(t, ok)
		assert.False(t, ref.Aggregate, "%s must not be an app member", ref.Name)
		assert.True(t, m.IsNetworkDomain)
	}
	assert.Len(t, f.services["ATL-AS-GTPv0-Onstar01"].ServiceMembers, 2)
}

func TestAppMemberPolicies(t *testing.T) {
	nws := []ServiceRef{
		{Name: "ATL-NWS-Onstar01-ATL-GGSN1", ID: 201},
		{Name: "ATL-NWS-Onstar01-ATL-GGSN2", ID: 202},
	}

	t.Run("multi member", func(t *testing.T) {
		app := catalog.App{Name: "DNS", Type: catalog.TypeMultiMember, MemberList: []string{"DNS", "DNS-TCP"}}
		members, err := appMembers(app, nws)
		require.NoError(t, err)
		require.Len(t, members, 4)
		assert.Equal(t, "DNS", members[0].ProtocolOrGroupCode)
		assert.Equal(t, "DNS-TCP", members[1].ProtocolOrGroupCode)
		assert.Equal(t, 202, members[3].NetworkDomainID)
		assert.False(t, members[0].IsProtocolGroup)
	})

	t.Run("message typed", func(t *testing.T) {
		app := catalog.App{Name: "GTPv2-Create-Session", Type: catalog.TypeSingle, Message: "GTPv2:32"}
		members, err := appMembers(app, nws[:1])
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "GTPv2", members[0].ProtocolOrGroupCode)
		assert.True(t, members[0].IsMessageType)
		assert.Equal(t, 32, members[0].MessageID)
	})

	t.Run("group code", func(t *testing.T) {
		app := catalog.App{Name: "Web", Type: catalog.TypeSingle, Code: "WEB", Group: true}
		members, err := appMembers(app, nws[:1])
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "WEB", members[0].ProtocolOrGroupCode)
		assert.True(t, members[0].IsProtocolGroup)
		assert.Equal(t, -1, members[0].InterfaceNumber)
	})

	t.Run("bad message id", func(t *testing.T) {
		app := catalog.App{Name: "Broken", Type: catalog.TypeSingle, Message: "GTPv2:x"}
		_, err := appMembers(app, nws)
		assert.Error(t, err)
	})
}

// racingNG1 reports a service as missing on the first lookups, as if a
// concurrent run created it between lookup and create.
type racingNG1 struct {
	*fakeNG1
	misses int
}

func (r *racingNG1) GetService(ctx context.Context, name string) (*models.ServiceDetail, error) {
	if r.misses > 0 {
		r.misses--
		return nil, ng1.ErrNotFound
	}
	return r.fakeNG1.GetService(ctx, name)
}

func TestEnsureServiceAlreadyExistsOnCreate(t *testing.T) {
	f := newFakeNG1()
	f.services["ATL-NWS-Onstar01-All-GGSNs"] = models.ServiceDetail{ServiceName: "ATL-NWS-Onstar01-All-GGSNs", ID: 77}
	s := NewSynthesizer(&racingNG1{fakeNG1: f, misses: 1})

	id, created, err := s.ensure(context.Background(), networkService("ATL-NWS-Onstar01-All-GGSNs", nil))
	require.NoError(t, err)
	assert.Equal(t, 77, id)
	assert.False(t, created)
	assert.Zero(t, f.serviceCreates)
}

func TestEnsureServiceUnresolvable(t *testing.T) {
	f := newFakeNG1()
	s := NewSynthesizer(&racingNG1{fakeNG1: f, misses: 2})
	f.serviceCreateErr["ghost"] = ng1.ErrAlreadyExists

	_, _, err := s.ensure(context.Background(), networkService("ghost", nil))
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ghost", re.Name)
	assert.ErrorIs(t, err, ng1.ErrNotFound)
}

func TestEnsureServiceLookupFailure(t *testing.T) {
	f := newFakeNG1()
	s := NewSynthesizer(&failingLookup{fakeNG1: f})

	_, _, err := s.ensure(context.Background(), networkService("x", nil))
	var apiErr *ng1.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Zero(t, f.serviceCreates)
}

type failingLookup struct{ *fakeNG1 }

func (failingLookup) GetService(context.Context, string) (*models.ServiceDetail, error) {
	return nil, &ng1.APIError{Method: "GET", Path: "/ng1api/ncm/services/x", Status: 401}
}
