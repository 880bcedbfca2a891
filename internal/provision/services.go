package provision

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/johngiles12345/cisco-iot-giles/internal/catalog"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/ng1"
	"github.com/johngiles12345/cisco-iot-giles/internal/topology"
)

// Service names. Each name is unique within its resource class on nG1 and
// doubles as the reuse key.

func AggregateServiceName(acronym, apn string) string {
	return fmt.Sprintf("%s-NWS-%s-All-GGSNs", acronym, apn)
}

func GatewayServiceName(acronym, apn, gateway string) string {
	return fmt.Sprintf("%s-NWS-%s-%s", acronym, apn, gateway)
}

func AppServiceName(acronym, app, apn string) string {
	return fmt.Sprintf("%s-AS-%s-%s", acronym, app, apn)
}

// Synthesizer builds service definitions and converges them onto nG1.
type Synthesizer struct {
	client ResourceClient
}

func NewSynthesizer(client ResourceClient) *Synthesizer {
	return &Synthesizer{client: client}
}

// EnsureNetworkServices creates or reuses, for every placement, the
// aggregate All-GGSNs service and then one service per gateway.
func (s *Synthesizer) EnsureNetworkServices(ctx context.Context, plan *Plan) (*ServiceIndex, error) {
	idx := newServiceIndex()
	for _, pl := range plan.Placements {
		acr := pl.Datacenter.Acronym

		members := make([]models.ServiceMember, 0, len(pl.Gateways))
		for _, gw := range pl.Gateways {
			members = append(members, interfaceMember(plan.Topology, gw, pl.APNID))
		}
		name := AggregateServiceName(acr, pl.APN)
		id, created, err := s.ensure(ctx, networkService(name, members))
		if err != nil {
			return nil, err
		}
		idx.add(ServiceRef{Name: name, ID: id, Kind: KindNetwork, APN: pl.APN,
			Datacenter: pl.Datacenter.Name, Aggregate: true, Created: created})

		for _, gw := range pl.Gateways {
			name := GatewayServiceName(acr, pl.APN, gw.Alias)
			def := networkService(name, []models.ServiceMember{interfaceMember(plan.Topology, gw, pl.APNID)})
			id, created, err := s.ensure(ctx, def)
			if err != nil {
				return nil, err
			}
			idx.add(ServiceRef{Name: name, ID: id, Kind: KindNetwork, APN: pl.APN,
				Datacenter: pl.Datacenter.Name, Gateway: gw.Alias, Created: created})
		}
	}
	log.Printf("[services] network services: %d total, %d created", idx.Len(), idx.Created())
	return idx, nil
}

// EnsureApplicationServices creates or reuses one service per placement and
// app, whose members point at the placement's per-gateway network services.
func (s *Synthesizer) EnsureApplicationServices(ctx context.Context, plan *Plan, networks *ServiceIndex, apps []catalog.App) (*ServiceIndex, error) {
	idx := newServiceIndex()
	for _, pl := range plan.Placements {
		nws := networks.PerGateway(pl.APN, pl.Datacenter.Name)
		if len(nws) == 0 {
			log.Printf("[services] no per-gateway network services for %s in %s; skipping apps", pl.APN, pl.Datacenter.Name)
			continue
		}
		for _, app := range apps {
			members, err := appMembers(app, nws)
			if err != nil {
				return nil, err
			}
			name := AppServiceName(pl.Datacenter.Acronym, app.Name, pl.APN)
			id, created, err := s.ensure(ctx, appService(name, app.MonitorType, members))
			if err != nil {
				return nil, err
			}
			idx.add(ServiceRef{Name: name, ID: id, Kind: KindApplication, APN: pl.APN,
				Datacenter: pl.Datacenter.Name, App: app.Name, Branch: app.Branch(),
				MonitorType: app.MonitorType, Created: created})
		}
	}
	log.Printf("[services] application services: %d total, %d created", idx.Len(), idx.Created())
	return idx, nil
}

// ensure returns the id of the service named in def, creating it first if
// nG1 does not know the name. nG1 does not return ids from create, so the
// service is read back.
func (s *Synthesizer) ensure(ctx context.Context, def models.ServiceDetail) (int, bool, error) {
	name := def.ServiceName
	existing, err := s.client.GetService(ctx, name)
	switch {
	case err == nil:
		log.Printf("[services] %s exists (id=%d), reusing", name, existing.ID)
		return existing.ID, false, nil
	case !errors.Is(err, ng1.ErrNotFound):
		return 0, false, fmt.Errorf("looking up service %q: %w", name, err)
	}

	created := true
	if err := s.client.CreateService(ctx, def); err != nil {
		if !errors.Is(err, ng1.ErrAlreadyExists) {
			return 0, false, &CreateError{Kind: "service", Name: name, Err: err}
		}
		log.Printf("[services] %s already exists on create, treating as converged", name)
		created = false
	}

	fresh, err := s.client.GetService(ctx, name)
	if err != nil {
		return 0, false, &ResolutionError{Kind: "service", Name: name, Err: err}
	}
	if created {
		log.Printf("[services] created %s (id=%d)", name, fresh.ID)
	}
	return fresh.ID, created, nil
}

func networkService(name string, members []models.ServiceMember) models.ServiceDetail {
	return models.ServiceDetail{
		AlertProfileID:  2,
		ExclusionListID: -1,
		ID:              -1,
		ServiceName:     name,
		ServiceType:     models.ServiceTypeNetwork,
		ServiceMembers:  members,
	}
}

func appService(name, monitorType string, members []models.ServiceMember) models.ServiceDetail {
	return models.ServiceDetail{
		AlertProfileID:        1,
		ExclusionListID:       -1,
		ID:                    -1,
		ServiceDefMonitorType: monitorType,
		ServiceName:           name,
		ServiceType:           models.ServiceTypeApplication,
		ServiceMembers:        members,
	}
}

// interfaceMember places one gateway interface in a network service,
// filtered to the APN by a location key.
func interfaceMember(topo *topology.Topology, gw topology.Gateway, apnID int) models.ServiceMember {
	ifc := topo.Interface(gw.Interface)
	dev := topo.Device(gw.Device)
	return models.ServiceMember{
		InterfaceNumber: ifc.Number,
		IPAddress:       dev.IPAddress,
		LocationKeyInfo: []models.LocationKeyInfo{{
			IsLocationKey: true,
			KeyAttr:       apnID,
			KeyType:       models.LocationKeyTypeAPN,
		}},
		MEAlias: ifc.Alias,
		MEName:  ifc.Name,
	}
}

// appMembers expands an app over the given network services. Multi-member
// apps get one member per sub-protocol, message-typed apps carry the parsed
// message id, everything else carries its protocol or group code.
func appMembers(app catalog.App, nws []ServiceRef) ([]models.ServiceMember, error) {
	msgCode, msgID, isMsg, err := app.MessageType()
	if err != nil {
		return nil, err
	}

	var out []models.ServiceMember
	for _, ns := range nws {
		base := models.ServiceMember{
			InterfaceNumber:   -1,
			IsNetworkDomain:   true,
			MELID:             -1,
			NetworkDomainID:   ns.ID,
			NetworkDomainName: ns.Name,
		}
		switch {
		case app.Type == catalog.TypeMultiMember:
			for _, code := range app.MemberList {
				m := base
				m.ProtocolOrGroupCode = code
				out = append(out, m)
			}
		case isMsg:
			m := base
			m.ProtocolOrGroupCode = msgCode
			m.IsMessageType = true
			m.MessageID = msgID
			out = append(out, m)
		default:
			m := base
			m.ProtocolOrGroupCode = app.ProtocolCode()
			m.IsProtocolGroup = app.Group
			out = append(out, m)
		}
	}
	return out, nil
}
