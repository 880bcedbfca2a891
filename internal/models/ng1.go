// Package models defines the nG1 wire types shared by the REST client, the
// provisioning engine and the emulator, plus the emulator's GORM records.
package models

// Fixed values of the nG1 data model.
const (
	StatusActive = "Active"

	// EnterpriseDomainID is the root of every nG1 domain tree.
	EnterpriseDomainID = 1

	ServiceTypeApplication = 1
	ServiceTypeNetwork     = 6

	// LocationKeyTypeAPN tags a network-service member with an APN id.
	LocationKeyTypeAPN = 4
	// LocationKindAPN is the locationKeyType reported on interface locations.
	LocationKindAPN = "APN"
)

// ── Devices & interfaces ──────────────────────────────────────────────────────

// DeviceConfig is one entry of GET /ng1api/ncm/devices.
type DeviceConfig struct {
	DeviceName      string `json:"deviceName"`
	DeviceIPAddress string `json:"deviceIPAddress"`
	Status          string `json:"status"`
	DeviceType      string `json:"deviceType"`
}

type DeviceList struct {
	DeviceConfigurations []DeviceConfig `json:"deviceConfigurations"`
}

// InterfaceConfig is one entry of GET /ng1api/ncm/devices/{name}/interfaces.
// Alias is the gateway name used throughout service naming.
type InterfaceConfig struct {
	InterfaceName   string `json:"interfaceName"`
	Alias           string `json:"alias"`
	InterfaceNumber int    `json:"interfaceNumber"`
	Status          string `json:"status"`
}

type InterfaceList struct {
	InterfaceConfigurations []InterfaceConfig `json:"interfaceConfigurations"`
}

// LocationKeyConfig is a location configured on an interface. Locations of
// kind APN are the interface's APN associations.
type LocationKeyConfig struct {
	LocationKeyType string `json:"locationKeyType"`
	LocationKeyName string `json:"locationKeyName"`
	LocationKeyID   int    `json:"locationKeyID"`
}

// LocationList is empty ({}) when the interface carries no locations.
type LocationList struct {
	LocationKeyConfigurations []LocationKeyConfig `json:"locationKeyConfigurations,omitempty"`
}

// ── APNs ──────────────────────────────────────────────────────────────────────

type APN struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type APNList struct {
	APNs []APN `json:"apns"`
}

// ── Services ──────────────────────────────────────────────────────────────────

type LocationKeyInfo struct {
	ASI1xType     string `json:"asi1xType"`
	IsLocationKey bool   `json:"isLocationKey"`
	KeyAttr       int    `json:"keyAttr"`
	KeyType       int    `json:"keyType"`
}

// ServiceMember covers both member shapes: interface members of network
// services and network-service references of application services.
type ServiceMember struct {
	EnableAlert     bool              `json:"enableAlert"`
	InterfaceNumber int               `json:"interfaceNumber"`
	IPAddress       string            `json:"ipAddress,omitempty"`
	LocationKeyInfo []LocationKeyInfo `json:"locationKeyInfo,omitempty"`
	MEAlias         string            `json:"meAlias,omitempty"`
	MEName          string            `json:"meName,omitempty"`

	IsNetworkDomain     bool   `json:"isNetworkDomain,omitempty"`
	MELID               int    `json:"melID,omitempty"`
	NetworkDomainID     int    `json:"networkDomainID,omitempty"`
	NetworkDomainName   string `json:"networkDomainName,omitempty"`
	ProtocolOrGroupCode string `json:"protocolOrGroupCode,omitempty"`
	IsProtocolGroup     bool   `json:"isProtocolGroup,omitempty"`
	IsMessageType       bool   `json:"isMessageType,omitempty"`
	MessageID           int    `json:"messageID,omitempty"`
}

type ServiceDetail struct {
	AlertProfileID        int             `json:"alertProfileID"`
	ExclusionListID       int             `json:"exclusionListID"`
	ID                    int             `json:"id"`
	IsAlarmEnabled        bool            `json:"isAlarmEnabled"`
	ServiceDefMonitorType string          `json:"serviceDefMonitorType,omitempty"`
	ServiceName           string          `json:"serviceName"`
	ServiceType           int             `json:"serviceType"`
	ServiceMembers        []ServiceMember `json:"serviceMembers"`
}

// ServiceEnvelope is the body of service create and detail calls.
type ServiceEnvelope struct {
	ServiceDetail []ServiceDetail `json:"serviceDetail"`
}

// ── Domains ───────────────────────────────────────────────────────────────────

// DomainMember references a service placed on a dashboard domain.
type DomainMember struct {
	ID                    int    `json:"id"`
	ServiceDefMonitorType string `json:"serviceDefMonitorType,omitempty"`
	ServiceName           string `json:"serviceName"`
	ServiceType           int    `json:"serviceType"`
}

type DomainDetail struct {
	DomainName    string         `json:"domainName"`
	ID            int            `json:"id"`
	ParentID      int            `json:"parentID"`
	DomainMembers []DomainMember `json:"domainMembers,omitempty"`
}

type DomainEnvelope struct {
	DomainDetail []DomainDetail `json:"domainDetail"`
}

// DomainSummary is one entry of the domain listing. nG1 reports the domain
// name under serviceName.
type DomainSummary struct {
	ServiceName string `json:"serviceName"`
	ID          int    `json:"id"`
	Parent      int    `json:"parent"`
}

type DomainList struct {
	Domains []DomainSummary `json:"domain"`
}
