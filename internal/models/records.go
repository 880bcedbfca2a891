package models

import (
	"gorm.io/gorm"
)

// The records below back the nG1 emulator. They mirror only the parts of the
// vendor data model the provisioning engine touches.

// DeviceRecord is a monitored device (InfiniStream or vSTREAM appliance).
type DeviceRecord struct {
	gorm.Model

	Name      string `gorm:"uniqueIndex;not null" json:"deviceName"`
	IPAddress string `gorm:"not null" json:"deviceIPAddress"`
	Status    string `gorm:"default:'Active'" json:"status"`
	Type      string `json:"deviceType"`
}

// InterfaceRecord belongs to exactly one device, keyed by (DeviceName, Number).
type InterfaceRecord struct {
	gorm.Model

	DeviceName string `gorm:"index:idx_iface,unique;not null" json:"deviceName"`
	Number     int    `gorm:"index:idx_iface,unique" json:"interfaceNumber"`
	Name       string `json:"interfaceName"`
	Alias      string `gorm:"index" json:"alias"`
	Status     string `gorm:"default:'Active'" json:"status"`
}

// LocationRecord associates an interface with an APN location.
type LocationRecord struct {
	gorm.Model

	DeviceName      string `gorm:"index;not null"`
	InterfaceNumber int    `gorm:"index"`
	APN             string `gorm:"not null"`
}

type APNRecord struct {
	gorm.Model

	Name string `gorm:"uniqueIndex;not null"`
}

// ServiceRecord stores the full service definition as JSON.
type ServiceRecord struct {
	gorm.Model

	Name   string `gorm:"uniqueIndex;not null"`
	Type   int    `gorm:"index"`
	Detail string `gorm:"type:text"`
}

// DomainRecord is a node of the dashboard tree. Names repeat under
// different parents, so only (Name, ParentID) is unique.
type DomainRecord struct {
	gorm.Model

	Name     string `gorm:"index:idx_domain,unique;not null"`
	ParentID uint   `gorm:"index:idx_domain,unique"`
	Members  string `gorm:"type:text"`
}
