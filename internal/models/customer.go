package models

import (
	"fmt"
	"strings"
	"time"
)

// CustomerType selects the "{type} APNs" branch a customer lives under.
type CustomerType string

const (
	CustomerIOT          CustomerType = "IOT"
	CustomerConnectedCar CustomerType = "ConnectedCar"
)

// Label is the human form used in domain names. Any accepted spelling
// maps to the same label.
func (t CustomerType) Label() string {
	if c, err := ParseCustomerType(string(t)); err == nil {
		t = c
	}
	if t == CustomerConnectedCar {
		return "Connected Car"
	}
	return string(t)
}

// ParseCustomerType accepts the registry spelling, the label, or the menu
// numbers 1 and 2.
func ParseCustomerType(s string) (CustomerType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "iot", "1":
		return CustomerIOT, nil
	case "connectedcar", "2":
		return CustomerConnectedCar, nil
	}
	return "", fmt.Errorf("unknown customer type %q (use IOT or ConnectedCar)", s)
}

// APNSelection is one APN of a customer with the gateways chosen for it.
// An empty Gateways list means every valid gateway.
type APNSelection struct {
	Name     string   `json:"name"`
	Gateways []string `json:"gateways"`
}

// CustomerProfile is one entry of the customer registry.
type CustomerProfile struct {
	Name           string         `json:"name"`
	Type           CustomerType   `json:"type"`
	APNList        []APNSelection `json:"apnList"`
	DatacenterList []string       `json:"datacenterList"`

	ProvisionedAt *time.Time `json:"provisionedAt,omitempty"`
	ProvisionedBy string     `json:"provisionedBy,omitempty"`
}

// APNNames returns the APN names in profile order.
func (p CustomerProfile) APNNames() []string {
	names := make([]string, 0, len(p.APNList))
	for _, a := range p.APNList {
		names = append(names, a.Name)
	}
	return names
}

// Normalize trims names and rewrites Type to its canonical spelling, then
// validates. Profiles from flags and files pass through it before a run,
// so "iot" and "IOT" land under the same domain layer.
func (p *CustomerProfile) Normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	for i := range p.APNList {
		p.APNList[i].Name = strings.TrimSpace(p.APNList[i].Name)
	}
	for i := range p.DatacenterList {
		p.DatacenterList[i] = strings.TrimSpace(p.DatacenterList[i])
	}
	typ, err := ParseCustomerType(string(p.Type))
	if err != nil {
		return err
	}
	p.Type = typ
	return p.Validate()
}

// Validate checks the profile is complete enough to provision.
func (p CustomerProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("customer name is required")
	}
	if _, err := ParseCustomerType(string(p.Type)); err != nil {
		return err
	}
	if len(p.APNList) == 0 {
		return fmt.Errorf("customer %q: at least one APN is required", p.Name)
	}
	if len(p.DatacenterList) == 0 {
		return fmt.Errorf("customer %q: at least one datacenter is required", p.Name)
	}
	seen := map[string]bool{}
	for _, a := range p.APNList {
		if a.Name == "" {
			return fmt.Errorf("customer %q: empty APN name", p.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("customer %q: APN %q listed twice", p.Name, a.Name)
		}
		seen[a.Name] = true
	}
	dcs := map[string]bool{}
	for _, dc := range p.DatacenterList {
		if dc == "" {
			return fmt.Errorf("customer %q: empty datacenter name", p.Name)
		}
		if dcs[dc] {
			return fmt.Errorf("customer %q: datacenter %q listed twice", p.Name, dc)
		}
		dcs[dc] = true
	}
	return nil
}
