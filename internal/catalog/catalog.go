// Package catalog loads the datacenter and application catalogs. Both are
// JSON files; when no path is configured the copies embedded in the binary
// are used.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

//go:embed defaults
var defaults embed.FS

// App member policies.
const (
	TypeSingle      = "single"
	TypeMultiMember = "multi_member"
)

// Dashboard branches an application's services are placed under.
const (
	DomainControl = "Control"
	DomainUser    = "User"
	DomainDNS     = "DNS"
)

// App is one application the customer is monitored for.
type App struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	MonitorType string   `json:"serviceDefMonitorType"`
	Message     string   `json:"message,omitempty"`     // "CODE:ID"
	MemberList  []string `json:"member_list,omitempty"` // sub-protocol codes for multi_member
	Code        string   `json:"code,omitempty"`        // protocol or group code; defaults to Name
	Group       bool     `json:"group,omitempty"`       // Code names a protocol group
	Domain      string   `json:"domain,omitempty"`      // Control, User or DNS; defaults to Control
}

// ProtocolCode is the code placed on single members.
func (a App) ProtocolCode() string {
	if a.Code != "" {
		return a.Code
	}
	return a.Name
}

// Branch is the dashboard branch of the app.
func (a App) Branch() string {
	if a.Domain == "" {
		return DomainControl
	}
	return a.Domain
}

// MessageType splits Message into its protocol code and numeric message id.
// ok is false when the app is not message-typed.
func (a App) MessageType() (code string, id int, ok bool, err error) {
	if a.Message == "" {
		return "", 0, false, nil
	}
	code, raw, found := strings.Cut(a.Message, ":")
	if !found || code == "" {
		return "", 0, false, fmt.Errorf("app %s: message %q is not CODE:ID", a.Name, a.Message)
	}
	id, err = strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", 0, false, fmt.Errorf("app %s: message id %q: %w", a.Name, raw, err)
	}
	return strings.TrimSpace(code), id, true, nil
}

func (a App) validate() error {
	if a.Name == "" {
		return fmt.Errorf("application without a name")
	}
	switch a.Type {
	case TypeSingle:
	case TypeMultiMember:
		if len(a.MemberList) == 0 {
			return fmt.Errorf("app %s: multi_member without member_list", a.Name)
		}
	default:
		return fmt.Errorf("app %s: unknown type %q", a.Name, a.Type)
	}
	switch a.Branch() {
	case DomainControl, DomainUser, DomainDNS:
	default:
		return fmt.Errorf("app %s: unknown domain %q", a.Name, a.Domain)
	}
	_, _, _, err := a.MessageType()
	return err
}

type datacenterFile struct {
	DataCenters []struct {
		Name string `json:"name"`
	} `json:"Data Centers"`
}

type applicationFile struct {
	Applications []App `json:"Applications"`
}

// Datacenters returns the datacenter names from path, or the embedded
// catalog when path is empty.
func Datacenters(path string) ([]string, error) {
	data, err := read(path, "defaults/datacenters.json")
	if err != nil {
		return nil, err
	}
	var f datacenterFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing datacenter catalog: %w", err)
	}
	names := make([]string, 0, len(f.DataCenters))
	for _, dc := range f.DataCenters {
		names = append(names, dc.Name)
	}
	return names, nil
}

// Applications returns the validated application catalog from path, or the
// embedded catalog when path is empty.
func Applications(path string) ([]App, error) {
	data, err := read(path, "defaults/applications.json")
	if err != nil {
		return nil, err
	}
	var f applicationFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing application catalog: %w", err)
	}
	for _, a := range f.Applications {
		if err := a.validate(); err != nil {
			return nil, err
		}
	}
	return f.Applications, nil
}

func read(path, fallback string) ([]byte, error) {
	if path == "" {
		return defaults.ReadFile(fallback)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return data, nil
}
