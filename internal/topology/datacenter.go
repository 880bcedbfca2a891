package topology

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDatacenter is returned for a datacenter name no acronym rule matches.
var ErrUnknownDatacenter = errors.New("unknown datacenter")

// acronyms maps datacenter name prefixes to the three-letter site code used
// in device names and service names.
var acronyms = []struct {
	prefix  string
	acronym string
}{
	{"Atl", "ATL"},
	{"Pho", "PHX"},
	{"San", "SJC"},
	{"Tor", "TOR"},
	{"Van", "VAN"},
}

// Datacenter is a site the customer can be deployed to.
type Datacenter struct {
	Name    string
	Acronym string
}

// TranslateAcronym returns the site code for a datacenter name. There is no
// fallback: an unmatched prefix is an error.
func TranslateAcronym(name string) (string, error) {
	for _, a := range acronyms {
		if strings.HasPrefix(name, a.prefix) {
			return a.acronym, nil
		}
	}
	return "", fmt.Errorf("%w: %q has no site acronym", ErrUnknownDatacenter, name)
}

// NewDatacenter resolves the acronym for name.
func NewDatacenter(name string) (Datacenter, error) {
	acr, err := TranslateAcronym(name)
	if err != nil {
		return Datacenter{}, err
	}
	return Datacenter{Name: name, Acronym: acr}, nil
}

// Datacenters resolves every name, failing on the first unknown one.
func Datacenters(names []string) ([]Datacenter, error) {
	out := make([]Datacenter, 0, len(names))
	for _, n := range names {
		dc, err := NewDatacenter(n)
		if err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, nil
}
