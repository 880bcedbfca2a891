// Package provision synthesizes the nG1 network services, application
// services and dashboard domains for a customer and drives their
// create-or-reuse against nG1. Every step is sequential: application
// services need network-service ids and domains need both.
package provision

import (
	"context"

	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/topology"
)

// ResourceClient is the nG1 surface the engine needs. Lookups of missing
// objects fail with ng1.ErrNotFound; creates of existing objects may fail
// with ng1.ErrAlreadyExists.
type ResourceClient interface {
	topology.Source

	ListAPNs(ctx context.Context) ([]models.APN, error)

	GetService(ctx context.Context, name string) (*models.ServiceDetail, error)
	CreateService(ctx context.Context, def models.ServiceDetail) error

	ListDomains(ctx context.Context) ([]models.DomainSummary, error)
	CreateDomain(ctx context.Context, def models.DomainDetail) error
}
