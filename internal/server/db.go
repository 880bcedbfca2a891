// Package server is a stateful emulator of the nG1 REST endpoints the
// onboarding engine uses. State lives in SQLite through GORM so a dry run
// can be inspected and repeated.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrConflict is returned when a service name or (domain, parent) pair is taken.
	ErrConflict = errors.New("already exists")
	// ErrNoParent is returned when a domain names a parent that does not exist.
	ErrNoParent = errors.New("parent domain does not exist")
)

// RootDomainName is the domain every tree hangs off; it always has id 1.
const RootDomainName = "Enterprise"

// Store is the emulator database.
type Store struct {
	db *gorm.DB
}

// InitDB opens the SQLite database at path, runs AutoMigrate and seeds the
// root domain.
func InitDB(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.DeviceRecord{},
		&models.InterfaceRecord{},
		&models.LocationRecord{},
		&models.APNRecord{},
		&models.ServiceRecord{},
		&models.DomainRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	var root models.DomainRecord
	err = db.Where("id = ?", models.EnterpriseDomainID).First(&root).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		root = models.DomainRecord{Model: gorm.Model{ID: models.EnterpriseDomainID}, Name: RootDomainName}
		if err := db.Create(&root).Error; err != nil {
			return nil, fmt.Errorf("seeding root domain: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	log.Printf("[db] opened sqlite/%s", path)
	return &Store{db: db}, nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

// Fixture describes the topology an emulator starts with.
type Fixture struct {
	APNs    []string        `json:"apns"`
	Devices []FixtureDevice `json:"devices"`
}

type FixtureDevice struct {
	models.DeviceConfig
	Interfaces []FixtureInterface `json:"interfaces"`
}

type FixtureInterface struct {
	models.InterfaceConfig
	APNs []string `json:"apns"`
}

// LoadFixture reads a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	return &f, nil
}

// Seed upserts the fixture. Devices are keyed by name and interfaces by
// (device, number); locations are replaced per interface.
func (s *Store) Seed(f *Fixture) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, name := range f.APNs {
			if err := tx.Where(models.APNRecord{Name: name}).FirstOrCreate(&models.APNRecord{}).Error; err != nil {
				return err
			}
		}
		for _, d := range f.Devices {
			if err := upsertDevice(tx, d); err != nil {
				return fmt.Errorf("seeding device %s: %w", d.DeviceName, err)
			}
		}
		log.Printf("[db] seeded %d APNs, %d devices", len(f.APNs), len(f.Devices))
		return nil
	})
}

func upsertDevice(tx *gorm.DB, d FixtureDevice) error {
	status := d.Status
	if status == "" {
		status = models.StatusActive
	}
	var dev models.DeviceRecord
	result := tx.Where("name = ?", d.DeviceName).First(&dev)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		dev = models.DeviceRecord{Name: d.DeviceName, IPAddress: d.DeviceIPAddress, Status: status, Type: d.DeviceType}
		if err := tx.Create(&dev).Error; err != nil {
			return err
		}
	} else if result.Error != nil {
		return result.Error
	} else {
		tx.Model(&dev).Updates(map[string]any{
			"ip_address": d.DeviceIPAddress,
			"status":     status,
			"type":       d.DeviceType,
		})
	}

	for _, ifc := range d.Interfaces {
		st := ifc.Status
		if st == "" {
			st = models.StatusActive
		}
		rec := models.InterfaceRecord{DeviceName: d.DeviceName, Number: ifc.InterfaceNumber}
		if err := tx.Where("device_name = ? AND number = ?", d.DeviceName, ifc.InterfaceNumber).Assign(models.InterfaceRecord{
			Name: ifc.InterfaceName, Alias: ifc.Alias, Status: st,
		}).FirstOrCreate(&rec).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Where("device_name = ? AND interface_number = ?", d.DeviceName, ifc.InterfaceNumber).
			Delete(&models.LocationRecord{}).Error; err != nil {
			return err
		}
		for _, apn := range ifc.APNs {
			loc := models.LocationRecord{DeviceName: d.DeviceName, InterfaceNumber: ifc.InterfaceNumber, APN: apn}
			if err := tx.Create(&loc).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// ── Topology reads ────────────────────────────────────────────────────────────

func (s *Store) Devices() ([]models.DeviceConfig, error) {
	var recs []models.DeviceRecord
	if err := s.db.Order("name").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.DeviceConfig, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.DeviceConfig{
			DeviceName: r.Name, DeviceIPAddress: r.IPAddress, Status: r.Status, DeviceType: r.Type,
		})
	}
	return out, nil
}

// Interfaces lists a device's interfaces; gorm.ErrRecordNotFound when the
// device is unknown.
func (s *Store) Interfaces(device string) ([]models.InterfaceConfig, error) {
	if err := s.db.Where("name = ?", device).First(&models.DeviceRecord{}).Error; err != nil {
		return nil, err
	}
	var recs []models.InterfaceRecord
	if err := s.db.Where("device_name = ?", device).Order("number").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.InterfaceConfig, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.InterfaceConfig{
			InterfaceName: r.Name, Alias: r.Alias, InterfaceNumber: r.Number, Status: r.Status,
		})
	}
	return out, nil
}

// Locations returns the APN location keys of one interface.
func (s *Store) Locations(device string, number int) ([]models.LocationKeyConfig, error) {
	var recs []models.LocationRecord
	if err := s.db.Where("device_name = ? AND interface_number = ?", device, number).Order("apn").Find(&recs).Error; err != nil {
		return nil, err
	}
	var out []models.LocationKeyConfig
	for _, r := range recs {
		var apn models.APNRecord
		id := 0
		if err := s.db.Where("name = ?", r.APN).First(&apn).Error; err == nil {
			id = int(apn.ID)
		}
		out = append(out, models.LocationKeyConfig{
			LocationKeyType: models.LocationKindAPN, LocationKeyName: r.APN, LocationKeyID: id,
		})
	}
	return out, nil
}

func (s *Store) APNs() ([]models.APN, error) {
	var recs []models.APNRecord
	if err := s.db.Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.APN, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.APN{Name: r.Name, ID: int(r.ID)})
	}
	return out, nil
}

// ── Services ──────────────────────────────────────────────────────────────────

// Service returns the stored definition with its assigned id.
func (s *Store) Service(name string) (*models.ServiceDetail, error) {
	var rec models.ServiceRecord
	if err := s.db.Where("name = ?", name).First(&rec).Error; err != nil {
		return nil, err
	}
	var def models.ServiceDetail
	if err := json.Unmarshal([]byte(rec.Detail), &def); err != nil {
		return nil, fmt.Errorf("decoding service %s: %w", name, err)
	}
	def.ID = int(rec.ID)
	return &def, nil
}

// CreateService stores def under a fresh id; ErrConflict when the name is taken.
func (s *Store) CreateService(def models.ServiceDetail) (int, error) {
	var n int64
	if err := s.db.Model(&models.ServiceRecord{}).Where("name = ?", def.ServiceName).Count(&n).Error; err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, fmt.Errorf("service %s: %w", def.ServiceName, ErrConflict)
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return 0, err
	}
	rec := models.ServiceRecord{Name: def.ServiceName, Type: def.ServiceType, Detail: string(raw)}
	if err := s.db.Create(&rec).Error; err != nil {
		return 0, err
	}
	return int(rec.ID), nil
}

// ── Domains ───────────────────────────────────────────────────────────────────

func (s *Store) Domains() ([]models.DomainSummary, error) {
	var recs []models.DomainRecord
	if err := s.db.Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.DomainSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.DomainSummary{ServiceName: r.Name, ID: int(r.ID), Parent: int(r.ParentID)})
	}
	return out, nil
}

// CreateDomain stores a domain below an existing parent.
func (s *Store) CreateDomain(def models.DomainDetail) (int, error) {
	if err := s.db.Where("id = ?", def.ParentID).First(&models.DomainRecord{}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("domain %s: %w (id %d)", def.DomainName, ErrNoParent, def.ParentID)
		}
		return 0, err
	}
	var n int64
	if err := s.db.Model(&models.DomainRecord{}).
		Where("name = ? AND parent_id = ?", def.DomainName, def.ParentID).Count(&n).Error; err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, fmt.Errorf("domain %s under %d: %w", def.DomainName, def.ParentID, ErrConflict)
	}
	members, err := json.Marshal(def.DomainMembers)
	if err != nil {
		return 0, err
	}
	rec := models.DomainRecord{Name: def.DomainName, ParentID: uint(def.ParentID), Members: string(members)}
	if err := s.db.Create(&rec).Error; err != nil {
		return 0, err
	}
	return int(rec.ID), nil
}

// DomainsNamed returns every domain called name, whatever its parent.
func (s *Store) DomainsNamed(name string) ([]models.DomainDetail, error) {
	var recs []models.DomainRecord
	if err := s.db.Where("name = ?", name).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.DomainDetail, 0, len(recs))
	for _, r := range recs {
		d := models.DomainDetail{DomainName: r.Name, ID: int(r.ID), ParentID: int(r.ParentID)}
		if r.Members != "" {
			if err := json.Unmarshal([]byte(r.Members), &d.DomainMembers); err != nil {
				return nil, fmt.Errorf("decoding members of domain %d: %w", r.ID, err)
			}
		}
		out = append(out, d)
	}
	return out, nil
}
