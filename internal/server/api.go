package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"gorm.io/gorm"
)

// Emulator serves the nG1 REST surface from a Store.
type Emulator struct {
	store    *Store
	sessions *sessions
}

// New builds an emulator over store signing sessions with secret.
func New(store *Store, secret string) *Emulator {
	return &Emulator{store: store, sessions: newSessions(secret)}
}

// SetCredentials sets the one user accepted by session open.
func (e *Emulator) SetCredentials(user, pass string) error {
	return e.sessions.setCredentials(user, pass)
}

// IssueToken returns a session token usable as ng1_token.
func (e *Emulator) IssueToken(user string) (string, error) {
	return e.sessions.issue(user)
}

// Store exposes the backing database, mainly for inspection in tests.
func (e *Emulator) Store() *Store { return e.store }

// Handler returns a gin engine serving the emulator.
func (e *Emulator) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	e.RegisterRoutes(r)
	return r
}

// RegisterRoutes wires the emulated endpoints on r.
//
//	Public:  POST /ng1api/rest-sessions, GET /healthz
//	Session: everything else under /ng1api
func (e *Emulator) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/ng1api")
	api.POST("/rest-sessions", e.sessions.handleOpen)

	auth := api.Group("/", e.sessions.middleware())
	{
		auth.POST("/rest-sessions/close", e.sessions.handleClose)

		// Topology
		auth.GET("/ncm/devices", e.handleDevices)
		auth.GET("/ncm/devices/:device/interfaces", e.handleInterfaces)
		auth.GET("/ncm/devices/:device/interfaces/:number/locations", e.handleLocations)
		auth.GET("/ncm/apns", e.handleAPNs)

		// Services
		auth.GET("/ncm/services/:name", e.handleGetService)
		auth.POST("/ncm/services", e.handleCreateService)

		// Domains
		auth.GET("/ncm/domains", e.handleDomains)
		auth.GET("/ncm/domains/:name", e.handleGetDomain)
		auth.POST("/ncm/domains", e.handleCreateDomain)
	}
}

// ── Handlers ──────────────────────────────────────────────────────────────────

func (e *Emulator) handleDevices(c *gin.Context) {
	devs, err := e.store.Devices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.DeviceList{DeviceConfigurations: devs})
}

func (e *Emulator) handleInterfaces(c *gin.Context) {
	ifaces, err := e.store.Interfaces(c.Param("device"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.InterfaceList{InterfaceConfigurations: ifaces})
}

// handleLocations answers {} for an interface without locations, as nG1 does.
func (e *Emulator) handleLocations(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interface number"})
		return
	}
	locs, err := e.store.Locations(c.Param("device"), number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.LocationList{LocationKeyConfigurations: locs})
}

func (e *Emulator) handleAPNs(c *gin.Context) {
	apns, err := e.store.APNs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.APNList{APNs: apns})
}

func (e *Emulator) handleGetService(c *gin.Context) {
	def, err := e.store.Service(c.Param("name"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.ServiceEnvelope{ServiceDetail: []models.ServiceDetail{*def}})
}

// handleCreateService accepts one definition per request. Like nG1 it
// returns no id; callers read the service back by name.
func (e *Emulator) handleCreateService(c *gin.Context) {
	var body models.ServiceEnvelope
	if err := c.ShouldBindJSON(&body); err != nil || len(body.ServiceDetail) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected one serviceDetail"})
		return
	}
	def := body.ServiceDetail[0]
	if def.ServiceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serviceName required"})
		return
	}
	id, err := e.store.CreateService(def)
	if errors.Is(err, ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[emulator] created service %s (id=%d, %d members)", def.ServiceName, id, len(def.ServiceMembers))
	c.Status(http.StatusOK)
}

func (e *Emulator) handleDomains(c *gin.Context) {
	domains, err := e.store.Domains()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.DomainList{Domains: domains})
}

// handleGetDomain returns every domain with the given name. nG1 addresses
// domains by name only, so names repeated under other parents all show up.
func (e *Emulator) handleGetDomain(c *gin.Context) {
	domains, err := e.store.DomainsNamed(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(domains) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return
	}
	c.JSON(http.StatusOK, models.DomainEnvelope{DomainDetail: domains})
}

func (e *Emulator) handleCreateDomain(c *gin.Context) {
	var body models.DomainEnvelope
	if err := c.ShouldBindJSON(&body); err != nil || len(body.DomainDetail) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected one domainDetail"})
		return
	}
	def := body.DomainDetail[0]
	if def.DomainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domainName required"})
		return
	}
	id, err := e.store.CreateDomain(def)
	switch {
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrNoParent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[emulator] created domain %q under %d (id=%d)", def.DomainName, def.ParentID, id)
	c.Status(http.StatusOK)
}
