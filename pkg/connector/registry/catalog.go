package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fincore/gateway/pkg/errors"
)

// ConnectorInfo provides information about a connector type
type ConnectorInfo struct {
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	Version        string   `json:"version"`
	RequiredFields []string `json:"required_fields"`
	Vendors        []string `json:"vendors,omitempty"`
	Capabilities   []string `json:"capabilities"`
}

// ConnectorCatalog manages connector metadata
type ConnectorCatalog struct {
	connectors map[string]*ConnectorInfo
	mu         sync.RWMutex
}

// NewConnectorCatalog creates a new connector catalog
func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{
		connectors: make(map[string]*ConnectorInfo),
	}
}

// Register adds a connector to the catalog
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.connectors[info.Type]; exists {
		return errors.New(errors.ErrorTypeConflict, fmt.Sprintf("connector %s already in catalog", info.Type))
	}

	c.connectors[info.Type] = info
	return nil
}

// Get retrieves connector information
func (c *ConnectorCatalog) Get(connectorType string) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.connectors[connectorType]
	if !exists {
		return nil, errors.New(errors.ErrorTypeNotFound, fmt.Sprintf("connector %s not found in catalog", connectorType))
	}

	return info, nil
}

// List returns all connectors in the catalog ordered by type
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}

// Global catalog instance
var globalCatalog = NewConnectorCatalog()

// RegisterConnectorInfo registers connector information in the global catalog
func RegisterConnectorInfo(info *ConnectorInfo) error {
	return globalCatalog.Register(info)
}

// GetConnectorInfo retrieves connector information from the global catalog
func GetConnectorInfo(connectorType string) (*ConnectorInfo, error) {
	return globalCatalog.Get(connectorType)
}

// ListConnectorInfo lists all connectors in the global catalog
func ListConnectorInfo() []*ConnectorInfo {
	return globalCatalog.List()
}
