// internal/driver/registry.go
package driver

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"based-connect/internal/model"
	"based-connect/internal/protocol"
	"based-connect/pkg/driver"
)

// ErrUnsupportedBrand is returned for a brand with no registered driver
var ErrUnsupportedBrand = errors.New("unsupported headset brand")

// DriverFactory creates a headset driver over an open connection
type DriverFactory func(conn protocol.DeviceProtocol, logger *zap.Logger) driver.HeadsetDriver

// Registry manages headset driver registration and creation
type Registry struct {
	drivers map[model.DeviceBrand]DriverFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a new driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		drivers: make(map[model.DeviceBrand]DriverFactory),
		logger:  logger,
	}
}

// Register registers a driver factory for a brand, replacing any previous one
func (r *Registry) Register(brand model.DeviceBrand, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drivers[brand] = factory
	r.logger.Debug("Driver registered", zap.String("brand", string(brand)))
}

// CreateDriver creates a driver for the device over conn
func (r *Registry) CreateDriver(device *model.Device, conn protocol.DeviceProtocol, logger *zap.Logger) (driver.HeadsetDriver, error) {
	r.mu.RLock()
	factory, exists := r.drivers[device.Brand]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: no driver found for brand=%s", ErrUnsupportedBrand, device.Brand)
	}
	return factory(conn, logger), nil
}

// IsSupported checks if a brand has a driver
func (r *Registry) IsSupported(brand model.DeviceBrand) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.drivers[brand]
	return exists
}

// GetSupportedBrands returns all registered brands in name order
func (r *Registry) GetSupportedBrands() []model.DeviceBrand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brands := make([]model.DeviceBrand, 0, len(r.drivers))
	for brand := range r.drivers {
		brands = append(brands, brand)
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i] < brands[j] })
	return brands
}
