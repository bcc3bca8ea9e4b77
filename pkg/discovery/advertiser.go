// Package discovery advertises the hub on the local network over
// mDNS, so cameras and NVRs on the same segment can find it without
// static configuration.
package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceType is the mDNS service type of the hub.
	ServiceType = "_easycms-hub._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// Config configures the advertiser.
type Config struct {
	// InstanceName is the mDNS instance name (e.g. "EasyCMS").
	InstanceName string

	// Port is the hub's protocol port.
	Port int

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// Advertiser announces the hub service over mDNS.
type Advertiser struct {
	config Config

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Advertising does not start
// until Start is called.
func NewAdvertiser(config Config) *Advertiser {
	if config.InstanceName == "" {
		config.InstanceName = "EasyCMS"
	}
	if config.TTL <= 0 {
		config.TTL = 120 * time.Second
	}
	return &Advertiser{config: config}
}

// getInterfaces returns the network interfaces to advertise on.
// Returns nil to use all interfaces.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Start registers the hub service. Calling Start while already
// advertising replaces the registration.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txt := []string{
		"vendor=EasyDarwin",
		fmt.Sprintf("port=%d", a.config.Port),
	}

	opts := []zeroconf.ServerOption{
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	}

	server, err := zeroconf.Register(
		a.config.InstanceName,
		ServiceType,
		Domain,
		a.config.Port,
		txt,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register hub service: %w", err)
	}

	a.server = server
	return nil
}

// Active reports whether the service is currently advertised.
func (a *Advertiser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
