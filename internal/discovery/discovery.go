// Package discovery finds gateways on the local network over mDNS and
// advertises the development gateway.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service gateways register under.
	ServiceType = "_devlink-gw._tcp"

	defaultTimeout = 3 * time.Second
	pathKey        = "path="
	dialectKey     = "dialect="
)

// ErrNotFound is returned when no gateway answered before the timeout.
var ErrNotFound = errors.New("discovery: no gateway found")

// Gateway is a discovered gateway endpoint.
type Gateway struct {
	Instance string
	Host     string
	Address  string
	Port     int
	Path     string
	Dialect  string
	TXT      []string
}

// URL returns the websocket URL of the gateway.
func (g Gateway) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(g.Address, strconv.Itoa(g.Port)),
		Path:   g.Path,
	}
	return u.String()
}

// Lookup returns the first gateway announcing service. An empty service
// means ServiceType.
func Lookup(ctx context.Context, service string, timeout time.Duration, logger *zap.Logger) (Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if service == "" {
		service = ServiceType
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	params := mdns.DefaultParams(service)
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	queryErr := make(chan error, 1)
	go func() {
		defer close(entries)
		queryErr <- mdns.Query(params)
	}()

	for {
		select {
		case <-ctx.Done():
			go drain(entries)
			return Gateway{}, ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				if err := <-queryErr; err != nil {
					return Gateway{}, fmt.Errorf("discovery: query %s: %w", service, err)
				}
				return Gateway{}, fmt.Errorf("%w: %s", ErrNotFound, service)
			}
			gw, err := fromEntry(entry)
			if err != nil {
				logger.Debug("mdns entry skipped", zap.String("name", entry.Name), zap.Error(err))
				continue
			}
			logger.Info("gateway discovered",
				zap.String("instance", gw.Instance),
				zap.String("address", gw.Address),
				zap.Int("port", gw.Port),
			)
			go drain(entries)
			return gw, nil
		}
	}
}

func drain(entries <-chan *mdns.ServiceEntry) {
	for range entries {
	}
}

func fromEntry(entry *mdns.ServiceEntry) (Gateway, error) {
	if entry == nil {
		return Gateway{}, errors.New("empty entry")
	}
	var address string
	switch {
	case entry.AddrV4 != nil:
		address = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		address = entry.AddrV6.String()
	default:
		return Gateway{}, errors.New("entry has no address")
	}
	if entry.Port <= 0 {
		return Gateway{}, errors.New("entry has no port")
	}
	gw := Gateway{
		Instance: entry.Name,
		Host:     entry.Host,
		Address:  address,
		Port:     entry.Port,
		Path:     "/",
		TXT:      entry.InfoFields,
	}
	for _, field := range entry.InfoFields {
		switch {
		case strings.HasPrefix(field, pathKey):
			gw.Path = strings.TrimPrefix(field, pathKey)
		case strings.HasPrefix(field, dialectKey):
			gw.Dialect = strings.TrimPrefix(field, dialectKey)
		}
	}
	return gw, nil
}

// Advertiser answers mDNS queries for a local gateway until Shutdown.
type Advertiser struct {
	server *mdns.Server
}

// Advertise registers a gateway instance listening on port with the given
// websocket path and dialect.
func Advertise(instance string, port int, path, dialect string, logger *zap.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if instance == "" {
		host, _ := os.Hostname()
		instance = "devlink-" + host
	}
	svc, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, TXTRecords(path, dialect))
	if err != nil {
		return nil, fmt.Errorf("discovery: service record: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("discovery: start responder: %w", err)
	}
	logger.Info("gateway advertised",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// TXTRecords builds the TXT fields describing a gateway endpoint.
func TXTRecords(path, dialect string) []string {
	if path == "" {
		path = "/"
	}
	records := []string{pathKey + path}
	if dialect != "" {
		records = append(records, dialectKey+dialect)
	}
	return records
}
