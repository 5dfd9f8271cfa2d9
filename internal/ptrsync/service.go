package ptrsync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/cache"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// Default engine tuning
const (
	DefaultRecordTTL          = 3600
	DefaultScanWorkers        = 4
	DefaultSourceZoneCacheTTL = 30 * time.Second
)

// ControlClient is the slice of the DNS server API the engine consumes.
// *technitium.Client satisfies it; tests substitute fakes.
type ControlClient interface {
	HasSplitHorizon(ctx context.Context) (bool, error)
	ListZones(ctx context.Context) ([]technitium.Zone, error)
	GetZoneRecords(ctx context.Context, zone string) ([]technitium.Record, error)
	CreateZone(ctx context.Context, zone, zoneType, catalog string) (string, error)
	AddPTRRecord(ctx context.Context, domain, zone, ptrName string, ttl int) error
	UpdatePTRRecord(ctx context.Context, domain, zone, oldPtrName, newPtrName string, ttl int) error
	CreateBackup(ctx context.Context, opts technitium.BackupOptions) ([]byte, error)
}

// Service is the PTR reconciliation engine
type Service struct {
	logger      *logrus.Entry
	prefixes    PrefixOptions
	recordTTL   int
	scanWorkers int
	sourceZones *cache.TTL[*SourceZonesResult]
	snapshots   SnapshotStore
}

// Config holds the engine configuration
type Config struct {
	Logger             *logrus.Entry
	IPv4PrefixLength   int
	IPv6PrefixLength   int
	RecordTTL          int
	ScanWorkers        int
	SourceZoneCacheTTL time.Duration
	Snapshots          SnapshotStore
}

// NewService creates the engine with defaults filled in
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = DefaultRecordTTL
	}
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = DefaultScanWorkers
	}
	if cfg.SourceZoneCacheTTL <= 0 {
		cfg.SourceZoneCacheTTL = DefaultSourceZoneCacheTTL
	}
	return &Service{
		logger: cfg.Logger,
		prefixes: PrefixOptions{
			IPv4PrefixLength: cfg.IPv4PrefixLength,
			IPv6PrefixLength: cfg.IPv6PrefixLength,
		}.withDefaults(),
		recordTTL:   cfg.RecordTTL,
		scanWorkers: cfg.ScanWorkers,
		sourceZones: cache.NewTTL[*SourceZonesResult](cfg.SourceZoneCacheTTL),
		snapshots:   cfg.Snapshots,
	}
}

// DefaultPrefixes returns the configured prefix lengths, used when a
// request leaves them unset.
func (s *Service) DefaultPrefixes() PrefixOptions {
	return s.prefixes
}

// mergePrefixes overlays request prefixes onto the configured defaults
func (s *Service) mergePrefixes(opts PrefixOptions) PrefixOptions {
	if opts.IPv4PrefixLength == 0 {
		opts.IPv4PrefixLength = s.prefixes.IPv4PrefixLength
	}
	if opts.IPv6PrefixLength == 0 {
		opts.IPv6PrefixLength = s.prefixes.IPv6PrefixLength
	}
	return opts
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
