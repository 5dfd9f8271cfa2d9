package ptrsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ListSourceZones lists the forward zones that carry at least one
// address-mapping record, with the record count per zone. The result is
// cached per node for a short TTL with single-flight population;
// forceRefresh bypasses the cached value but still shares an in-flight
// scan. Per-zone scan failures degrade to skipping that zone.
func (s *Service) ListSourceZones(ctx context.Context, client ControlClient, cacheKey string, forceRefresh bool) (*SourceZonesResult, error) {
	return s.sourceZones.GetOrFetch(cacheKey, forceRefresh, func() (*SourceZonesResult, error) {
		return s.scanSourceZones(ctx, client)
	})
}

// scanSourceZones walks every candidate zone's records with a fixed
// pool of workers pulling from a shared cursor over the zone list. Each
// worker only appends to its own slot, so no lock is needed beyond the
// cursor itself.
func (s *Service) scanSourceZones(ctx context.Context, client ControlClient) (*SourceZonesResult, error) {
	result := &SourceZonesResult{Zones: []SourceZone{}}

	installed, err := client.HasSplitHorizon(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check installed apps: %w", err)
	}
	result.SplitHorizonInstalled = installed
	if !installed {
		return result, nil
	}

	zones, err := client.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	var candidates []string
	for _, z := range zones {
		if z.Type != "Primary" || z.Internal {
			continue
		}
		if strings.HasSuffix(z.Name, ".in-addr.arpa") || strings.HasSuffix(z.Name, ".ip6.arpa") {
			continue
		}
		candidates = append(candidates, z.Name)
	}

	counts := make([]int, len(candidates))
	var cursor int64 = -1
	var wg sync.WaitGroup
	workers := s.scanWorkers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(atomic.AddInt64(&cursor, 1))
				if idx >= len(candidates) {
					return
				}
				records, err := client.GetZoneRecords(ctx, candidates[idx])
				if err != nil {
					s.logger.WithField("zone", candidates[idx]).WithError(err).Warn("Source zone scan failed")
					continue
				}
				counts[idx] = len(ExtractSourceRecords(records))
			}
		}()
	}
	wg.Wait()

	for i, zone := range candidates {
		if counts[i] > 0 {
			result.Zones = append(result.Zones, SourceZone{ZoneName: zone, RecordCount: counts[i]})
		}
	}
	sort.Slice(result.Zones, func(i, j int) bool {
		return result.Zones[i].ZoneName < result.Zones[j].ZoneName
	})
	return result, nil
}
