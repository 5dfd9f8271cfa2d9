package ptrsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// Preview computes a fresh plan for one forward zone. It performs no
// mutation. Upstream failures while scanning degrade to warnings on the
// plan; only invalid caller input returns an error.
func (s *Service) Preview(ctx context.Context, client ControlClient, zoneName string, opts PrefixOptions) (*Plan, error) {
	zoneName = strings.TrimSuffix(strings.TrimSpace(zoneName), ".")
	if zoneName == "" {
		return nil, validationErrorf("zoneName is required")
	}
	opts = s.mergePrefixes(opts)
	if opts.IPv4PrefixLength%8 != 0 || opts.IPv4PrefixLength < 8 || opts.IPv4PrefixLength > 32 {
		return nil, &ValidationError{msg: ErrInvalidIPv4Prefix.Error()}
	}
	if opts.IPv6PrefixLength%4 != 0 || opts.IPv6PrefixLength < 4 || opts.IPv6PrefixLength > 128 {
		return nil, &ValidationError{msg: ErrInvalidIPv6Prefix.Error()}
	}

	plan := &Plan{ZoneName: zoneName}

	installed, err := client.HasSplitHorizon(ctx)
	if err != nil {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("failed to check installed apps: %v", err))
		return plan, nil
	}
	plan.SplitHorizonInstalled = installed
	if !installed {
		plan.Warnings = append(plan.Warnings, "the Split Horizon app is not installed on this node")
		return plan, nil
	}

	records, err := client.GetZoneRecords(ctx, zoneName)
	if err != nil {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("failed to fetch records of zone %s: %v", zoneName, err))
		return plan, nil
	}
	plan.SourceRecords = ExtractSourceRecords(records)

	// ip -> distinct hostnames in first-seen order, ip -> reverse target.
	// Addresses whose reverse name cannot be computed are dropped with a
	// warning and never reach the plan.
	ipHostnames := make(map[string][]string)
	ipTarget := make(map[string]ReverseTarget)
	badIPs := make(map[string]bool)
	var ips []string
	for _, src := range plan.SourceRecords {
		for _, ip := range src.Addresses {
			if badIPs[ip] {
				continue
			}
			if _, ok := ipTarget[ip]; !ok {
				target, err := ComputeReverseTarget(ip, opts)
				if err != nil {
					badIPs[ip] = true
					plan.Warnings = append(plan.Warnings, fmt.Sprintf("skipping address %s: %v", ip, err))
					continue
				}
				ipTarget[ip] = target
				ips = append(ips, ip)
			}
			if !containsString(ipHostnames[ip], src.RecordName) {
				ipHostnames[ip] = append(ipHostnames[ip], src.RecordName)
			}
		}
	}
	sort.Strings(ips)

	// Zone classification against the live zone list. When the list is
	// unavailable no zone is slated for creation; apply degrades to
	// per-record failures instead of blind zone creates.
	liveKnown := true
	zoneTypes := make(map[string]string)
	liveZones, err := client.ListZones(ctx)
	if err != nil {
		liveKnown = false
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("failed to list zones: %v", err))
	}
	for _, z := range liveZones {
		zoneTypes[strings.ToLower(z.Name)] = z.Type
		if z.Type == "Catalog" {
			plan.CatalogZones = append(plan.CatalogZones, z.Name)
		}
	}
	sort.Strings(plan.CatalogZones)

	zoneStatus := make(map[string]PlannedZoneStatus)
	zoneCounts := make(map[string]int)
	for _, ip := range ips {
		zone := ipTarget[ip].ZoneName
		zoneCounts[zone]++
		if _, ok := zoneStatus[zone]; ok {
			continue
		}
		if _, exists := zoneTypes[strings.ToLower(zone)]; exists || !liveKnown {
			zoneStatus[zone] = ZoneStatusExists
		} else {
			zoneStatus[zone] = ZoneStatusCreate
		}
	}

	var existingZones []string
	for zone, status := range zoneStatus {
		if status == ZoneStatusExists {
			existingZones = append(existingZones, zone)
		}
	}
	sort.Strings(existingZones)
	existing, warnings := s.fetchZoneOwners(ctx, client, existingZones)
	plan.Warnings = append(plan.Warnings, warnings...)

	for _, ip := range ips {
		target := ipTarget[ip]
		hostnames := ipHostnames[ip]
		rec := PlannedRecord{
			IP:             ip,
			PTRZoneName:    target.ZoneName,
			PTRRecordName:  target.RecordName,
			TargetHostname: hostnames[0],
		}
		switch {
		case len(hostnames) > 1:
			rec.Status = StatusConflict
			rec.ConflictReason = ConflictMultipleSourceHostnames
			rec.ConflictTargets = hostnames
		case zoneStatus[target.ZoneName] == ZoneStatusCreate:
			rec.Status = StatusCreateRecord
		default:
			targets := existing[target.ZoneName][target.RecordName]
			switch {
			case len(targets) == 0:
				rec.Status = StatusCreateRecord
			case len(targets) == 1 && hostnamesEqual(targets[0], rec.TargetHostname):
				rec.Status = StatusAlreadyCorrect
			case len(targets) == 1:
				rec.Status = StatusUpdateRecord
			default:
				rec.Status = StatusConflict
				rec.ConflictReason = ConflictMultipleExistingPTRTargets
				rec.ConflictTargets = unionTargets(targets, rec.TargetHostname)
			}
		}
		plan.PlannedRecords = append(plan.PlannedRecords, rec)
	}

	zones := make([]string, 0, len(zoneCounts))
	for zone := range zoneCounts {
		zones = append(zones, zone)
	}
	sort.Strings(zones)
	for _, zone := range zones {
		plan.PlannedZones = append(plan.PlannedZones, PlannedZone{
			ZoneName:    zone,
			Status:      zoneStatus[zone],
			RecordCount: zoneCounts[zone],
		})
	}

	return plan, nil
}

// fetchZoneOwners loads the current PTR state of each zone with bounded
// concurrency. A failed fetch yields an empty owner map plus a warning;
// the zones are independent, so one failure never stops the rest.
func (s *Service) fetchZoneOwners(ctx context.Context, client ControlClient, zones []string) (map[string]map[string][]string, []string) {
	owners := make(map[string]map[string][]string, len(zones))
	var warnings []string
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.scanWorkers)
	for _, zone := range zones {
		zone := zone
		g.Go(func() error {
			records, err := client.GetZoneRecords(gctx, zone)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("failed to fetch records of zone %s: %v", zone, err))
				owners[zone] = make(map[string][]string)
				return nil
			}
			owners[zone] = ptrOwners(records, zone)
			return nil
		})
	}
	g.Wait()

	sort.Strings(warnings)
	return owners, warnings
}

// ptrOwners maps each PTR owner name, relativized against the zone, to
// its targets in record order.
func ptrOwners(records []technitium.Record, zone string) map[string][]string {
	m := make(map[string][]string)
	for _, rec := range records {
		if rec.Type != "PTR" {
			continue
		}
		rel := RelativeName(rec.Name, zone)
		m[rel] = append(m[rel], rec.RData.PTRName)
	}
	return m
}

// unionTargets appends the planned target to the existing targets
// unless an existing one already matches it.
func unionTargets(existing []string, planned string) []string {
	out := make([]string, 0, len(existing)+1)
	out = append(out, existing...)
	for _, t := range existing {
		if hostnamesEqual(t, planned) {
			return out
		}
	}
	return append(out, planned)
}
