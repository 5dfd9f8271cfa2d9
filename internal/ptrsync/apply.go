package ptrsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// Apply reconciles the reverse zones with the forward zone's address
// mappings. It always recomputes a fresh plan first; a caller-supplied
// plan could carry stale conflict data. The run completes even when
// individual actions fail, so the caller inspects summary.errors for
// partial failure.
func (s *Service) Apply(ctx context.Context, client ControlClient, nodeName string, params ApplyParams) (*ApplyResult, error) {
	if params.ConflictPolicy == "" {
		params.ConflictPolicy = ConflictPolicySkip
	}
	if params.ConflictPolicy != ConflictPolicySkip && params.ConflictPolicy != ConflictPolicyFail {
		return nil, validationErrorf("invalid conflictPolicy %q", params.ConflictPolicy)
	}

	plan, err := s.Preview(ctx, client, params.ZoneName, params.Prefixes)
	if err != nil {
		return nil, err
	}
	opts := s.mergePrefixes(params.Prefixes)

	result := &ApplyResult{
		Actions:  []ApplyAction{},
		Warnings: append([]string(nil), plan.Warnings...),
		Plan:     plan,
	}

	if params.CatalogZoneName != "" && !containsString(plan.CatalogZones, params.CatalogZoneName) {
		return nil, validationErrorf("catalog zone %q not found on this node", params.CatalogZoneName)
	}

	// Step 1: a resolution must point at a live source-hostname conflict
	// and pick one of its offered candidates.
	resolved := make(map[string]string, len(params.Resolutions))
	for ip, hostname := range params.Resolutions {
		rec := plan.findRecord(ip)
		if rec == nil || rec.Status != StatusConflict || rec.ConflictReason != ConflictMultipleSourceHostnames {
			return nil, validationErrorf("resolution for %s does not reference a source-hostname conflict", ip)
		}
		if !containsString(rec.ConflictTargets, hostname) {
			return nil, validationErrorf("resolution for %s references %q, which is not among the candidates", ip, hostname)
		}
		resolved[ip] = hostname
	}

	// Step 2: under the fail policy, any conflict left unresolved aborts
	// before a single write.
	if params.ConflictPolicy == ConflictPolicyFail {
		var unresolved []string
		for _, rec := range plan.PlannedRecords {
			if rec.Status == StatusConflict {
				if _, ok := resolved[rec.IP]; !ok {
					unresolved = append(unresolved, rec.IP)
				}
			}
		}
		if len(unresolved) > 0 {
			sort.Strings(unresolved)
			return nil, &ConflictAbortError{IPs: unresolved}
		}
	}

	// Step 3: best-effort snapshot before the first mutation.
	if !params.DryRun && planHasMutations(plan, resolved) {
		if warn := s.snapshotZones(ctx, client, nodeName); warn != "" {
			result.Warnings = append(result.Warnings, warn)
		}
	}

	// Step 4: create missing zones. The CIDR comes from any one planned
	// record's IP; a zone whose CIDR cannot be derived fails that action
	// only.
	ipForZone := make(map[string]string)
	for _, rec := range plan.PlannedRecords {
		if _, ok := ipForZone[rec.PTRZoneName]; !ok {
			ipForZone[rec.PTRZoneName] = rec.IP
		}
	}

	freshZones := make(map[string]bool)   // created (or would-create) this run, known empty
	presentZones := make(map[string]bool) // turned out to exist despite the plan
	failedZones := make(map[string]bool)

	for _, zone := range plan.PlannedZones {
		if zone.Status != ZoneStatusCreate {
			continue
		}
		action := ApplyAction{Kind: ActionCreateZone, PTRZoneName: zone.ZoneName}

		cidr, err := ComputeReverseZoneCIDR(ipForZone[zone.ZoneName], opts)
		if err != nil {
			action.Message = fmt.Sprintf("cannot derive network CIDR: %v", err)
			failedZones[zone.ZoneName] = true
			result.Actions = append(result.Actions, action)
			continue
		}

		if params.DryRun {
			action.OK = true
			action.Message = fmt.Sprintf("would create zone %s (%s)", zone.ZoneName, cidr)
			freshZones[zone.ZoneName] = true
			result.Actions = append(result.Actions, action)
			continue
		}

		_, err = client.CreateZone(ctx, cidr, "Primary", params.CatalogZoneName)
		switch {
		case err == nil:
			action.OK = true
			action.Message = fmt.Sprintf("created zone %s (%s)", zone.ZoneName, cidr)
			freshZones[zone.ZoneName] = true
		case isZoneExistsError(err):
			// Raced with an external create; the zone is there now.
			action.OK = true
			action.Message = "zone already exists"
			presentZones[zone.ZoneName] = true
		default:
			action.Message = fmt.Sprintf("failed to create zone: %v", err)
			failedZones[zone.ZoneName] = true
		}
		result.Actions = append(result.Actions, action)
	}

	// Step 5: reload the live PTR state of every touched zone that could
	// hold records. Freshly created zones are known empty and zones that
	// failed to create are skipped wholesale below.
	var refetch []string
	for _, zone := range plan.PlannedZones {
		if zone.Status == ZoneStatusExists || presentZones[zone.ZoneName] {
			refetch = append(refetch, zone.ZoneName)
		}
	}
	owners, warns := s.fetchZoneOwners(ctx, client, refetch)
	result.Warnings = append(result.Warnings, warns...)
	for zone := range freshZones {
		owners[zone] = make(map[string][]string)
	}

	// Step 6: fold over the ip-sorted records, rechecking each against
	// the live owner map, which tracks this run's own writes.
	for _, rec := range plan.PlannedRecords {
		target := rec.TargetHostname
		fqdn := ToFQDN(rec.PTRRecordName, rec.PTRZoneName)

		if rec.Status == StatusConflict {
			chosen, ok := resolved[rec.IP]
			if !ok {
				result.Actions = append(result.Actions, ApplyAction{
					Kind:           ActionSkipConflict,
					OK:             true,
					IP:             rec.IP,
					PTRZoneName:    rec.PTRZoneName,
					PTRRecordFQDN:  fqdn,
					TargetHostname: rec.TargetHostname,
					Message:        fmt.Sprintf("unresolved conflict (%s)", rec.ConflictReason),
				})
				continue
			}
			target = chosen
		}

		if failedZones[rec.PTRZoneName] {
			result.Actions = append(result.Actions, ApplyAction{
				Kind:           ActionCreateRecord,
				IP:             rec.IP,
				PTRZoneName:    rec.PTRZoneName,
				PTRRecordFQDN:  fqdn,
				TargetHostname: target,
				Message:        "zone was not created",
			})
			continue
		}

		zoneOwners := owners[rec.PTRZoneName]
		if zoneOwners == nil {
			zoneOwners = make(map[string][]string)
			owners[rec.PTRZoneName] = zoneOwners
		}
		targets := zoneOwners[rec.PTRRecordName]
		domain := strings.TrimSuffix(fqdn, ".")

		switch {
		case len(targets) == 0:
			action := ApplyAction{
				Kind:           ActionCreateRecord,
				IP:             rec.IP,
				PTRZoneName:    rec.PTRZoneName,
				PTRRecordFQDN:  fqdn,
				TargetHostname: target,
			}
			if params.DryRun {
				action.OK = true
				action.Message = fmt.Sprintf("would create PTR %s -> %s", fqdn, target)
				zoneOwners[rec.PTRRecordName] = []string{target}
			} else if err := client.AddPTRRecord(ctx, domain, rec.PTRZoneName, target, s.recordTTL); err != nil {
				action.Message = fmt.Sprintf("failed to create PTR record: %v", err)
			} else {
				action.OK = true
				action.Message = fmt.Sprintf("created PTR %s -> %s", fqdn, target)
				zoneOwners[rec.PTRRecordName] = []string{target}
			}
			result.Actions = append(result.Actions, action)

		case len(targets) == 1 && hostnamesEqual(targets[0], target):
			result.Actions = append(result.Actions, ApplyAction{
				Kind:                  ActionNoop,
				OK:                    true,
				IP:                    rec.IP,
				PTRZoneName:           rec.PTRZoneName,
				PTRRecordFQDN:         fqdn,
				CurrentTargetHostname: targets[0],
				TargetHostname:        target,
				Message:               "target already correct",
			})

		case len(targets) == 1:
			current := targets[0]
			action := ApplyAction{
				Kind:                  ActionUpdateRecord,
				IP:                    rec.IP,
				PTRZoneName:           rec.PTRZoneName,
				PTRRecordFQDN:         fqdn,
				CurrentTargetHostname: current,
				TargetHostname:        target,
			}
			if params.DryRun {
				action.OK = true
				action.Message = fmt.Sprintf("would update PTR %s: %s -> %s", fqdn, current, target)
				zoneOwners[rec.PTRRecordName] = []string{target}
			} else if err := client.UpdatePTRRecord(ctx, domain, rec.PTRZoneName, current, target, s.recordTTL); err != nil {
				action.Message = fmt.Sprintf("failed to update PTR record: %v", err)
			} else {
				action.OK = true
				action.Message = fmt.Sprintf("updated PTR %s: %s -> %s", fqdn, current, target)
				zoneOwners[rec.PTRRecordName] = []string{target}
			}
			result.Actions = append(result.Actions, action)

		default:
			// Live state grew extra PTR records since the preview; never
			// guess which one to overwrite.
			result.Actions = append(result.Actions, ApplyAction{
				Kind:                  ActionSkipConflict,
				OK:                    true,
				IP:                    rec.IP,
				PTRZoneName:           rec.PTRZoneName,
				PTRRecordFQDN:         fqdn,
				CurrentTargetHostname: strings.Join(targets, ", "),
				TargetHostname:        target,
				Message:               "multiple existing PTR records for this owner",
			})
		}
	}

	// Step 7: tally.
	for _, a := range result.Actions {
		if !a.OK {
			result.Summary.Errors++
			continue
		}
		switch a.Kind {
		case ActionCreateZone:
			result.Summary.CreatedZones++
		case ActionCreateRecord:
			result.Summary.CreatedRecords++
		case ActionUpdateRecord:
			result.Summary.UpdatedRecords++
		case ActionSkipConflict:
			result.Summary.SkippedConflicts++
		case ActionNoop:
			result.Summary.Noops++
		case ActionDeleteRecord:
			// reserved; the executor never emits deletes today
		}
	}

	return result, nil
}

// findRecord returns the planned record for ip, or nil
func (p *Plan) findRecord(ip string) *PlannedRecord {
	for i := range p.PlannedRecords {
		if p.PlannedRecords[i].IP == ip {
			return &p.PlannedRecords[i]
		}
	}
	return nil
}

// planHasMutations reports whether applying the plan would write
// anything, given the accepted resolutions.
func planHasMutations(plan *Plan, resolved map[string]string) bool {
	for _, z := range plan.PlannedZones {
		if z.Status == ZoneStatusCreate {
			return true
		}
	}
	for _, r := range plan.PlannedRecords {
		switch r.Status {
		case StatusCreateRecord, StatusUpdateRecord:
			return true
		case StatusConflict:
			if _, ok := resolved[r.IP]; ok {
				return true
			}
		}
	}
	return false
}

// snapshotZones saves a zones-only backup of the node. Any failure is
// reported as a warning string; an empty return means success.
func (s *Service) snapshotZones(ctx context.Context, client ControlClient, nodeName string) string {
	if s.snapshots == nil {
		return "snapshot skipped: no snapshot store configured"
	}
	data, err := client.CreateBackup(ctx, technitium.BackupOptions{Zones: true})
	if err != nil {
		return fmt.Sprintf("snapshot failed: %v", err)
	}
	path, err := s.snapshots.Save(nodeName, data)
	if err != nil {
		return fmt.Sprintf("snapshot failed: %v", err)
	}
	s.logger.WithField("path", path).Info("Saved pre-apply zone snapshot")
	return ""
}

func isZoneExistsError(err error) bool {
	var apiErr *technitium.APIError
	return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "already exists")
}
