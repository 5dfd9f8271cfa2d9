package clustersync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// RecordRef identifies one record by owner, type and value
type RecordRef struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   int    `json:"ttl"`
}

// TargetDiff is the comparison of one target node against the source
type TargetDiff struct {
	NodeID   int         `json:"nodeId"`
	NodeName string      `json:"nodeName"`
	Missing  []RecordRef `json:"missing"`
	Extra    []RecordRef `json:"extra"`
	Error    string      `json:"error,omitempty"`
}

// DiffResult is the full cross-node comparison of one zone
type DiffResult struct {
	ZoneName      string       `json:"zoneName"`
	SourceNodeID  int          `json:"sourceNodeId"`
	SourceRecords int          `json:"sourceRecords"`
	// Skipped counts source records of types the comparison does not
	// cover (SOA, DNSSEC material, APP payloads).
	Skipped int          `json:"skipped"`
	Targets []TargetDiff `json:"targets"`
}

// TargetPush is the outcome of pushing missing records to one target
type TargetPush struct {
	NodeID   int      `json:"nodeId"`
	NodeName string   `json:"nodeName"`
	Added    int      `json:"added"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// PushResult is the outcome of a cross-node record push
type PushResult struct {
	ZoneName string       `json:"zoneName"`
	Targets  []TargetPush `json:"targets"`
}

// Service compares a zone's record set between nodes and pushes missing
// records from a chosen source node to targets.
type Service struct {
	factory   *nodes.ClientFactory
	logger    *logrus.Entry
	recordTTL int
}

// NewService creates the cluster sync service
func NewService(factory *nodes.ClientFactory, logger *logrus.Entry) *Service {
	return &Service{factory: factory, logger: logger, recordTTL: 3600}
}

// Diff compares the zone between the source node and each target.
// A target fetch failure fills that target's Error; the rest proceed.
func (s *Service) Diff(ctx context.Context, zoneName string, sourceNodeID int, targetNodeIDs []int) (*DiffResult, error) {
	zoneName = strings.TrimSuffix(strings.TrimSpace(zoneName), ".")
	if zoneName == "" {
		return nil, fmt.Errorf("zoneName is required")
	}
	if len(targetNodeIDs) == 0 {
		return nil, fmt.Errorf("at least one target node is required")
	}
	for _, id := range targetNodeIDs {
		if id == sourceNodeID {
			return nil, fmt.Errorf("source node cannot be a target")
		}
	}

	sourceNode, err := nodes.Get(ctx, sourceNodeID)
	if err != nil {
		return nil, err
	}
	sourceRecords, err := s.fetchZone(ctx, sourceNode, zoneName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch zone from source node: %w", err)
	}
	sourceSet, skipped := comparableRecords(sourceRecords)

	result := &DiffResult{
		ZoneName:      zoneName,
		SourceNodeID:  sourceNodeID,
		SourceRecords: len(sourceSet),
		Skipped:       skipped,
	}
	for _, id := range targetNodeIDs {
		target := TargetDiff{NodeID: id, Missing: []RecordRef{}, Extra: []RecordRef{}}
		node, err := nodes.Get(ctx, id)
		if err != nil {
			target.Error = err.Error()
			result.Targets = append(result.Targets, target)
			continue
		}
		target.NodeName = node.Name

		targetRecords, err := s.fetchZone(ctx, node, zoneName)
		if err != nil {
			target.Error = err.Error()
			result.Targets = append(result.Targets, target)
			continue
		}
		targetSet, _ := comparableRecords(targetRecords)
		target.Missing, target.Extra = diffSets(sourceSet, targetSet)
		result.Targets = append(result.Targets, target)
	}
	return result, nil
}

// Push adds the records each target is missing, per record and per
// target tolerant: a failed add is counted and the push continues.
func (s *Service) Push(ctx context.Context, zoneName string, sourceNodeID int, targetNodeIDs []int) (*PushResult, error) {
	diff, err := s.Diff(ctx, zoneName, sourceNodeID, targetNodeIDs)
	if err != nil {
		return nil, err
	}

	result := &PushResult{ZoneName: diff.ZoneName}
	for _, target := range diff.Targets {
		push := TargetPush{NodeID: target.NodeID, NodeName: target.NodeName}
		if target.Error != "" {
			push.Failed = len(target.Missing)
			push.Errors = append(push.Errors, target.Error)
			result.Targets = append(result.Targets, push)
			continue
		}

		node, err := nodes.Get(ctx, target.NodeID)
		if err != nil {
			push.Errors = append(push.Errors, err.Error())
			result.Targets = append(result.Targets, push)
			continue
		}
		for _, rec := range target.Missing {
			err := s.factory.Do(ctx, node, func(c *technitium.Client) error {
				return c.AddRecord(ctx, recordValues(diff.ZoneName, rec))
			})
			if err != nil {
				push.Failed++
				push.Errors = append(push.Errors, fmt.Sprintf("%s %s: %v", rec.Type, rec.Name, err))
				continue
			}
			push.Added++
		}
		result.Targets = append(result.Targets, push)
	}
	return result, nil
}

func (s *Service) fetchZone(ctx context.Context, node *model.Node, zoneName string) ([]technitium.Record, error) {
	var records []technitium.Record
	err := s.factory.Do(ctx, node, func(c *technitium.Client) error {
		var ferr error
		records, ferr = c.GetZoneRecords(ctx, zoneName)
		return ferr
	})
	return records, err
}

// comparableRecords keys the portable records of a zone by
// name|type|value. Types the companion cannot re-create on another
// node are counted as skipped.
func comparableRecords(records []technitium.Record) (map[string]RecordRef, int) {
	set := make(map[string]RecordRef)
	skipped := 0
	for _, rec := range records {
		value, ok := recordValue(rec)
		if !ok {
			skipped++
			continue
		}
		ref := RecordRef{
			Name:  strings.ToLower(strings.TrimSuffix(rec.Name, ".")),
			Type:  rec.Type,
			Value: value,
			TTL:   rec.TTL,
		}
		set[ref.Name+"|"+ref.Type+"|"+strings.ToLower(ref.Value)] = ref
	}
	return set, skipped
}

// recordValue extracts the comparable value of a record; false means
// the type is not covered by the sync tooling.
func recordValue(rec technitium.Record) (string, bool) {
	switch rec.Type {
	case "A", "AAAA":
		return rec.RData.IPAddress, true
	case "CNAME":
		return rec.RData.CName, true
	case "PTR":
		return rec.RData.PTRName, true
	case "TXT":
		return rec.RData.Text, true
	case "NS":
		return rec.RData.NameServer, true
	default:
		return "", false
	}
}

// diffSets returns the records present in source but not target, and
// the reverse, both sorted by name then type.
func diffSets(source, target map[string]RecordRef) (missing, extra []RecordRef) {
	missing = []RecordRef{}
	extra = []RecordRef{}
	for key, ref := range source {
		if _, ok := target[key]; !ok {
			missing = append(missing, ref)
		}
	}
	for key, ref := range target {
		if _, ok := source[key]; !ok {
			extra = append(extra, ref)
		}
	}
	sortRefs(missing)
	sortRefs(extra)
	return missing, extra
}

func sortRefs(refs []RecordRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		if refs[i].Type != refs[j].Type {
			return refs[i].Type < refs[j].Type
		}
		return refs[i].Value < refs[j].Value
	})
}

// recordValues maps a RecordRef back onto the add-record parameters
func recordValues(zoneName string, ref RecordRef) technitium.RecordValues {
	rec := technitium.RecordValues{
		Domain: ref.Name,
		Zone:   zoneName,
		Type:   ref.Type,
		TTL:    ref.TTL,
	}
	switch ref.Type {
	case "A", "AAAA":
		rec.IPAddress = ref.Value
	case "CNAME":
		rec.CName = ref.Value
	case "PTR":
		rec.PTRName = ref.Value
	case "TXT":
		rec.Text = ref.Value
	case "NS":
		rec.NameServer = ref.Value
	}
	return rec
}
