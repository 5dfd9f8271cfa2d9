package ptrsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// fakeClient is an in-memory ControlClient. Mutations update the stored
// record set, so a second preview or apply observes earlier writes the
// way a real server would.
type fakeClient struct {
	mu sync.Mutex

	splitHorizon    bool
	splitHorizonErr error

	zones    []technitium.Zone
	zonesErr error

	records    map[string][]technitium.Record
	recordsErr map[string]error

	// zoneForCIDR maps a network CIDR to the reverse zone name the
	// server would derive on create.
	zoneForCIDR   map[string]string
	createZoneErr error

	backupErr error

	// injectOnRefetch appends records to a zone on its second fetch,
	// simulating external drift between preview and apply.
	injectOnRefetch map[string][]technitium.Record
	fetchCounts     map[string]int

	listZoneCalls  int
	createdZones   []string
	createdCatalog []string
	addedPTRs      []string
	updatedPTRs    []string
	backups        int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		splitHorizon: true,
		records:      make(map[string][]technitium.Record),
		recordsErr:   make(map[string]error),
		zoneForCIDR:  make(map[string]string),
		fetchCounts:  make(map[string]int),
	}
}

func (f *fakeClient) HasSplitHorizon(ctx context.Context) (bool, error) {
	return f.splitHorizon, f.splitHorizonErr
}

func (f *fakeClient) ListZones(ctx context.Context) ([]technitium.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listZoneCalls++
	if f.zonesErr != nil {
		return nil, f.zonesErr
	}
	return append([]technitium.Zone(nil), f.zones...), nil
}

func (f *fakeClient) GetZoneRecords(ctx context.Context, zone string) ([]technitium.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordsErr[zone]; err != nil {
		return nil, err
	}
	f.fetchCounts[zone]++
	if f.fetchCounts[zone] == 2 && len(f.injectOnRefetch[zone]) > 0 {
		f.records[zone] = append(f.records[zone], f.injectOnRefetch[zone]...)
		f.injectOnRefetch[zone] = nil
	}
	return append([]technitium.Record(nil), f.records[zone]...), nil
}

func (f *fakeClient) CreateZone(ctx context.Context, zone, zoneType, catalog string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createZoneErr != nil {
		return "", f.createZoneErr
	}
	name, ok := f.zoneForCIDR[zone]
	if !ok {
		return "", errors.New("fake: no zone mapping for " + zone)
	}
	f.createdZones = append(f.createdZones, name)
	f.createdCatalog = append(f.createdCatalog, catalog)
	f.zones = append(f.zones, technitium.Zone{Name: name, Type: zoneType})
	if _, ok := f.records[name]; !ok {
		f.records[name] = nil
	}
	return name, nil
}

func (f *fakeClient) AddPTRRecord(ctx context.Context, domain, zone, ptrName string, ttl int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedPTRs = append(f.addedPTRs, domain+"->"+ptrName)
	f.records[zone] = append(f.records[zone], technitium.Record{
		Name: domain, Type: "PTR", TTL: ttl,
		RData: technitium.RecordData{PTRName: ptrName},
	})
	return nil
}

func (f *fakeClient) UpdatePTRRecord(ctx context.Context, domain, zone, oldPtrName, newPtrName string, ttl int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.records[zone] {
		if rec.Type == "PTR" && strings.EqualFold(rec.Name, domain) && rec.RData.PTRName == oldPtrName {
			f.records[zone][i].RData.PTRName = newPtrName
			f.updatedPTRs = append(f.updatedPTRs, fmt.Sprintf("%s: %s->%s", domain, oldPtrName, newPtrName))
			return nil
		}
	}
	return errors.New("fake: no such PTR record")
}

func (f *fakeClient) CreateBackup(ctx context.Context, opts technitium.BackupOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backupErr != nil {
		return nil, f.backupErr
	}
	f.backups++
	return []byte("zip"), nil
}

// ptrRecord builds an existing PTR record
func ptrRecord(owner, target string) technitium.Record {
	return technitium.Record{
		Name:  owner,
		Type:  "PTR",
		RData: technitium.RecordData{PTRName: target},
	}
}

// fakeSnapshotStore counts saves
type fakeSnapshotStore struct {
	saves int
	err   error
}

func (s *fakeSnapshotStore) Save(nodeName string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saves++
	return "/tmp/" + nodeName + ".zip", nil
}
