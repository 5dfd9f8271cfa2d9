package ptrsync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// reconcileFixture is a forward zone needing one zone create, one record
// create, one update, and carrying one already-correct record.
func reconcileFixture() *fakeClient {
	client := newFakeClient()
	client.zones = []technitium.Zone{
		{Name: "lan", Type: "Primary"},
		{Name: "1.168.192.in-addr.arpa", Type: "Primary"},
	}
	client.records["lan"] = []technitium.Record{
		appRecord("host-a.lan", `{"default":["192.168.1.10"]}`),
		appRecord("host-b.lan", `{"default":["192.168.1.11"]}`),
		appRecord("host-c.lan", `{"default":["192.168.1.12"]}`),
		appRecord("host-d.lan", `{"default":["192.168.2.5"]}`),
	}
	client.records["1.168.192.in-addr.arpa"] = []technitium.Record{
		ptrRecord("11.1.168.192.in-addr.arpa", "host-b.lan"),
		ptrRecord("12.1.168.192.in-addr.arpa", "stale.lan"),
	}
	client.zoneForCIDR["192.168.2.0/24"] = "2.168.192.in-addr.arpa"
	return client
}

func actionKinds(result *ApplyResult) []ActionKind {
	kinds := make([]ActionKind, len(result.Actions))
	for i, a := range result.Actions {
		kinds[i] = a.Kind
	}
	return kinds
}

func TestApply_ReconcilesAndIsIdempotent(t *testing.T) {
	client := reconcileFixture()
	store := &fakeSnapshotStore{}
	svc := NewService(Config{Snapshots: store})
	params := ApplyParams{ZoneName: "lan"}

	result, err := svc.Apply(context.Background(), client, "node-1", params)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := Summary{CreatedZones: 1, CreatedRecords: 2, UpdatedRecords: 1, Noops: 1}
	if diff := cmp.Diff(want, result.Summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	wantKinds := []ActionKind{ActionCreateZone, ActionCreateRecord, ActionNoop, ActionUpdateRecord, ActionCreateRecord}
	if diff := cmp.Diff(wantKinds, actionKinds(result)); diff != "" {
		t.Fatalf("action kinds mismatch (-want +got):\n%s", diff)
	}
	if store.saves != 1 {
		t.Errorf("snapshot saves = %d; want 1", store.saves)
	}
	if diff := cmp.Diff([]string{"2.168.192.in-addr.arpa"}, client.createdZones); diff != "" {
		t.Errorf("created zones mismatch (-want +got):\n%s", diff)
	}

	// A second apply with no intervening change only observes.
	again, err := svc.Apply(context.Background(), client, "node-1", params)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if again.Summary.Errors != 0 {
		t.Errorf("second apply errors = %d; want 0", again.Summary.Errors)
	}
	for _, a := range again.Actions {
		if a.Kind != ActionNoop {
			t.Errorf("second apply emitted %s for %s; want only noop", a.Kind, a.IP)
		}
	}
	if len(client.createdZones) != 1 || len(client.addedPTRs) != 2 || len(client.updatedPTRs) != 1 {
		t.Errorf("second apply mutated: zones=%v adds=%v updates=%v",
			client.createdZones, client.addedPTRs, client.updatedPTRs)
	}
}

func TestApply_DryRun(t *testing.T) {
	client := reconcileFixture()
	svc := NewService(Config{Snapshots: &fakeSnapshotStore{}})

	result, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{ZoneName: "lan", DryRun: true})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Same classification as a real apply, not a single write issued.
	wantKinds := []ActionKind{ActionCreateZone, ActionCreateRecord, ActionNoop, ActionUpdateRecord, ActionCreateRecord}
	if diff := cmp.Diff(wantKinds, actionKinds(result)); diff != "" {
		t.Fatalf("action kinds mismatch (-want +got):\n%s", diff)
	}
	if result.Summary.Errors != 0 {
		t.Errorf("errors = %d; want 0", result.Summary.Errors)
	}
	if len(client.createdZones) != 0 || len(client.addedPTRs) != 0 || len(client.updatedPTRs) != 0 || client.backups != 0 {
		t.Errorf("dry run mutated: zones=%v adds=%v updates=%v backups=%d",
			client.createdZones, client.addedPTRs, client.updatedPTRs, client.backups)
	}
	for _, a := range result.Actions {
		if a.Kind != ActionNoop && !a.OK {
			t.Errorf("dry-run action %s not ok: %s", a.Kind, a.Message)
		}
	}
}

func conflictFixture() *fakeClient {
	client := newFakeClient()
	client.zones = []technitium.Zone{
		{Name: "lan", Type: "Primary"},
		{Name: "1.168.192.in-addr.arpa", Type: "Primary"},
	}
	client.records["lan"] = []technitium.Record{
		appRecord("host-a.lan", `{"default":["192.168.1.10"]}`),
		appRecord("host-b.lan", `{"default":["192.168.1.10"]}`),
	}
	return client
}

func TestApply_ConflictPolicyFail(t *testing.T) {
	client := conflictFixture()
	svc := NewService(Config{Snapshots: &fakeSnapshotStore{}})

	_, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{
		ZoneName:       "lan",
		ConflictPolicy: ConflictPolicyFail,
	})
	var abort *ConflictAbortError
	if !errors.As(err, &abort) {
		t.Fatalf("error = %v; want ConflictAbortError", err)
	}
	if diff := cmp.Diff([]string{"192.168.1.10"}, abort.IPs); diff != "" {
		t.Errorf("aborting IPs mismatch (-want +got):\n%s", diff)
	}
	if len(client.addedPTRs) != 0 || len(client.createdZones) != 0 || client.backups != 0 {
		t.Error("fail policy issued writes before aborting")
	}
}

func TestApply_ConflictSkippedByDefault(t *testing.T) {
	client := conflictFixture()
	svc := NewService(Config{Snapshots: &fakeSnapshotStore{}})

	result, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{ZoneName: "lan"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Summary.SkippedConflicts != 1 {
		t.Errorf("skipped conflicts = %d; want 1", result.Summary.SkippedConflicts)
	}
	if len(client.addedPTRs) != 0 {
		t.Errorf("conflicting record was written: %v", client.addedPTRs)
	}
}

func TestApply_Resolutions(t *testing.T) {
	svc := NewService(Config{Snapshots: &fakeSnapshotStore{}})

	// A chosen candidate turns the conflict into a create.
	client := conflictFixture()
	result, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{
		ZoneName:    "lan",
		Resolutions: map[string]string{"192.168.1.10": "host-b.lan"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Summary.CreatedRecords != 1 {
		t.Fatalf("created records = %d; want 1", result.Summary.CreatedRecords)
	}
	if diff := cmp.Diff([]string{"10.1.168.192.in-addr.arpa->host-b.lan"}, client.addedPTRs); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}

	// A hostname outside the candidate list is rejected.
	client = conflictFixture()
	_, err = svc.Apply(context.Background(), client, "node-1", ApplyParams{
		ZoneName:    "lan",
		Resolutions: map[string]string{"192.168.1.10": "intruder.lan"},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("non-candidate resolution error = %v; want ValidationError", err)
	}

	// So is a resolution for an IP that is not conflicting.
	client = conflictFixture()
	_, err = svc.Apply(context.Background(), client, "node-1", ApplyParams{
		ZoneName:    "lan",
		Resolutions: map[string]string{"192.168.9.9": "host-a.lan"},
	})
	if !errors.As(err, &vErr) {
		t.Errorf("non-conflicting resolution error = %v; want ValidationError", err)
	}
}

func TestApply_CatalogZoneValidation(t *testing.T) {
	client := reconcileFixture()
	client.zones = append(client.zones, technitium.Zone{Name: "replica-catalog", Type: "Catalog"})
	svc := NewService(Config{Snapshots: &fakeSnapshotStore{}})

	_, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{
		ZoneName:        "lan",
		CatalogZoneName: "no-such-catalog",
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("unknown catalog error = %v; want ValidationError", err)
	}

	client = reconcileFixture()
	client.zones = append(client.zones, technitium.Zone{Name: "replica-catalog", Type: "Catalog"})
	if _, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{
		ZoneName:        "lan",
		CatalogZoneName: "replica-catalog",
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff([]string{"replica-catalog"}, client.createdCatalog); diff != "" {
		t.Errorf("catalog membership mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_LiveDriftSkips(t *testing.T) {
	client := reconcileFixture()
	// Between the preview fetch and the apply-time refetch, someone adds
	// a second PTR for an owner the plan wanted to update.
	client.injectOnRefetch = map[string][]technitium.Record{
		"1.168.192.in-addr.arpa": {ptrRecord("12.1.168.192.in-addr.arpa", "surprise.lan")},
	}
	svc := NewService(Config{Snapshots: &fakeSnapshotStore{}})

	result, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{ZoneName: "lan"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Summary.SkippedConflicts != 1 {
		t.Errorf("skipped conflicts = %d; want 1", result.Summary.SkippedConflicts)
	}
	if len(client.updatedPTRs) != 0 {
		t.Errorf("drifted owner was updated: %v", client.updatedPTRs)
	}
}

func TestApply_SnapshotFailureIsWarning(t *testing.T) {
	client := reconcileFixture()
	client.backupErr = errors.New("disk full")
	svc := NewService(Config{Snapshots: &fakeSnapshotStore{}})

	result, err := svc.Apply(context.Background(), client, "node-1", ApplyParams{ZoneName: "lan"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Summary.Errors != 0 {
		t.Errorf("errors = %d; want 0", result.Summary.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.HasPrefix(w, "snapshot failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("no snapshot warning; warnings = %v", result.Warnings)
	}
}
