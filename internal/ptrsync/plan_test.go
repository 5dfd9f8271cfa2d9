package ptrsync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

func newTestService() *Service {
	return NewService(Config{})
}

func TestPreview_SplitHorizonMissing(t *testing.T) {
	client := newFakeClient()
	client.splitHorizon = false

	plan, err := newTestService().Preview(context.Background(), client, "lan", PrefixOptions{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if plan.SplitHorizonInstalled {
		t.Error("SplitHorizonInstalled = true; want false")
	}
	if len(plan.PlannedRecords) != 0 || len(plan.PlannedZones) != 0 {
		t.Errorf("expected empty plan, got %d records, %d zones", len(plan.PlannedRecords), len(plan.PlannedZones))
	}
	if len(plan.Warnings) == 0 {
		t.Error("expected a warning about the missing app")
	}
}

func TestPreview_Validation(t *testing.T) {
	svc := newTestService()
	client := newFakeClient()

	if _, err := svc.Preview(context.Background(), client, "  ", PrefixOptions{}); err == nil {
		t.Error("empty zone name accepted")
	}
	_, err := svc.Preview(context.Background(), client, "lan", PrefixOptions{IPv4PrefixLength: 20})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("prefix 20 error = %v; want ValidationError", err)
	}
	if _, err := svc.Preview(context.Background(), client, "lan", PrefixOptions{IPv6PrefixLength: 63}); err == nil {
		t.Error("IPv6 prefix 63 accepted")
	}
}

func TestPreview_Classification(t *testing.T) {
	client := newFakeClient()
	client.zones = []technitium.Zone{
		{Name: "lan", Type: "Primary"},
		{Name: "1.168.192.in-addr.arpa", Type: "Primary"},
		{Name: "replica-catalog", Type: "Catalog"},
	}
	client.records["lan"] = append(client.records["lan"],
		appRecord("host-a.lan", `{"default":["192.168.1.10"]}`),
		appRecord("host-b.lan", `{"default":["192.168.1.11"]}`),
		appRecord("host-c.lan", `{"default":["192.168.1.12"]}`),
		appRecord("host-d.lan", `{"default":["192.168.2.5"]}`),
		appRecord("host-e.lan", `{"default":["192.168.1.13"]}`),
		appRecord("host-f.lan", `{"default":["192.168.1.13"]}`),
		appRecord("host-g.lan", `{"default":["192.168.1.14"]}`),
	)
	client.records["1.168.192.in-addr.arpa"] = append(client.records["1.168.192.in-addr.arpa"],
		ptrRecord("11.1.168.192.in-addr.arpa", "host-b.lan"),
		ptrRecord("12.1.168.192.in-addr.arpa", "other.lan"),
		ptrRecord("14.1.168.192.in-addr.arpa", "first.lan"),
		ptrRecord("14.1.168.192.in-addr.arpa", "second.lan"),
	)

	plan, err := newTestService().Preview(context.Background(), client, "lan", PrefixOptions{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !plan.SplitHorizonInstalled {
		t.Fatal("SplitHorizonInstalled = false")
	}

	wantStatus := map[string]PlannedRecordStatus{
		"192.168.1.10": StatusCreateRecord,
		"192.168.1.11": StatusAlreadyCorrect,
		"192.168.1.12": StatusUpdateRecord,
		"192.168.1.13": StatusConflict,
		"192.168.1.14": StatusConflict,
		"192.168.2.5":  StatusCreateRecord,
	}
	if len(plan.PlannedRecords) != len(wantStatus) {
		t.Fatalf("got %d planned records; want %d", len(plan.PlannedRecords), len(wantStatus))
	}
	for i, rec := range plan.PlannedRecords {
		if i > 0 && plan.PlannedRecords[i-1].IP >= rec.IP {
			t.Errorf("planned records not sorted by IP: %q before %q", plan.PlannedRecords[i-1].IP, rec.IP)
		}
		want, ok := wantStatus[rec.IP]
		if !ok {
			t.Errorf("unexpected planned record for %s", rec.IP)
			continue
		}
		if rec.Status != want {
			t.Errorf("record %s status = %s; want %s", rec.IP, rec.Status, want)
		}
	}

	// One record per conflicting IP, with the reason and all candidates.
	sourceConflict := plan.findRecord("192.168.1.13")
	if sourceConflict.ConflictReason != ConflictMultipleSourceHostnames {
		t.Errorf("conflict reason = %s; want %s", sourceConflict.ConflictReason, ConflictMultipleSourceHostnames)
	}
	if diff := cmp.Diff([]string{"host-e.lan", "host-f.lan"}, sourceConflict.ConflictTargets); diff != "" {
		t.Errorf("conflict targets mismatch (-want +got):\n%s", diff)
	}

	existingConflict := plan.findRecord("192.168.1.14")
	if existingConflict.ConflictReason != ConflictMultipleExistingPTRTargets {
		t.Errorf("conflict reason = %s; want %s", existingConflict.ConflictReason, ConflictMultipleExistingPTRTargets)
	}
	if diff := cmp.Diff([]string{"first.lan", "second.lan", "host-g.lan"}, existingConflict.ConflictTargets); diff != "" {
		t.Errorf("conflict targets mismatch (-want +got):\n%s", diff)
	}

	wantZones := []PlannedZone{
		{ZoneName: "1.168.192.in-addr.arpa", Status: ZoneStatusExists, RecordCount: 5},
		{ZoneName: "2.168.192.in-addr.arpa", Status: ZoneStatusCreate, RecordCount: 1},
	}
	if diff := cmp.Diff(wantZones, plan.PlannedZones); diff != "" {
		t.Errorf("planned zones mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"replica-catalog"}, plan.CatalogZones); diff != "" {
		t.Errorf("catalog zones mismatch (-want +got):\n%s", diff)
	}
}

func TestPreview_BadAddressDropped(t *testing.T) {
	client := newFakeClient()
	client.zones = []technitium.Zone{{Name: "lan", Type: "Primary"}}
	client.records["lan"] = append(client.records["lan"],
		appRecord("host-a.lan", `{"default":["not-an-ip","192.168.1.10"]}`),
	)

	plan, err := newTestService().Preview(context.Background(), client, "lan", PrefixOptions{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(plan.PlannedRecords) != 1 || plan.PlannedRecords[0].IP != "192.168.1.10" {
		t.Fatalf("planned records = %+v; want just 192.168.1.10", plan.PlannedRecords)
	}
	found := false
	for _, w := range plan.Warnings {
		if strings.Contains(w, "not-an-ip") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning about the dropped address; warnings = %v", plan.Warnings)
	}
}

func TestPreview_ZoneListFailureDegrades(t *testing.T) {
	client := newFakeClient()
	client.zonesErr = errors.New("boom")
	client.records["lan"] = append(client.records["lan"],
		appRecord("host-a.lan", `{"default":["192.168.1.10"]}`),
	)

	plan, err := newTestService().Preview(context.Background(), client, "lan", PrefixOptions{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(plan.Warnings) == 0 {
		t.Error("expected a warning about the zone list")
	}
	// No zone may be slated for creation on an unknown zone list.
	for _, z := range plan.PlannedZones {
		if z.Status == ZoneStatusCreate {
			t.Errorf("zone %s slated for creation despite unknown zone list", z.ZoneName)
		}
	}
}
