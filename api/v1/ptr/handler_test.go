package ptr

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ptrsync"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// fakeControl is an in-memory ControlClient backing one handler test
type fakeControl struct {
	splitHorizon bool
	zones        []technitium.Zone
	records      map[string][]technitium.Record
	zoneForCIDR  map[string]string

	createdZones []string
	addedPTRs    []string
}

func (f *fakeControl) HasSplitHorizon(ctx context.Context) (bool, error) {
	return f.splitHorizon, nil
}

func (f *fakeControl) ListZones(ctx context.Context) ([]technitium.Zone, error) {
	return append([]technitium.Zone(nil), f.zones...), nil
}

func (f *fakeControl) GetZoneRecords(ctx context.Context, zone string) ([]technitium.Record, error) {
	return append([]technitium.Record(nil), f.records[zone]...), nil
}

func (f *fakeControl) CreateZone(ctx context.Context, zone, zoneType, catalog string) (string, error) {
	name := f.zoneForCIDR[zone]
	f.createdZones = append(f.createdZones, name)
	f.zones = append(f.zones, technitium.Zone{Name: name, Type: zoneType})
	return name, nil
}

func (f *fakeControl) AddPTRRecord(ctx context.Context, domain, zone, ptrName string, ttl int) error {
	f.addedPTRs = append(f.addedPTRs, domain+"->"+ptrName)
	f.records[zone] = append(f.records[zone], technitium.Record{
		Name: domain, Type: "PTR", TTL: ttl,
		RData: technitium.RecordData{PTRName: ptrName},
	})
	return nil
}

func (f *fakeControl) UpdatePTRRecord(ctx context.Context, domain, zone, oldPtrName, newPtrName string, ttl int) error {
	return nil
}

func (f *fakeControl) CreateBackup(ctx context.Context, opts technitium.BackupOptions) ([]byte, error) {
	return []byte("zip"), nil
}

func lanFixture() *fakeControl {
	return &fakeControl{
		splitHorizon: true,
		zones: []technitium.Zone{
			{Name: "lan", Type: "Primary"},
		},
		records: map[string][]technitium.Record{
			"lan": {
				{
					Name: "host1.lan",
					Type: "APP",
					RData: technitium.RecordData{
						ClassPath: technitium.SplitHorizonClassPath,
						Data:      `{"private":["192.168.2.10"]}`,
					},
				},
			},
		},
		zoneForCIDR: map[string]string{
			"192.168.2.0/24": "2.168.192.in-addr.arpa",
		},
	}
}

// testHandler wires the handler to a fake node without db or network
func testHandler(t *testing.T, client *fakeControl) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := ptrsync.NewService(ptrsync.Config{
		Logger:             logrus.NewEntry(logrus.New()),
		SourceZoneCacheTTL: time.Millisecond,
	})

	h := &Handler{
		engine: engine,
		logger: logrus.NewEntry(logrus.New()),
		withClient: func(ctx context.Context, nodeID int, fn func(ptrsync.ControlClient, string) error) error {
			if nodeID != 1 {
				return httpx.ErrNotFound("node not found")
			}
			return fn(client, "node-a")
		},
		recordRun: func(ctx context.Context, nodeID int, params ptrsync.ApplyParams, result *ptrsync.ApplyResult) (*model.SyncRun, error) {
			return &model.SyncRun{ID: "run-1", Status: model.SyncRunStatusCompleted}, nil
		},
		recordRejected: func(ctx context.Context, nodeID int, params ptrsync.ApplyParams, cause error) (*model.SyncRun, error) {
			return &model.SyncRun{ID: "run-rejected"}, nil
		},
		publish: func(topic, eventType string, payload interface{}) error { return nil },
	}

	r := gin.New()
	r.GET("/ptr/source-zones", h.SourceZones)
	r.POST("/ptr/preview", h.Preview)
	r.POST("/ptr/apply", h.Apply)
	return h, r
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	return w.Code, env
}

func TestSourceZones(t *testing.T) {
	_, r := testHandler(t, lanFixture())

	status, env := doRequest(t, r, http.MethodGet, "/ptr/source-zones?nodeId=1", nil)
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("status = %d, code = %d, want 200/0", status, env.Code)
	}

	var data ptrsync.SourceZonesResult
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !data.SplitHorizonInstalled {
		t.Error("SplitHorizonInstalled = false, want true")
	}
	if len(data.Zones) != 1 || data.Zones[0].ZoneName != "lan" || data.Zones[0].RecordCount != 1 {
		t.Errorf("zones = %+v, want one lan zone with one record", data.Zones)
	}
}

func TestSourceZones_MissingNodeID(t *testing.T) {
	_, r := testHandler(t, lanFixture())

	status, env := doRequest(t, r, http.MethodGet, "/ptr/source-zones", nil)
	if status != http.StatusBadRequest || env.Code != httpx.CodeParamInvalid {
		t.Fatalf("status = %d, code = %d, want 400/%d", status, env.Code, httpx.CodeParamInvalid)
	}
}

func TestSourceZones_NodeNotFound(t *testing.T) {
	_, r := testHandler(t, lanFixture())

	status, env := doRequest(t, r, http.MethodGet, "/ptr/source-zones?nodeId=99", nil)
	if status != http.StatusNotFound || env.Code != httpx.CodeNotFound {
		t.Fatalf("status = %d, code = %d, want 404/%d", status, env.Code, httpx.CodeNotFound)
	}
}

func TestPreview(t *testing.T) {
	_, r := testHandler(t, lanFixture())

	status, env := doRequest(t, r, http.MethodPost, "/ptr/preview", gin.H{
		"nodeId": 1, "zoneName": "lan",
	})
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("status = %d, code = %d, want 200/0", status, env.Code)
	}

	var plan ptrsync.Plan
	if err := json.Unmarshal(env.Data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan.PlannedRecords) != 1 {
		t.Fatalf("planned records = %d, want 1", len(plan.PlannedRecords))
	}
	rec := plan.PlannedRecords[0]
	if rec.IP != "192.168.2.10" || rec.Status != ptrsync.StatusCreateRecord {
		t.Errorf("record = %+v, want create-record for 192.168.2.10", rec)
	}
}

func TestPreview_UnknownZone(t *testing.T) {
	_, r := testHandler(t, lanFixture())

	status, env := doRequest(t, r, http.MethodPost, "/ptr/preview", gin.H{
		"nodeId": 1, "zoneName": "nope",
	})
	if status != http.StatusBadRequest || env.Code != httpx.CodeParamInvalid {
		t.Fatalf("status = %d, code = %d, want 400/%d", status, env.Code, httpx.CodeParamInvalid)
	}
}

func TestApply(t *testing.T) {
	client := lanFixture()
	h, r := testHandler(t, client)

	var published []string
	h.publish = func(topic, eventType string, payload interface{}) error {
		published = append(published, topic+"/"+eventType)
		return nil
	}

	status, env := doRequest(t, r, http.MethodPost, "/ptr/apply", gin.H{
		"nodeId": 1, "zoneName": "lan",
	})
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("status = %d, code = %d, want 200/0", status, env.Code)
	}

	var resp ApplyResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", resp.RunID)
	}
	if resp.Summary.CreatedZones != 1 || resp.Summary.CreatedRecords != 1 {
		t.Errorf("summary = %+v, want 1 created zone and 1 created record", resp.Summary)
	}
	if len(client.createdZones) != 1 || len(client.addedPTRs) != 1 {
		t.Errorf("mutations = %v / %v, want one zone and one record", client.createdZones, client.addedPTRs)
	}
	if len(published) != 1 || published[0] != "runs/run-completed" {
		t.Errorf("published = %v, want one runs/run-completed event", published)
	}
}

func TestApply_DryRunNoMutations(t *testing.T) {
	client := lanFixture()
	_, r := testHandler(t, client)

	status, env := doRequest(t, r, http.MethodPost, "/ptr/apply", gin.H{
		"nodeId": 1, "zoneName": "lan", "dryRun": true,
	})
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("status = %d, code = %d, want 200/0", status, env.Code)
	}
	if len(client.createdZones) != 0 || len(client.addedPTRs) != 0 {
		t.Errorf("dry run mutated the server: %v / %v", client.createdZones, client.addedPTRs)
	}
}

func TestApply_BadConflictPolicy(t *testing.T) {
	_, r := testHandler(t, lanFixture())

	status, env := doRequest(t, r, http.MethodPost, "/ptr/apply", gin.H{
		"nodeId": 1, "zoneName": "lan", "conflictPolicy": "explode",
	})
	if status != http.StatusBadRequest || env.Code != httpx.CodeParamInvalid {
		t.Fatalf("status = %d, code = %d, want 400/%d", status, env.Code, httpx.CodeParamInvalid)
	}
}

func TestApply_ConflictPolicyFail(t *testing.T) {
	client := lanFixture()
	// Second hostname claims the same IP, an unresolvable conflict
	client.records["lan"] = append(client.records["lan"], technitium.Record{
		Name: "host2.lan",
		Type: "APP",
		RData: technitium.RecordData{
			ClassPath: technitium.SplitHorizonClassPath,
			Data:      `{"private":["192.168.2.10"]}`,
		},
	})
	h, r := testHandler(t, client)

	rejected := 0
	h.recordRejected = func(ctx context.Context, nodeID int, params ptrsync.ApplyParams, cause error) (*model.SyncRun, error) {
		rejected++
		return &model.SyncRun{ID: "run-rejected"}, nil
	}

	status, env := doRequest(t, r, http.MethodPost, "/ptr/apply", gin.H{
		"nodeId": 1, "zoneName": "lan", "conflictPolicy": "fail",
	})
	if status != http.StatusConflict || env.Code != httpx.CodeStateConflict {
		t.Fatalf("status = %d, code = %d, want 409/%d", status, env.Code, httpx.CodeStateConflict)
	}
	if rejected != 1 {
		t.Errorf("rejected audit rows = %d, want 1", rejected)
	}
	if len(client.createdZones) != 0 || len(client.addedPTRs) != 0 {
		t.Errorf("aborted apply mutated the server: %v / %v", client.createdZones, client.addedPTRs)
	}
}
