package technitium

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second, false)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/login" {
			t.Errorf("path = %q; want /api/user/login", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("user") != "admin" || q.Get("pass") != "secret" {
			t.Errorf("credentials = %q/%q; want admin/secret", q.Get("user"), q.Get("pass"))
		}
		if q.Get("includeInfo") != "true" {
			t.Error("includeInfo not requested")
		}
		if q.Has("token") {
			t.Error("login request carried a token parameter")
		}
		fmt.Fprint(w, `{"status":"ok","response":{"displayName":"Administrator","username":"admin","token":"fresh-token","version":"13.6"}}`)
	})
	c.SetToken("stale")

	resp, err := c.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "fresh-token" {
		t.Errorf("Token = %q; want %q", resp.Token, "fresh-token")
	}
	if resp.Version != "13.6" {
		t.Errorf("Version = %q; want %q", resp.Version, "13.6")
	}
	if c.Token() != "fresh-token" {
		t.Errorf("client token = %q; want %q", c.Token(), "fresh-token")
	}
}

func TestCall_InvalidToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"invalid-token","errorMessage":"Invalid token was provided."}`)
	})

	_, err := c.ListZones(context.Background())
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v; want ErrInvalidToken", err)
	}
}

func TestCall_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","errorMessage":"Zone already exists: 1.168.192.in-addr.arpa"}`)
	})

	_, err := c.CreateZone(context.Background(), "192.168.1.0/24", "Primary", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v; want *APIError", err)
	}
	if apiErr.Message != "Zone already exists: 1.168.192.in-addr.arpa" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestListZones(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "test-token" {
			t.Errorf("token = %q; want test-token", got)
		}
		fmt.Fprint(w, `{"status":"ok","response":{"zones":[
			{"name":"lan.example.com","type":"Primary","internal":false,"disabled":false},
			{"name":"cluster-catalog","type":"Catalog","internal":false,"disabled":false},
			{"name":"1.168.192.in-addr.arpa","type":"Primary","internal":false,"disabled":false}
		]}}`)
	})

	zones, err := c.ListZones(context.Background())
	if err != nil {
		t.Fatalf("ListZones: %v", err)
	}
	if len(zones) != 3 {
		t.Fatalf("len(zones) = %d; want 3", len(zones))
	}
	if zones[1].Type != "Catalog" {
		t.Errorf("zones[1].Type = %q; want Catalog", zones[1].Type)
	}
}

func TestGetZoneRecords_AppRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("domain") != "lan.example.com" || q.Get("listZone") != "true" {
			t.Errorf("unexpected query: %v", q)
		}
		fmt.Fprint(w, `{"status":"ok","response":{"records":[
			{"name":"host1.lan.example.com","type":"APP","ttl":300,"rData":{
				"appName":"Split Horizon","classPath":"SplitHorizon.SimpleAddress",
				"data":"{\"10.0.0.0/8\":[\"192.168.1.10\"]}"}},
			{"name":"host2.lan.example.com","type":"A","ttl":300,"rData":{"ipAddress":"192.168.1.11"}}
		]}}`)
	})

	records, err := c.GetZoneRecords(context.Background(), "lan.example.com")
	if err != nil {
		t.Fatalf("GetZoneRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d; want 2", len(records))
	}
	if records[0].RData.ClassPath != SplitHorizonClassPath {
		t.Errorf("ClassPath = %q; want %q", records[0].RData.ClassPath, SplitHorizonClassPath)
	}
	if records[0].RData.Data == "" {
		t.Error("APP record data not decoded")
	}
	if records[1].RData.IPAddress != "192.168.1.11" {
		t.Errorf("IPAddress = %q; want 192.168.1.11", records[1].RData.IPAddress)
	}
}

func TestAddPTRRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("domain") != "10.1.168.192.in-addr.arpa" {
			t.Errorf("domain = %q", q.Get("domain"))
		}
		if q.Get("zone") != "1.168.192.in-addr.arpa" {
			t.Errorf("zone = %q", q.Get("zone"))
		}
		if q.Get("type") != "PTR" {
			t.Errorf("type = %q; want PTR", q.Get("type"))
		}
		if q.Get("ptrName") != "host1.lan.example.com" {
			t.Errorf("ptrName = %q", q.Get("ptrName"))
		}
		if q.Get("ttl") != "3600" {
			t.Errorf("ttl = %q; want 3600", q.Get("ttl"))
		}
		fmt.Fprint(w, `{"status":"ok","response":{}}`)
	})

	err := c.AddPTRRecord(context.Background(), "10.1.168.192.in-addr.arpa", "1.168.192.in-addr.arpa", "host1.lan.example.com", 3600)
	if err != nil {
		t.Fatalf("AddPTRRecord: %v", err)
	}
}

func TestUpdatePTRRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("ptrName") != "old.lan.example.com" {
			t.Errorf("ptrName = %q; want old.lan.example.com", q.Get("ptrName"))
		}
		if q.Get("newPtrName") != "new.lan.example.com" {
			t.Errorf("newPtrName = %q; want new.lan.example.com", q.Get("newPtrName"))
		}
		fmt.Fprint(w, `{"status":"ok","response":{}}`)
	})

	err := c.UpdatePTRRecord(context.Background(), "10.1.168.192.in-addr.arpa", "1.168.192.in-addr.arpa", "old.lan.example.com", "new.lan.example.com", 3600)
	if err != nil {
		t.Fatalf("UpdatePTRRecord: %v", err)
	}
}

func TestCreateZone_Catalog(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("zone") != "192.168.1.0/24" {
			t.Errorf("zone = %q; want CIDR", q.Get("zone"))
		}
		if q.Get("type") != "Primary" {
			t.Errorf("type = %q; want Primary", q.Get("type"))
		}
		if q.Get("catalog") != "cluster-catalog" {
			t.Errorf("catalog = %q; want cluster-catalog", q.Get("catalog"))
		}
		fmt.Fprint(w, `{"status":"ok","response":{"domain":"1.168.192.in-addr.arpa"}}`)
	})

	domain, err := c.CreateZone(context.Background(), "192.168.1.0/24", "Primary", "cluster-catalog")
	if err != nil {
		t.Fatalf("CreateZone: %v", err)
	}
	if domain != "1.168.192.in-addr.arpa" {
		t.Errorf("domain = %q; want 1.168.192.in-addr.arpa", domain)
	}
}

func TestHasSplitHorizon(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "installed",
			body: `{"status":"ok","response":{"apps":[{"name":"Split Horizon","version":"3.1","dnsApps":[
				{"classPath":"SplitHorizon.SimpleAddress","isAppRecordRequestHandler":true},
				{"classPath":"SplitHorizon.Address","isAppRecordRequestHandler":true}]}]}}`,
			want: true,
		},
		{
			name: "not installed",
			body: `{"status":"ok","response":{"apps":[{"name":"Query Logs (Sqlite)","version":"6.2","dnsApps":[
				{"classPath":"QueryLogsSqlite.App","isAppRecordRequestHandler":false}]}]}}`,
			want: false,
		},
		{
			name: "no apps",
			body: `{"status":"ok","response":{"apps":[]}}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			got, err := c.HasSplitHorizon(context.Background())
			if err != nil {
				t.Fatalf("HasSplitHorizon: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasSplitHorizon = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestQueryLogs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("name") != "Query Logs (Sqlite)" {
			t.Errorf("name = %q", q.Get("name"))
		}
		if q.Get("pageNumber") != "2" || q.Get("entriesPerPage") != "25" {
			t.Errorf("paging = %q/%q", q.Get("pageNumber"), q.Get("entriesPerPage"))
		}
		if q.Get("qname") != "host1.lan.example.com" {
			t.Errorf("qname = %q", q.Get("qname"))
		}
		fmt.Fprint(w, `{"status":"ok","response":{"pageNumber":2,"totalPages":4,"totalEntries":100,
			"entries":[{"rowNumber":26,"timestamp":"2025-06-01T12:00:00Z","clientIpAddress":"192.168.1.50",
			"protocol":"Udp","responseType":"Authoritative","rcode":"NoError",
			"qname":"host1.lan.example.com","qtype":"A","qclass":"IN"}]}}`)
	})

	page, err := c.QueryLogs(context.Background(), QueryLogsRequest{
		AppName:         "Query Logs (Sqlite)",
		ClassPath:       "QueryLogsSqlite.App",
		PageNumber:      2,
		EntriesPerPage:  25,
		DescendingOrder: true,
		QName:           "host1.lan.example.com",
	})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if page.TotalEntries != 100 {
		t.Errorf("TotalEntries = %d; want 100", page.TotalEntries)
	}
	if len(page.Entries) != 1 || page.Entries[0].QName != "host1.lan.example.com" {
		t.Errorf("entries = %+v", page.Entries)
	}
}

func TestCreateBackup(t *testing.T) {
	zip := []byte("PK\x03\x04fake-zip-bytes")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("zones") != "true" || q.Get("logs") != "false" {
			t.Errorf("flags zones=%q logs=%q", q.Get("zones"), q.Get("logs"))
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(zip)
	})

	opts := FullBackup()
	opts.Logs = false
	got, err := c.CreateBackup(context.Background(), opts)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if string(got) != string(zip) {
		t.Errorf("backup bytes = %q; want %q", got, zip)
	}
}

func TestCreateBackup_InvalidToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, `{"status":"invalid-token","errorMessage":"Invalid token was provided."}`)
	})

	_, err := c.CreateBackup(context.Background(), FullBackup())
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v; want ErrInvalidToken", err)
	}
}
