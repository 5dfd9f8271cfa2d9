package technitium

// LoginResponse is returned by user/login with includeInfo=true
type LoginResponse struct {
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	Token       string `json:"token"`
	Version     string `json:"version,omitempty"`
}

// App represents an installed DNS app
type App struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	DNSApps []DNSApp `json:"dnsApps"`
}

// DNSApp is one handler class inside an installed app
type DNSApp struct {
	ClassPath                 string `json:"classPath"`
	Description               string `json:"description"`
	IsAppRecordRequestHandler bool   `json:"isAppRecordRequestHandler"`
	RecordDataTemplate        string `json:"recordDataTemplate,omitempty"`
}

// Zone represents a hosted zone
type Zone struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Internal     bool   `json:"internal"`
	Disabled     bool   `json:"disabled"`
	DNSSECStatus string `json:"dnssecStatus,omitempty"`
	Catalog      string `json:"catalog,omitempty"`
	SOASerial    uint32 `json:"soaSerial,omitempty"`
}

// RecordData carries the type-specific fields of a record. Only the
// fields for the record types the companion touches are mapped; the
// rest of the payload is ignored on decode.
type RecordData struct {
	IPAddress  string `json:"ipAddress,omitempty"`  // A / AAAA
	PTRName    string `json:"ptrName,omitempty"`    // PTR
	CName      string `json:"cname,omitempty"`      // CNAME
	Text       string `json:"text,omitempty"`       // TXT
	NameServer string `json:"nameServer,omitempty"` // NS

	// APP records
	AppName   string `json:"appName,omitempty"`
	ClassPath string `json:"classPath,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Record represents one resource record in a zone
type Record struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	TTL      int        `json:"ttl"`
	Disabled bool       `json:"disabled"`
	RData    RecordData `json:"rData"`
}

// RecordValues carries the parameters of a generic record add or
// delete. Exactly one value field should be set, matching Type.
type RecordValues struct {
	Domain string // owner name, absolute without trailing dot
	Zone   string
	Type   string
	TTL    int

	IPAddress  string // A / AAAA
	CName      string // CNAME
	PTRName    string // PTR
	Text       string // TXT
	NameServer string // NS
}

// DHCPScope summarizes a DHCP scope
type DHCPScope struct {
	Name             string `json:"name"`
	Enabled          bool   `json:"enabled"`
	StartingAddress  string `json:"startingAddress"`
	EndingAddress    string `json:"endingAddress"`
	SubnetMask       string `json:"subnetMask"`
	NetworkAddress   string `json:"networkAddress,omitempty"`
	BroadcastAddress string `json:"broadcastAddress,omitempty"`
}

// DHCPLease is one address lease
type DHCPLease struct {
	Scope            string `json:"scope"`
	Type             string `json:"type"`
	HardwareAddress  string `json:"hardwareAddress"`
	ClientIdentifier string `json:"clientIdentifier,omitempty"`
	Address          string `json:"address"`
	HostName         string `json:"hostName,omitempty"`
	LeaseObtained    string `json:"leaseObtained"`
	LeaseExpires     string `json:"leaseExpires"`
}

// QueryLogEntry is one row from the query-logs app
type QueryLogEntry struct {
	RowNumber       int    `json:"rowNumber"`
	Timestamp       string `json:"timestamp"`
	ClientIPAddress string `json:"clientIpAddress"`
	Protocol        string `json:"protocol"`
	ResponseType    string `json:"responseType"`
	RCode           string `json:"rcode"`
	QName           string `json:"qname"`
	QType           string `json:"qtype"`
	QClass          string `json:"qclass"`
	Answer          string `json:"answer,omitempty"`
}

// QueryLogPage is a page of query log entries
type QueryLogPage struct {
	PageNumber   int             `json:"pageNumber"`
	TotalPages   int             `json:"totalPages"`
	TotalEntries int             `json:"totalEntries"`
	Entries      []QueryLogEntry `json:"entries"`
}

// QueryLogsRequest selects and filters query log rows
type QueryLogsRequest struct {
	AppName         string
	ClassPath       string
	PageNumber      int
	EntriesPerPage  int
	DescendingOrder bool
	Start           string
	End             string
	ClientIPAddress string
	QName           string
	QType           string
	ResponseType    string
	RCode           string
}

// BackupOptions selects which server state goes into a settings backup zip
type BackupOptions struct {
	BlockLists   bool
	Logs         bool
	Scopes       bool
	Stats        bool
	Zones        bool
	AllowedZones bool
	BlockedZones bool
	DNSSettings  bool
	AuthConfig   bool
	LogSettings  bool
}

// FullBackup enables every section of a settings backup
func FullBackup() BackupOptions {
	return BackupOptions{
		BlockLists:   true,
		Logs:         true,
		Scopes:       true,
		Stats:        true,
		Zones:        true,
		AllowedZones: true,
		BlockedZones: true,
		DNSSettings:  true,
		AuthConfig:   true,
		LogSettings:  true,
	}
}
