package ptrsync

import "fmt"

// Default PTR zone prefix lengths
const (
	DefaultIPv4PrefixLength = 24
	DefaultIPv6PrefixLength = 64
)

// PrefixOptions selects the reverse-zone cut points per address family
type PrefixOptions struct {
	IPv4PrefixLength int `json:"ipv4PrefixLength"`
	IPv6PrefixLength int `json:"ipv6PrefixLength"`
}

// withDefaults fills unset prefix lengths
func (o PrefixOptions) withDefaults() PrefixOptions {
	if o.IPv4PrefixLength == 0 {
		o.IPv4PrefixLength = DefaultIPv4PrefixLength
	}
	if o.IPv6PrefixLength == 0 {
		o.IPv6PrefixLength = DefaultIPv6PrefixLength
	}
	return o
}

// ReverseTarget is the reverse zone and owner record name derived from
// one IP address.
type ReverseTarget struct {
	IPVersion  int    `json:"ipVersion"`
	ZoneName   string `json:"zoneName"`
	RecordName string `json:"recordName"`
}

// SourceRecord is one address-mapping record extracted from the forward
// zone: the owner hostname and every IP literal its payload mentions.
type SourceRecord struct {
	RecordName string   `json:"recordName"`
	Addresses  []string `json:"addresses"`
	Warnings   []string `json:"warnings,omitempty"`
}

// PlannedZoneStatus classifies a reverse zone in a plan
type PlannedZoneStatus string

const (
	ZoneStatusCreate PlannedZoneStatus = "create-zone"
	ZoneStatusExists PlannedZoneStatus = "zone-exists"
)

// PlannedZone is one reverse zone touched by a plan
type PlannedZone struct {
	ZoneName    string            `json:"zoneName"`
	Status      PlannedZoneStatus `json:"status"`
	RecordCount int               `json:"recordCount"`
}

// PlannedRecordStatus classifies one PTR record in a plan
type PlannedRecordStatus string

const (
	StatusCreateRecord   PlannedRecordStatus = "create-record"
	StatusUpdateRecord   PlannedRecordStatus = "update-record"
	StatusAlreadyCorrect PlannedRecordStatus = "already-correct"
	StatusDeleteRecord   PlannedRecordStatus = "delete-record" // reserved, never emitted by the planner today
	StatusConflict       PlannedRecordStatus = "conflict"
)

// ConflictReason says why a planned record is in conflict
type ConflictReason string

const (
	// ConflictMultipleSourceHostnames: two or more source records map
	// different hostnames to the same IP.
	ConflictMultipleSourceHostnames ConflictReason = "multiple-source-hostnames"
	// ConflictMultipleExistingPTRTargets: the reverse zone already holds
	// more than one PTR record for the owner name.
	ConflictMultipleExistingPTRTargets ConflictReason = "multiple-existing-ptr-targets"
)

// PlannedRecord is the planned state of one PTR record, keyed uniquely
// by IP within a plan.
type PlannedRecord struct {
	IP              string              `json:"ip"`
	PTRZoneName     string              `json:"ptrZoneName"`
	PTRRecordName   string              `json:"ptrRecordName"`
	TargetHostname  string              `json:"targetHostname"`
	Status          PlannedRecordStatus `json:"status"`
	ConflictTargets []string            `json:"conflictTargets,omitempty"`
	ConflictReason  ConflictReason      `json:"conflictReason,omitempty"`
}

// Plan is the full preview result: everything the reverse zones need to
// match the forward zone's address mappings. A plan performs no I/O by
// itself and is recomputed for every preview or apply.
type Plan struct {
	ZoneName              string          `json:"zoneName"`
	SplitHorizonInstalled bool            `json:"splitHorizonInstalled"`
	SourceRecords         []SourceRecord  `json:"sourceRecords"`
	PlannedZones          []PlannedZone   `json:"plannedZones"`
	PlannedRecords        []PlannedRecord `json:"plannedRecords"`
	CatalogZones          []string        `json:"catalogZones,omitempty"`
	Warnings              []string        `json:"warnings,omitempty"`
}

// ActionKind classifies one apply-time action
type ActionKind string

const (
	ActionCreateZone   ActionKind = "create-zone"
	ActionCreateRecord ActionKind = "create-record"
	ActionUpdateRecord ActionKind = "update-record"
	ActionDeleteRecord ActionKind = "delete-record"
	ActionSkipConflict ActionKind = "skip-conflict"
	ActionNoop         ActionKind = "noop"
)

// ApplyAction is the append-only record of one apply-time decision
type ApplyAction struct {
	Kind                  ActionKind `json:"kind"`
	OK                    bool       `json:"ok"`
	IP                    string     `json:"ip,omitempty"`
	PTRZoneName           string     `json:"ptrZoneName,omitempty"`
	PTRRecordFQDN         string     `json:"ptrRecordFqdn,omitempty"`
	CurrentTargetHostname string     `json:"currentTargetHostname,omitempty"`
	TargetHostname        string     `json:"targetHostname,omitempty"`
	Message               string     `json:"message,omitempty"`
}

// Summary tallies the ok actions of an apply run per kind; any failed
// action counts into Errors regardless of kind.
type Summary struct {
	CreatedZones     int `json:"createdZones"`
	CreatedRecords   int `json:"createdRecords"`
	UpdatedRecords   int `json:"updatedRecords"`
	SkippedConflicts int `json:"skippedConflicts"`
	Noops            int `json:"noops"`
	Errors           int `json:"errors"`
}

// ConflictPolicy decides what an unresolved conflict does to an apply
type ConflictPolicy string

const (
	ConflictPolicySkip ConflictPolicy = "skip"
	ConflictPolicyFail ConflictPolicy = "fail"
)

// ApplyParams carries the caller's apply request
type ApplyParams struct {
	ZoneName        string
	Prefixes        PrefixOptions
	ConflictPolicy  ConflictPolicy
	CatalogZoneName string
	// Resolutions maps a conflicting IP to the hostname the caller
	// chose among that conflict's candidates.
	Resolutions map[string]string
	DryRun      bool
}

// ApplyResult is the full outcome of one apply run
type ApplyResult struct {
	Actions  []ApplyAction `json:"actions"`
	Summary  Summary       `json:"summary"`
	Warnings []string      `json:"warnings,omitempty"`

	// Plan is the fresh preview the run acted on, kept for auditing.
	Plan *Plan `json:"-"`
}

// SourceZone is a forward zone carrying at least one address-mapping record
type SourceZone struct {
	ZoneName    string `json:"zoneName"`
	RecordCount int    `json:"recordCount"`
}

// SourceZonesResult is the source-zone listing response
type SourceZonesResult struct {
	SplitHorizonInstalled bool         `json:"splitHorizonInstalled"`
	Zones                 []SourceZone `json:"zones"`
}

// ValidationError rejects bad caller input before any I/O
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ConflictAbortError aborts an apply under conflictPolicy=fail before
// any write is issued.
type ConflictAbortError struct {
	IPs []string
}

func (e *ConflictAbortError) Error() string {
	return fmt.Sprintf("%d unresolved conflicts with conflictPolicy=fail: %v", len(e.IPs), e.IPs)
}
