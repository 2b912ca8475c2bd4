// Package safety records the mutations a migration would perform when run in
// dry-run mode, so they can be reported instead of executed.
package safety

import (
	"sort"
	"strings"
	"sync"

	"github.com/dl-alexandre/gdm/internal/types"
)

// SafetyOptions controls how mutating operations are carried out
type SafetyOptions struct {
	DryRun bool `json:"dryRun"`
}

// Default returns options that execute every operation
func Default() SafetyOptions {
	return SafetyOptions{}
}

// DryRunMode returns options that only record operations
func DryRunMode() SafetyOptions {
	return SafetyOptions{DryRun: true}
}

// OperationType names a mutating remote operation
type OperationType string

const (
	OpCreateFolder   OperationType = "create_folder"
	OpUpload         OperationType = "upload"
	OpUpdateMetadata OperationType = "update_metadata"
	OpAddToFolder    OperationType = "add_to_folder"
	OpGrant          OperationType = "grant"
)

// PlannedOperation is a mutation that would have been made
type PlannedOperation struct {
	Type       OperationType     `json:"type"`
	Account    string            `json:"account"`
	TargetID   string            `json:"targetId,omitempty"`
	TargetName string            `json:"targetName"`
	Details    map[string]string `json:"details,omitempty"`
}

// DryRunRecorder collects planned operations
type DryRunRecorder interface {
	Record(op PlannedOperation)
}

// PlanRecorder is the in-memory DryRunRecorder
type PlanRecorder struct {
	mu  sync.Mutex
	ops []PlannedOperation
}

// NewPlanRecorder creates an empty recorder
func NewPlanRecorder() *PlanRecorder {
	return &PlanRecorder{}
}

func (r *PlanRecorder) Record(op PlannedOperation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// Operations returns a copy of the recorded operations in recording order
func (r *PlanRecorder) Operations() []PlannedOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PlannedOperation, len(r.ops))
	copy(out, r.ops)
	return out
}

// Count returns how many operations of the given type were recorded
func (r *PlanRecorder) Count(opType OperationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Type == opType {
			n++
		}
	}
	return n
}

// Len returns the number of recorded operations
func (r *PlanRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func RecordCreateFolder(r DryRunRecorder, account, title string) {
	r.Record(PlannedOperation{Type: OpCreateFolder, Account: account, TargetName: title})
}

func RecordUpload(r DryRunRecorder, account, sourceID, title string, format types.ExportFormat) {
	r.Record(PlannedOperation{
		Type:       OpUpload,
		Account:    account,
		TargetID:   sourceID,
		TargetName: title,
		Details:    map[string]string{"format": string(format)},
	})
}

func RecordUpdateMetadata(r DryRunRecorder, account string, doc *types.Document) {
	r.Record(PlannedOperation{
		Type:       OpUpdateMetadata,
		Account:    account,
		TargetID:   doc.ID,
		TargetName: doc.Title,
		Details: map[string]string{
			"starred":          boolString(doc.Starred),
			"hidden":           boolString(doc.Hidden),
			"writersCanInvite": boolString(doc.WritersCanInvite),
		},
	})
}

func RecordAddToFolder(r DryRunRecorder, account string, doc *types.Document, folderTitle string) {
	r.Record(PlannedOperation{
		Type:       OpAddToFolder,
		Account:    account,
		TargetID:   doc.ID,
		TargetName: doc.Title,
		Details:    map[string]string{"folder": folderTitle},
	})
}

func RecordGrant(r DryRunRecorder, account string, doc *types.Document, scopeType, role, scopeID string) {
	r.Record(PlannedOperation{
		Type:       OpGrant,
		Account:    account,
		TargetID:   doc.ID,
		TargetName: doc.Title,
		Details: map[string]string{
			"type":  scopeType,
			"role":  role,
			"scope": scopeID,
		},
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AsTableRenderer renders the plan one operation per row
func (r *PlanRecorder) AsTableRenderer() types.TableRenderer {
	return NewPlanTable(r.Operations())
}

// NewPlanTable renders ops one operation per row
func NewPlanTable(ops []PlannedOperation) types.TableRenderer {
	return planTable{ops: ops}
}

type planTable struct {
	ops []PlannedOperation
}

func (t planTable) Headers() []string {
	return []string{"Operation", "Account", "Target", "Details"}
}

func (t planTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.ops))
	for _, op := range t.ops {
		rows = append(rows, []string{string(op.Type), op.Account, op.TargetName, formatDetails(op.Details)})
	}
	return rows
}

func (t planTable) EmptyMessage() string {
	return "No operations planned"
}

func formatDetails(details map[string]string) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, " ")
}
