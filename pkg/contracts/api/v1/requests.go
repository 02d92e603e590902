// Package api contains the request contracts accepted by the zentaocli
// workers. Version v1 is the only version.
package api

import (
	"zentaocli/pkg/contracts/domain"
)

// ExportRequest starts a full export run
type ExportRequest struct {
	Credentials domain.Credentials `json:"credentials" validate:"required"`
	ProductName string             `json:"product_name" validate:"required,max=200"`
	ReportID    string             `json:"report_id,omitempty" validate:"omitempty,max=64"`
	Headless    bool               `json:"headless"`
	DownloadDir string             `json:"download_dir" validate:"required"`
	// Targets defaults to all three when empty.
	Targets []domain.ExportTarget `json:"targets,omitempty" validate:"omitempty,dive,oneof=requirements unclosed_defects test_cases"`
}

// LoginRequest signs in and reads the user profile
type LoginRequest struct {
	Credentials domain.Credentials `json:"credentials" validate:"required"`
	Headless    bool               `json:"headless"`
}

// ConsolidateRequest merges exported workbooks into a report template
type ConsolidateRequest struct {
	Target       string `json:"target" validate:"required"`
	Defects      string `json:"defects,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	TestCases    string `json:"test_cases,omitempty"`
	Image        string `json:"image,omitempty"`
}

// FillRequest writes values into cells of a template copy
type FillRequest struct {
	Template string            `json:"template" validate:"required"`
	Sheet    string            `json:"sheet" validate:"required"`
	Values   map[string]string `json:"values"`
	// CellMap maps value names to cell references such as "D2".
	CellMap map[string]string `json:"cell_map" validate:"required,min=1,dive,keys,required,endkeys,cellref"`
}

// LedgerRequest looks a project up in a ledger and fills the acceptance sheet
type LedgerRequest struct {
	Ledger     string            `json:"ledger" validate:"required"`
	Template   string            `json:"template" validate:"required"`
	Query      string            `json:"query" validate:"required"`
	KeyColumn  string            `json:"key_column" validate:"required"`
	Sheet      string            `json:"sheet" validate:"required"`
	FieldCells map[string]string `json:"field_cells" validate:"required,min=1,dive,cellref"`
	ExtraCells map[string]string `json:"extra_cells,omitempty" validate:"omitempty,dive,cellref"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// BugQueryRequest filters the bug list of one product
type BugQueryRequest struct {
	Credentials     domain.Credentials `json:"credentials" validate:"required"`
	ProductName     string             `json:"product_name" validate:"required"`
	Status          string             `json:"status,omitempty" validate:"omitempty,oneof=激活 已解决 已关闭"`
	Severity        int                `json:"severity,omitempty" validate:"omitempty,min=1,max=4"`
	From            string             `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To              string             `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IncludeResolved bool               `json:"include_resolved"`
	IncludeClosed   bool               `json:"include_closed"`
	Operator        string             `json:"operator,omitempty"`
	// Where is an optional boolean expression evaluated per record.
	Where    string `json:"where,omitempty"`
	Headless bool   `json:"headless"`
}
