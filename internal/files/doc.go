// Package files finds the workbooks an export run left in the download
// directory, so a report can be consolidated without naming every file.
//
//	discovery := files.NewDiscovery("raw_data")
//	found, err := discovery.FindExports("网关", "2026-001")
//	// found[domain.TargetUnclosedDefects].Path == "raw_data/网关_未关闭的 Bug_(2026-001).xlsx"
package files
