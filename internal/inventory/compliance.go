package inventory

import "fmt"

// validateCompliance fails on the first batch that is not compliance-complete,
// naming the offending batch id. It runs strictly before any quantity
// mutation; receipts are exempt because a batch legitimately starts
// non-compliant and its data is back-filled later.
func validateCompliance(lines []AllocationLine) error {
	for _, line := range lines {
		if line.Batch.ComplianceStatus != ComplianceComplete {
			return fmt.Errorf("batch %s: %w", line.Batch.BatchID, ErrCompliancePending)
		}
	}
	return nil
}
