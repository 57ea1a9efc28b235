package change

import (
	"fmt"
	"strings"
)

// Sentinel markers wrapping the Schema and Batch bundles embedded in a
// change body. The repo adapter writes them on submit; the change adapter
// scans for them to recover the bundles.
const (
	BeginSchema = "<<<<BEGIN SCHEMA>>>>"
	EndSchema   = "<<<<END SCHEMA>>>>"
	BeginBatch  = "<<<<BEGIN BATCH>>>>"
	EndBatch    = "<<<<END BATCH>>>>"
)

// extractSection returns the text between the begin and end markers.
func extractSection(body, begin, end string) (string, error) {
	start := strings.Index(body, begin)
	if start < 0 {
		return "", fmt.Errorf("change: body has no %s marker", begin)
	}
	rest := body[start+len(begin):]
	stop := strings.Index(rest, end)
	if stop < 0 {
		return "", fmt.Errorf("change: body has no %s marker", end)
	}
	return strings.TrimSpace(rest[:stop]), nil
}
