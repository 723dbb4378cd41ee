package check

import (
	"bytes"
	"fmt"

	"github.com/phobologic/subcheck/internal/model"
)

// Header reports a missing authorship marker in the first window bytes of
// content. It returns nil when the marker is present.
func Header(file string, content []byte, marker string, window int) *model.Violation {
	head := content
	if window > 0 && len(head) > window {
		head = head[:window]
	}
	if bytes.Contains(head, []byte(marker)) {
		return nil
	}
	return &model.Violation{
		Kind:     model.MissingHeader,
		Severity: model.Fail,
		File:     file,
		Message:  fmt.Sprintf("missing header: %q not found in the first %d bytes", marker, window),
	}
}
