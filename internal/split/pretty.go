package split

import (
	"bytes"
	"encoding/json"
	"strings"
)

// prettyPrint re-indents raw JSON with the configured indent width and
// appends a trailing newline, matching spec.md's ".json" output
// requirement.
func prettyPrint(raw []byte, indent int) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", strings.Repeat(" ", indent)); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
