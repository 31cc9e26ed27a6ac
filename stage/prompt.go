package stage

import (
	"fmt"
	"strings"
)

// DefaultPrompt renders the prompt sent when no override is given: the
// projected packet, any supplementary context, then the output contract.
// A nil supplementJSON omits the supplementary block.
func DefaultPrompt(name Name, schemaName string, packetJSON, supplementJSON, contractJSON []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are running the %q stage of an exercise generator.\n\n", name)
	b.WriteString("Context packet:\n")
	b.Write(packetJSON)
	if supplementJSON != nil {
		b.WriteString("\n\nSupplementary context:\n")
		b.Write(supplementJSON)
	}
	fmt.Fprintf(&b, "\n\nOutput contract %s:\n", schemaName)
	b.Write(contractJSON)
	b.WriteString("\n\nReturn only one JSON object matching the output contract. Do not wrap it in prose.\n")
	return b.String()
}
