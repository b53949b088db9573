package mcp

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/validate"
)

// findScriptArgFromSettings locates the .py script (if any) a stdio
// instance's command or args reference, for the add-time security scan.
func findScriptArgFromSettings(s *mcpconfig.Settings) (string, bool) {
	return validate.FindScriptArg(s.Command, s.Args)
}

func scanScript(path string) ([]validate.ScanFinding, error) {
	return validate.ScanScript(path)
}

func hasCritical(findings []validate.ScanFinding) bool {
	return validate.HasCritical(findings)
}

func logFindings(log *zap.Logger, instance string, findings []validate.ScanFinding) {
	validate.LogFindings(log, instance, findings)
}

func jsonUnmarshalString(raw json.RawMessage, out *string) error {
	return json.Unmarshal(raw, out)
}
