package validate

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ScanSeverity indicates how serious a scanner finding is.
type ScanSeverity string

const (
	SeverityCritical ScanSeverity = "critical"
	SeverityWarn     ScanSeverity = "warn"
)

// ScanFinding is a single security issue found while scanning a stdio
// instance's script during add (SPEC_FULL's supplemented per-provider scan).
type ScanFinding struct {
	Rule     string
	Severity ScanSeverity
	Line     int    // 0 for full-source rules
	Snippet  string // trimmed line, or "(full-source match)"
}

type lineRule struct {
	name     string
	severity ScanSeverity
	pattern  *regexp.Regexp
}

// sourceRule checks the entire source content; contextPattern (if set) must
// also match for the finding to be recorded (AND logic).
type sourceRule struct {
	name           string
	severity       ScanSeverity
	pattern        *regexp.Regexp
	contextPattern *regexp.Regexp
}

// lineRules are applied to each line of the script.
// sys.stdin / sys.stdout are intentionally not covered here — they are
// legitimate for MCP stdio communication and would create false positives.
var lineRules = []lineRule{
	{
		name:     "dangerous-exec",
		severity: SeverityCritical,
		pattern:  regexp.MustCompile(`\b(subprocess\.|os\.system\s*\(|os\.popen\s*\(|commands\.getoutput\s*\()`),
	},
	{
		name:     "dynamic-code",
		severity: SeverityCritical,
		pattern:  regexp.MustCompile(`\b(exec|eval|compile)\s*\(`),
	},
	{
		name:     "dynamic-import",
		severity: SeverityCritical,
		pattern:  regexp.MustCompile(`\b(__import__|importlib\.import_module)\s*\(`),
	},
}

var sourceRules = []sourceRule{
	{
		name:           "env-harvesting",
		severity:       SeverityCritical,
		pattern:        regexp.MustCompile(`os\.environ`),
		contextPattern: regexp.MustCompile(`\b(requests\.|urllib\.|httpx\.|socket\.connect|aiohttp\.)`),
	},
	{
		name:           "potential-exfil",
		severity:       SeverityWarn,
		pattern:        regexp.MustCompile(`\bopen\s*\([^)]*['"rb]`),
		contextPattern: regexp.MustCompile(`\b(requests\.|urllib\.|httpx\.|socket\.connect|aiohttp\.)`),
	},
	{
		name:           "obfuscated-code",
		severity:       SeverityWarn,
		pattern:        regexp.MustCompile(`\bbase64\b`),
		contextPattern: regexp.MustCompile(`\b(exec|eval)\s*\(`),
	},
}

// ScanScript performs a static security scan on a script file referenced by a
// stdio instance's command or args. Only .py files are processed; every
// other extension returns (nil, nil) — the scan is scoped to the scripting
// runtime the corpus's children actually use.
func ScanScript(filePath string) ([]ScanFinding, error) {
	if !strings.HasSuffix(filePath, ".py") {
		return nil, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("scanner: read %q: %w", filePath, err)
	}

	source := string(data)
	var findings []ScanFinding

	scanner := bufio.NewScanner(strings.NewReader(source))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "#") {
			continue
		}

		for _, rule := range lineRules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, ScanFinding{
					Rule:     rule.name,
					Severity: rule.severity,
					Line:     lineNum,
					Snippet:  stripped,
				})
			}
		}
	}

	for _, rule := range sourceRules {
		if !rule.pattern.MatchString(source) {
			continue
		}
		if rule.contextPattern != nil && !rule.contextPattern.MatchString(source) {
			continue
		}
		findings = append(findings, ScanFinding{
			Rule:     rule.name,
			Severity: rule.severity,
			Line:     0,
			Snippet:  "(full-source match)",
		})
	}

	return findings, nil
}

// HasCritical returns true if any finding has critical severity.
func HasCritical(findings []ScanFinding) bool {
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// LogFindings writes every finding to logger at a level matching its
// severity (warn findings at Warn, critical findings at Error since a
// critical finding blocks the add).
func LogFindings(logger *zap.Logger, instanceName string, findings []ScanFinding) {
	for _, f := range findings {
		fields := []zap.Field{
			zap.String("instance", instanceName),
			zap.String("rule", f.Rule),
			zap.String("snippet", f.Snippet),
		}
		if f.Line > 0 {
			fields = append(fields, zap.Int("line", f.Line))
		}
		if f.Severity == SeverityCritical {
			logger.Error("security scan finding", fields...)
		} else {
			logger.Warn("security scan finding", fields...)
		}
	}
}

// FindScriptArg returns the first .py path referenced by command or args, if
// any — the file ScanScript should be pointed at for a given instance.
func FindScriptArg(command string, args []string) (string, bool) {
	if strings.HasSuffix(command, ".py") {
		return command, true
	}
	for _, a := range args {
		if strings.HasSuffix(a, ".py") {
			return a, true
		}
	}
	return "", false
}
