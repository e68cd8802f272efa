// Package obslog is a small, colored status logger for the matcher daemon,
// retargeted to ProcessedRule/ProcessedNode statuses instead of detection
// severities.
package obslog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/danielsvitols/tornado/internal/model"
)

// VerbosityLevel represents the logging verbosity.
type VerbosityLevel int

const (
	// NormalLevel shows standard output (default).
	NormalLevel VerbosityLevel = iota
	// VerboseLevel shows additional details and timestamps.
	VerboseLevel
)

// ANSI color codes.
const (
	colorReset       = "\033[0m"
	colorRed         = "\033[91m"
	colorGreen       = "\033[92m"
	colorYellow      = "\033[93m"
	colorOrange      = "\033[38;5;208m"
	colorCyan        = "\033[96m"
	colorGray        = "\033[90m"
	colorDimGray     = "\033[38;5;240m"
	colorContextGray = "\033[38;5;8m"
	colorBrightWhite = "\033[97m"
	colorNormalWhite = "\033[37m"
	colorBold        = "\033[1m"
)

var (
	// CurrentVerbosity is the current verbosity level.
	CurrentVerbosity = NormalLevel
	// ShowTimestamps controls whether timestamps are shown.
	ShowTimestamps = false

	checkMark = colorGreen + "✓" + colorReset
	warnMark  = colorYellow + "⚠" + colorReset
	crossMark = colorRed + "✗" + colorReset
	infoMark  = colorGray + "ℹ" + colorReset

	// statusIcons gives each rule/filter status a glyph.
	statusIcons = map[string]string{
		string(model.RuleMatched):          "🟢",
		string(model.RuleNotMatched):       "⚪",
		string(model.RulePartiallyMatched): "🟠",
		string(model.RuleNotProcessed):     "⚫",
		string(model.FilterMatched):        "🟢",
		string(model.FilterNotMatched):     "⚪",
		string(model.FilterInactive):       "⚫",
	}

	// statusColors gives each status a text color.
	statusColors = map[string]string{
		string(model.RuleMatched):          colorGreen,
		string(model.RuleNotMatched):       colorGray,
		string(model.RulePartiallyMatched): colorOrange,
		string(model.RuleNotProcessed):     colorGray,
		string(model.FilterMatched):        colorGreen,
		string(model.FilterNotMatched):     colorGray,
		string(model.FilterInactive):       colorGray,
	}
)

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

// SetVerbosity sets the current verbosity level.
func SetVerbosity(level VerbosityLevel) { CurrentVerbosity = level }

// SetTimestamps enables or disables timestamps.
func SetTimestamps(enabled bool) { ShowTimestamps = enabled }

func timestamp() string {
	if ShowTimestamps {
		return colorDimGray + time.Now().Format("15:04:05") + colorReset + " "
	}
	return ""
}

func Info(format string, args ...any) {
	if CurrentVerbosity < NormalLevel {
		return
	}
	log.Println(timestamp() + infoMark + " " + fmt.Sprintf(format, args...))
}

func Warn(format string, args ...any) {
	log.Println(timestamp() + warnMark + " " + fmt.Sprintf(format, args...))
}

func Error(format string, args ...any) {
	log.Println(timestamp() + crossMark + " " + fmt.Sprintf(format, args...))
}

func Success(format string, args ...any) {
	if CurrentVerbosity < NormalLevel {
		return
	}
	log.Println(timestamp() + checkMark + " " + fmt.Sprintf(format, args...))
}

// Verbose logs a message only in verbose mode.
func Verbose(format string, args ...any) {
	if CurrentVerbosity < VerboseLevel {
		return
	}
	log.Println(timestamp() + infoMark + " " + fmt.Sprintf(format, args...))
}

func statusLabel(status string) string {
	color, ok := statusColors[status]
	if !ok {
		color = colorCyan
	}
	icon := statusIcons[status]
	if icon == "" {
		icon = "•"
	}
	return icon + " " + color + colorBold + strings.ToUpper(status) + colorReset
}

// Rule logs the outcome of a single evaluated rule: ruleName's status, a
// one-line title (typically its message or the ruleset it belongs to), and
// optional extra context shown only in verbose mode (e.g. extracted
// variables, action IDs rendered).
func Rule(ruleName string, status model.RuleStatus, title, extra string) {
	if CurrentVerbosity >= VerboseLevel {
		fmt.Println()
	}

	ts := timestamp()
	statusText := statusLabel(string(status))

	color, ok := statusColors[string(status)]
	if !ok {
		color = colorCyan
	}

	nameStyled := colorBrightWhite + colorBold + ruleName + colorReset
	colonStyled := color + colorBold + ":" + colorReset

	spacesNeeded := 12 - len(ruleName) - 1
	if spacesNeeded < 0 {
		spacesNeeded = 0
	}
	nameDisplay := nameStyled + colonStyled + strings.Repeat(" ", spacesNeeded)

	coloredTitle := colorNormalWhite + title + colorReset

	log.Println(fmt.Sprintf("%s%s %s %s", ts, statusText, nameDisplay, coloredTitle))

	if extra != "" && CurrentVerbosity >= VerboseLevel {
		indent := "         "
		if ShowTimestamps {
			indent = "          "
		}
		log.Printf("%s%s└─ %s%s\n", indent, colorContextGray, extra, colorReset)
	}
}

// RuleContext formats a set of key/value pairs for Rule's extra-context
// line (e.g. rendered action IDs, extracted variable names).
func RuleContext(context map[string]string) string {
	if len(context) == 0 {
		return ""
	}
	parts := make([]string, 0, len(context))
	for k, v := range context {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, " ")
}

// ProcessedEvent logs a one-line summary for every Matched or
// PartiallyMatched rule found in result, walking the node tree
// (NotMatched/NotProcessed/Inactive rules are skipped to keep normal-mode
// output focused on actionable outcomes; verbose mode still sees them via
// Verbose calls from the caller if desired).
func ProcessedEvent(traceID string, result model.ProcessedNode) {
	walkNode(traceID, result)
}

func walkNode(traceID string, node model.ProcessedNode) {
	switch node.Kind {
	case model.NodeFilter:
		for _, child := range node.Nodes {
			walkNode(traceID, child)
		}
	case model.NodeRuleset:
		for _, rule := range node.Rules.Rules {
			if rule.Status != model.RuleMatched && rule.Status != model.RulePartiallyMatched {
				continue
			}
			extra := fmt.Sprintf("trace_id=%s actions=%d", traceID, len(rule.Actions))
			if rule.Message != "" {
				extra = rule.Message + " " + extra
			}
			Rule(node.Name+"."+rule.Name, rule.Status, traceID, extra)
		}
	}
}
