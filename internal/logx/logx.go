// Package logx is a thin wrapper over the standard logger, matching the
// logInfo/logError helpers the signaling hub uses: a message plus a bag of
// structured fields, printed with the stdlib logger rather than a third-party
// logging library.
package logx

import (
	"fmt"
	"log"
	"sort"
)

// Fields is an ordered bag of structured fields rendered after the message.
type Fields map[string]interface{}

func render(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf(" %s=%v", k, fields[k])
	}
	return out
}

// Info logs an informational message with optional structured fields.
func Info(component, msg string, fields Fields) {
	log.Printf("[INFO] %s | %s%s", component, msg, render(fields))
}

// Error logs an error with optional structured fields.
func Error(component, msg string, err error, fields Fields) {
	if err != nil {
		log.Printf("[ERROR] %s | %s: %v%s", component, msg, err, render(fields))
		return
	}
	log.Printf("[ERROR] %s | %s%s", component, msg, render(fields))
}
