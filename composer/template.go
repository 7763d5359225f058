package composer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DefaultInstructions is the system instructions template. It is executed
// with InstructionsData.
const DefaultInstructions = `You are a helpful assistant with access to both documents and real-time web search.
Sources available: {{.Sources}}

Guidelines:
1. If web search data is provided, prioritize it for current/real-time information
2. If document context is provided, use it for factual information from documents
3. If no relevant context is available, clearly state you need to search for information
4. Always provide helpful responses and suggest alternatives when information is limited
5. Be concise but comprehensive
6. Answer in the same language as the user's question`

// InstructionsData is available to instruction templates.
type InstructionsData struct {
	// Sources is the comma-separated list of context sources, or
	// "general knowledge" when there are none.
	Sources string
	Query   string
	// HasMemory reports whether previous conversation is part of the prompt.
	HasMemory bool
}

var templateFuncs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// ParseInstructions compiles an instructions template.
func ParseInstructions(text string) (*template.Template, error) {
	tmpl, err := template.New("instructions").Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse instructions: %w", err)
	}
	return tmpl, nil
}

var defaultInstructions = template.Must(ParseInstructions(DefaultInstructions))

func render(tmpl *template.Template, data InstructionsData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
