package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go templates.
// Uses {{.VAR_NAME}} syntax to avoid collision with $ in regex patterns and
// passwords that legitimately contain dollar signs.
//
// Examples:
//   - {{.OPENAI_API_KEY}} → value of OPENAI_API_KEY
//   - {{.REDIS_HOST}}:{{.REDIS_PORT}} → hostname:port with both expanded
//
// Missing variables expand to empty string. On parse or execution errors the
// original data is returned unchanged so the YAML parser reports the problem.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split only on first = to handle values with = in them
		if idx := bytes.IndexByte([]byte(env), '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}
	return buf.Bytes()
}
