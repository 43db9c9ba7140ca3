package jar

import "strings"

// ParseManifest reads "Key: Value" attribute lines. A line starting with a
// single space continues the previous value, which is how writers wrap at
// 72 bytes. Parsing stops at the first blank line after the main section.
func ParseManifest(text string) *Manifest {
	m := &Manifest{Attributes: map[string]string{}}

	var key string
	seen := false
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, " ") && key != "" {
			m.Attributes[key] += line[1:]
			continue
		}
		if strings.TrimSpace(line) == "" {
			if seen {
				break
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			key = ""
			continue
		}
		key = strings.TrimSpace(name)
		m.Attributes[key] = strings.TrimSpace(value)
		seen = true
	}

	m.MainClass = m.Attributes["Main-Class"]
	m.CreatedBy = m.Attributes["Created-By"]
	m.BuildJDK = m.Attributes["Build-Jdk"]
	for _, k := range []string{"Implementation-Version", "Specification-Version"} {
		if v := m.Attributes[k]; v != "" {
			m.Version = v
			break
		}
	}
	m.ManifestSize = int64(len(text))
	return m
}
