package constant

// LoopsTemplate is a Go text/template for scaffolding a segment loop bookmark file.
const LoopsTemplate = `# {{ .Title }}
# Segment loops applied by "subloop watch --loops <this file>".
# start/end are seconds or MM:SS.mmm, count is the number of repeats (0 loops forever).
media: {{ printf "%q" .Media }}
loops:
{{- range .Loops }}
  - label: {{ printf "%q" .Label }}
    start: {{ .Start }}
    end: {{ .End }}
    count: {{ .Count }}
{{- else }}
  - label: "first line"
    start: 0
    end: 4.5
    count: 3
{{- end }}
`
