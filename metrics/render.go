package metrics

import (
	"io"
	"iter"
	"math"
	"strconv"
	"strings"
)

// Render yields the registry in text exposition format, one line per element
// without the trailing newline. Each metric is collected only when the
// sequence reaches it.
func (r *Registry) Render() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, m := range r.snapshot() {
			f := m.Collect()
			if !yield("# HELP " + f.Name + " " + escapeHelp(f.Help)) {
				return
			}
			if !yield("# TYPE " + f.Name + " " + string(f.Type)) {
				return
			}
			for _, s := range f.Series {
				if !yield(sampleLine(f.Name, s)) {
					return
				}
			}
		}
	}
}

// WriteTo writes every rendered line followed by a newline.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for line := range r.Render() {
		n, err := io.WriteString(w, line+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func sampleLine(name string, s Series) string {
	var b strings.Builder
	b.WriteString(name)
	if len(s.Labels) > 0 {
		b.WriteByte('{')
		for i, l := range s.Labels {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(l.Name)
			b.WriteString("=\"")
			b.WriteString(escapeLabelValue(l.Value))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(formatValue(s.Value))
	return b.String()
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.FormatInt(int64(v), 10)
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

var labelValueEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

func escapeLabelValue(v string) string {
	return labelValueEscaper.Replace(v)
}
