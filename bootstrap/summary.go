package bootstrap

import (
	"fmt"
	"io"
	"time"

	"github.com/kbukum/injectkit/di"
)

// TelemetryInfo records an exporter started during bootstrap.
type TelemetryInfo struct {
	Signal   string
	Endpoint string
}

// Summary tracks and displays the application bootstrap process.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	telemetry       []TelemetryInfo
}

// NewSummary creates a new bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackTelemetry records an exporter.
func (s *Summary) TrackTelemetry(signal, endpoint string) {
	s.telemetry = append(s.telemetry, TelemetryInfo{Signal: signal, Endpoint: endpoint})
}

// Display writes the summary to w: telemetry, the bindings visible from c
// and the functions c injects.
func (s *Summary) Display(w io.Writer, c *di.Container) {
	fmt.Fprintf(w, "\n%s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.telemetry) > 0 {
		fmt.Fprintf(w, "\nTelemetry\n")
		for i, t := range s.telemetry {
			fmt.Fprintf(w, "   %s %s -> %s\n", treePrefix(i, len(s.telemetry)), t.Signal, t.Endpoint)
		}
	}

	if c == nil {
		fmt.Fprintln(w)
		return
	}

	regs := c.Registrations()
	fmt.Fprintf(w, "\nBindings (%d)\n", len(regs))
	if len(regs) == 0 {
		fmt.Fprintf(w, "   └── none\n")
	}
	for i, r := range regs {
		scope := "local"
		if r.Depth > 0 {
			scope = fmt.Sprintf("parent+%d", r.Depth)
		}
		fmt.Fprintf(w, "   %s %s %s [%s]\n", treePrefix(i, len(regs)), modeIcon(r.Mode), r.Key, scope)
	}

	injectors := c.Injectors()
	if len(injectors) > 0 {
		fmt.Fprintf(w, "\nInjected (%d)\n", len(injectors))
		for i, inj := range injectors {
			kind := "scoped"
			if inj.Cached() {
				kind = "cached"
			}
			fmt.Fprintf(w, "   %s %s (%s)\n", treePrefix(i, len(injectors)), inj.Name(), kind)
		}
	}
	fmt.Fprintln(w)
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func modeIcon(m di.RegistrationMode) string {
	switch m {
	case di.Value:
		return "●"
	case di.Factory:
		return "◆"
	case di.Lazy:
		return "○"
	default:
		return "?"
	}
}
