package metrics

import (
	"io"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DumpText writes the registry's current values in Prometheus text-exposition
// format to w. Used only by the one-shot `depwatch metrics-dump` CLI
// subcommand -- the daemon itself never serves metrics over the network.
func DumpText(reg *prom.Registry, w io.Writer) error {
	if reg == nil {
		return nil
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
