package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBuildInfo registers a build_info gauge fixed at 1 with version and commit labels.
func RegisterBuildInfo(reg prometheus.Registerer, namespace, version, commit string) {
	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information.",
		},
		[]string{"version", "commit"},
	)
	if reg != nil {
		reg.MustRegister(info)
	}
	info.WithLabelValues(version, commit).Set(1)
}
