package envcfg

import (
	"log/slog"
	"strings"
)

// catalogKeyword enables metering when it appears
// anywhere in the service-binding catalog document.
const catalogKeyword = "hana"

// MeteringEnabled reports whether any recognized
// enablement signal is present: a license server URL
// (new or legacy name), the catalog keyword inside the
// service-binding document, or the explicit override
// flag. The result is never cached; build and run
// containers may disagree.
func (e Env) MeteringEnabled() bool {
	if _, ok := e.Lookup(LicenseServerURLVar); ok {
		return true
	}

	if _, ok := e.Lookup(RuntimeLicenseServerURLVar); ok {
		return true
	}

	if catalog, ok := e.Lookup(ServiceCatalogVar); ok {
		if strings.Contains(
			strings.ToLower(catalog), catalogKeyword,
		) {
			return true
		}
	}

	if flag, ok := e.Lookup(OverrideVar); ok {
		switch strings.ToLower(flag) {
		case "1", "true", "yes":
			return true
		default:
			slog.Info(
				"ignoring unrecognized override value",
				"var", OverrideVar,
				"value", flag,
			)
		}
	}

	return false
}
