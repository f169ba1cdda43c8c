package indicator

import "log/slog"

// ReloadConfigs swaps the engine to newConfigs. Indicators whose config key is
// unchanged keep their accumulated state (warm-up history); genuinely new
// indicators start cold. Returns the number of preserved and created
// indicator instances across all symbols.
func (e *Engine) ReloadConfigs(newConfigs []IndicatorConfig) (preserved, created int) {
	for symbol, si := range e.state {
		p, c := si.migrate(newConfigs)
		preserved += p
		created += c
		slog.Debug("indicator set migrated", "symbol", symbol, "preserved", p, "created", c)
	}
	e.configs = newConfigs

	slog.Info("indicator config reloaded",
		"indicators", len(newConfigs), "symbols", len(e.state),
		"preserved", preserved, "created", created)
	return preserved, created
}

// migrate rebuilds si for newConfigs, reusing instances that match by key.
func (si *symbolIndicators) migrate(newConfigs []IndicatorConfig) (preserved, created int) {
	oldByKey := make(map[string]observer, len(si.indicators))
	for i, cfg := range si.configs {
		oldByKey[cfg.Key()] = si.indicators[i]
	}

	inds := make([]observer, len(newConfigs))
	for i, cfg := range newConfigs {
		if existing, ok := oldByKey[cfg.Key()]; ok {
			inds[i] = existing
			preserved++
			continue
		}
		inds[i] = cfg.build()
		created++
	}

	si.indicators = inds
	si.configs = newConfigs
	return preserved, created
}
