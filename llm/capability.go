package llm

// Capability records whether a provider can be used, decided once from
// configuration at startup.
type Capability struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Available marks provider as usable.
func Available(provider string) Capability {
	return Capability{Provider: provider, Available: true}
}

// Unavailable marks provider as unusable for reason.
func Unavailable(provider, reason string) Capability {
	return Capability{Provider: provider, Reason: reason}
}

// ResolveCapability decides from cfg alone whether the provider is usable.
// Nothing is sent over the network.
func ResolveCapability(cfg Config) Capability {
	switch {
	case cfg.Provider == "":
		return Unavailable("", "no provider configured")
	case cfg.Provider == "custom" && cfg.BaseURL == "":
		return Unavailable(cfg.Provider, "custom provider needs a base URL")
	case !backends[cfg.Provider].local && cfg.APIKey == "":
		return Unavailable(cfg.Provider, "missing API key")
	}
	if _, err := NewProvider(cfg); err != nil {
		return Unavailable(cfg.Provider, err.Error())
	}
	return Available(cfg.Provider)
}
