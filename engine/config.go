package engine

// Config holds deployment-level knobs, as distinct from the consensus
// parameters in types.Params: these are choices a host makes about which
// features are turned on and what to do on completion, not protocol
// constants every honest node must agree on.
type Config struct {
	// EnableDirectSend gates try_finalize entirely: when false, no
	// candidate is ever completed, mirroring the spork/feature-flag the
	// protocol this engine was adapted from reads before running its
	// instant-lock path.
	EnableDirectSend bool
	// EnableBlockFiltering toggles the host's optional compact-block
	// filtering of lock-bearing transactions. The engine itself does not
	// consult this; it is surfaced only via the FeatureFlags interface
	// for collaborators that want it.
	EnableBlockFiltering bool
	// EnableLiteMode marks this node as a lite/pruned node. The engine
	// does not change behavior on this flag; hosts use it to decide
	// whether to run a validator at all.
	EnableLiteMode bool
	// NotifyCommand, if non-empty, is a shell command template run
	// fire-and-forget whenever a candidate completes, with every "%s"
	// replaced by the locked transaction's hex hash.
	NotifyCommand string
}

// DefaultConfig returns a config with directsend enabled and no notify hook.
func DefaultConfig() *Config {
	return &Config{EnableDirectSend: true}
}

// DirectSendEnabled implements FeatureFlags.
func (c *Config) DirectSendEnabled() bool { return c.EnableDirectSend }

// BlockFilteringEnabled implements FeatureFlags.
func (c *Config) BlockFilteringEnabled() bool { return c.EnableBlockFiltering }

// LiteMode implements FeatureFlags.
func (c *Config) LiteMode() bool { return c.EnableLiteMode }
