package config

// Overrides carries values set on the command line. Zero values leave the
// file configuration untouched.
type Overrides struct {
	Port       int
	Host       string
	Debug      bool
	SourceFile string
	Watch      bool
	Storage    string
}

// Apply copies the non-zero overrides onto c and re-validates it.
func (o Overrides) Apply(c *Config) error {
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.Host != "" {
		c.Server.Host = o.Host
	}
	if o.Debug {
		c.Server.Debug = true
	}
	if o.SourceFile != "" {
		c.Playground.SourceFile = o.SourceFile
	}
	if o.Watch {
		c.Playground.Watch = true
	}
	if o.Storage != "" {
		c.Storage.Backend = o.Storage
	}
	return c.Validate()
}
