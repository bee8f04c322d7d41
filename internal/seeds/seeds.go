package seeds

import "time"

// Options selects what SeedAll creates. Empty fields skip that seed.
type Options struct {
	AdminUsername string
	AdminPassword string
	DemoFile      string
	Now           time.Time
}

func SeedAll(opts Options) error {
	if opts.AdminUsername != "" {
		if err := SeedAdmin(opts.AdminUsername, opts.AdminPassword); err != nil {
			return err
		}
	}
	if opts.DemoFile != "" {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		if err := SeedDemoReports(opts.DemoFile, now); err != nil {
			return err
		}
	}
	return nil
}
