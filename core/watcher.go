package core

import (
	"time"

	"go.uber.org/zap"
)

// initSchemaWatcher initializes the schema file watcher
func (g *GraphJin) initSchemaWatcher() error {
	gj := g.Load().(*graphjinEngine)

	// no schema polling in production or for inline schemas
	if gj.prod || len(gj.schemaData) != 0 {
		return nil
	}

	ps := gj.conf.SchemaPollDuration

	switch {
	case ps < (1 * time.Second):
		return nil

	case ps < (5 * time.Second):
		ps = 10 * time.Second
	}

	go func() {
		g.startSchemaWatcher(ps)
	}()
	return nil
}

// startSchemaWatcher reloads the engine whenever the schema file changes
func (g *GraphJin) startSchemaWatcher(ps time.Duration) {
	ticker := time.NewTicker(ps)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
		}

		changed, err := g.schemaChanged()
		if err != nil {
			g.logger().Warn("schema watcher", zap.Error(err))
			continue
		}
		if !changed {
			continue
		}

		g.logger().Info("schema change detected. reinitializing...")

		if err := g.Reload(); err != nil {
			g.logger().Error("schema reload", zap.Error(err))
		}
	}
}

// schemaChanged reports whether the schema file was modified since the
// engine was built
func (g *GraphJin) schemaChanged() (bool, error) {
	gj := g.Load().(*graphjinEngine)

	mt, err := gj.schemaModTime()
	if err != nil {
		return false, err
	}
	return !mt.Equal(gj.schemaMod), nil
}

func (g *GraphJin) logger() *zap.Logger {
	return g.Load().(*graphjinEngine).log
}

func (gj *graphjinEngine) schemaModTime() (time.Time, error) {
	fi, err := gj.fs.Stat(gj.conf.SchemaFile)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}
