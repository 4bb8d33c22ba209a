package server

import (
	"database/sql"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"

	"github.com/beexponential/insights/internal/events"
	"github.com/beexponential/insights/internal/logger"
)

// initEvents builds the global events dispatcher from the sinks file. A sink
// that cannot be created is logged and left out.
func initEvents(path string, db *sql.DB, dialect ormdriver.Dialect, tablePrefix string) error {
	evtConf, err := events.LoadConfig(path)
	if err != nil {
		return err
	}
	sinks, err := evtConf.BuildSinks()
	if err != nil {
		logger.L.Error("event sinks", "err", err)
	}
	var dlq events.DLQ
	if db != nil {
		dlq = &events.SQLDLQ{DB: db, Dialect: dialect, TablePrefix: tablePrefix}
	}
	events.Default = events.NewDispatcher(evtConf, dlq, sinks...)
	logger.L.Info("events dispatcher ready", "sinks", len(sinks))
	return nil
}
