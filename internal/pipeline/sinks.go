package pipeline

import (
	"hcai-scorer/internal/export"
	"hcai-scorer/internal/model"
)

type frameKind int

const (
	framePredictions frameKind = iota
	frameWithFactors
	frameCatalyst
)

// target groups the sinks that receive the same frame.
type target struct {
	kind  frameKind
	sinks []export.Sink
}

// buildTargets opens every configured sink. The CSV file gets the bare
// predictions, databases get predictions with factors, and SQL Server gets the
// Catalyst layout when it is enabled.
func (r *Runner) buildTargets(m *model.TrainedModel) ([]target, error) {
	s := r.settings
	var (
		csv      []export.Sink
		factors  []export.Sink
		catalyst []export.Sink
	)

	if s.OutputPath != "" {
		csv = append(csv, export.NewCSVSink(s.OutputPath, s.IncludeIndex))
	}

	closeOpened := func() {
		export.CloseAll(factors)
		export.CloseAll(catalyst)
	}

	if s.SQLite.Path != "" {
		sink, err := export.NewSQLSink(export.DriverSQLite, export.BuildSQLiteDSN(s.SQLite.Path), s.SQLite.Table, "")
		if err != nil {
			closeOpened()
			return nil, err
		}
		factors = append(factors, sink)
	}

	if s.MySQL.Enabled() {
		dsn := export.BuildMySQLDSN(s.MySQL.Server, s.MySQL.Database, s.MySQL.User, s.MySQL.Password)
		sink, err := export.NewSQLSink(export.DriverMySQL, dsn, s.MySQL.Table, "")
		if err != nil {
			closeOpened()
			return nil, err
		}
		factors = append(factors, sink)
	}

	if s.MSSQL.Enabled() {
		dsn := export.BuildMSSQLDSN(s.MSSQL.Server, s.MSSQL.Database, s.MSSQL.User, s.MSSQL.Password)
		sink, err := export.NewSQLSink(export.DriverSQLServer, dsn, s.MSSQL.Table, s.MSSQL.Schema)
		if err != nil {
			closeOpened()
			return nil, err
		}
		if s.Catalyst {
			catalyst = append(catalyst, sink)
		} else {
			factors = append(factors, sink)
		}
	}

	if s.BoltPath != "" {
		sink, err := export.NewBoltSink(s.BoltPath, m.Source())
		if err != nil {
			closeOpened()
			return nil, err
		}
		factors = append(factors, sink)
	}

	var targets []target
	if len(csv) > 0 {
		targets = append(targets, target{kind: framePredictions, sinks: csv})
	}
	if len(factors) > 0 {
		targets = append(targets, target{kind: frameWithFactors, sinks: factors})
	}
	if len(catalyst) > 0 {
		targets = append(targets, target{kind: frameCatalyst, sinks: catalyst})
	}
	return targets, nil
}
