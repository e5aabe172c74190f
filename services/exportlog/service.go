// Package exportlog keeps a local history of export runs so users can
// see what was downloaded, when, and whether it worked.
package exportlog

import (
	"context"
	"database/sql"
	"time"

	"edubag/lib/timezone"
	"edubag/services/exportlog/db"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/exportlog")

type Status string

const (
	StatusOk     Status = "ok"
	StatusFailed Status = "failed"
)

type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

type RecordParams struct {
	Platform  string
	Operation string
	Course    string
	// paths written by the export, in the order they were produced
	Files     []string
	StartedAt time.Time
	Err       error
}

// Record writes one export run to the log and returns its id. The run
// is marked failed when params.Err is non-nil.
func (s Service) Record(ctx context.Context, params RecordParams) (string, error) {
	ctx, span := tracer.Start(ctx, "Record")
	defer span.End()

	span.SetAttributes(
		attribute.String("platform", params.Platform),
		attribute.String("operation", params.Operation),
	)

	id, err := random.String(16)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate run id")
		return "", err
	}

	status := StatusOk
	detail := ""
	if params.Err != nil {
		status = StatusFailed
		detail = params.Err.Error()
	}
	startedAt := params.StartedAt
	if startedAt.IsZero() {
		startedAt = timezone.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.CreateExportRun(ctx, db.CreateExportRunParams{
		ID:         id,
		Platform:   params.Platform,
		Operation:  params.Operation,
		Course:     params.Course,
		Status:     string(status),
		Detail:     detail,
		Startedat:  startedAt.Unix(),
		Finishedat: timezone.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	for i, path := range params.Files {
		err := txqry.CreateExportRunFile(ctx, db.CreateExportRunFileParams{
			Runid:    id,
			Position: int64(i),
			Path:     path,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return id, nil
}

type Run struct {
	Id         string
	Platform   string
	Operation  string
	Course     string
	Status     Status
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []string
}

// History returns the most recent export runs, newest first.
func (s Service) History(ctx context.Context, limit int) ([]Run, error) {
	ctx, span := tracer.Start(ctx, "History")
	defer span.End()

	rows, err := s.qry.ListExportRuns(ctx, int64(limit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out []Run
	for _, row := range rows {
		files, err := s.qry.GetExportRunFiles(ctx, row.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, Run{
			Id:         row.ID,
			Platform:   row.Platform,
			Operation:  row.Operation,
			Course:     row.Course,
			Status:     Status(row.Status),
			Detail:     row.Detail,
			StartedAt:  time.Unix(row.Startedat, 0).In(timezone.Location),
			FinishedAt: time.Unix(row.Finishedat, 0).In(timezone.Location),
			Files:      files,
		})
	}
	return out, nil
}
