// Package notify emails a summary of export runs, for instructors who
// schedule exports from cron and want to know what happened.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Mailer struct {
	config SmtpConfig
}

func NewMailer(config SmtpConfig) Mailer {
	return Mailer{config: config}
}

// RunSummary is one line of the report. Status is "ok" or "failed",
// Detail carries the error message for failed runs.
type RunSummary struct {
	Platform   string
	Operation  string
	Course     string
	Status     string
	Detail     string
	Files      []string
	FinishedAt time.Time
}

func buildSummaryBody(runs []RunSummary) string {
	var b strings.Builder
	failed := 0
	for _, run := range runs {
		if run.Status != "ok" {
			failed++
		}
	}
	fmt.Fprintf(&b, "%d export run(s), %d failed.\n", len(runs), failed)

	for _, run := range runs {
		fmt.Fprintf(
			&b, "\n[%s] %s %s (%s) at %s\n",
			run.Status, run.Platform, run.Operation, run.Course,
			run.FinishedAt.Format("Jan 2 15:04"),
		)
		if run.Detail != "" {
			fmt.Fprintf(&b, "    %s\n", run.Detail)
		}
		for _, f := range run.Files {
			fmt.Fprintf(&b, "    %s\n", f)
		}
	}
	return b.String()
}

func (m Mailer) SendExportSummary(ctx context.Context, to []string, runs []RunSummary) error {
	_, span := tracer.Start(ctx, "SendExportSummary")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("edubag <%s>", m.config.EmailAddress)
	mail.To = to
	mail.Subject = fmt.Sprintf("Export summary: %d run(s)", len(runs))
	mail.Text = []byte(buildSummaryBody(runs))

	err := mail.Send(
		fmt.Sprintf("%s:%d", m.config.Server, m.config.Port),
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(fmt.Sprintf("%s:%d", m.config.Server, m.config.Port), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}

	return nil
}
