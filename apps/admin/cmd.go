package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/storage/database"
)

var (
	gooseRunFunc = database.Migrate // mockable

	errHelp = errors.New("help provided")

	// cliActor is recorded on changes made from the command line.
	cliActor = core.Actor{ID: "admin-cli", Name: "Admin CLI"}
)

type commandLine struct {
	conf     *core.Config
	db       *sql.DB
	students *student.Service
	ledger   *ledger.Service
	engine   *attendance.Engine
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                   - run a goose command (up, down, status, version, redo, reset, up-to, down-to)")
	_, _ = fmt.Fprintln(cli.out, "  issuetoken -name NAME -role ROLE [-id ID] [-email EMAIL]   - print an API token for a staff member")
	_, _ = fmt.Fprintln(cli.out, "  sweep                                                    - cancel today's sessions whose teacher never checked in")
	_, _ = fmt.Fprintln(cli.out, "  recordpayment -code CODE -group ID -amount AMOUNT -sessions N - record a payment for an enrollment")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	issueTokenCmd := flag.NewFlagSet("issuetoken", flag.ContinueOnError)
	issueTokenCmd.SetOutput(cli.out)
	tokenName := issueTokenCmd.String("name", "", "The staff member's name.")
	tokenRole := issueTokenCmd.String("role", "", "One of supervisor, accountant, admin.")
	tokenID := issueTokenCmd.String("id", "", "The staff member's ID. Defaults to the name.")
	tokenEmail := issueTokenCmd.String("email", "", "The staff member's email.")

	paymentCmd := flag.NewFlagSet("recordpayment", flag.ContinueOnError)
	paymentCmd.SetOutput(cli.out)
	paymentCode := paymentCmd.String("code", "", "The student's code.")
	paymentGroup := paymentCmd.String("group", "", "The group ID.")
	paymentAmount := paymentCmd.String("amount", "0", "The amount paid.")
	paymentSessions := paymentCmd.Int("sessions", 0, "The number of sessions paid for.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "issuetoken":
		if err := issueTokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenName == "" || *tokenRole == "" {
			issueTokenCmd.Usage()
			return errHelp
		}
		return cli.issueToken(*tokenID, *tokenName, *tokenEmail, *tokenRole)

	case "sweep":
		return cli.sweep()

	case "recordpayment":
		if err := paymentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *paymentCode == "" || *paymentGroup == "" || *paymentSessions <= 0 {
			paymentCmd.Usage()
			return errHelp
		}
		amount, err := decimal.NewFromString(*paymentAmount)
		if err != nil {
			return errors.Errorf("invalid amount %q", *paymentAmount)
		}
		return cli.recordPayment(*paymentCode, *paymentGroup, amount, *paymentSessions)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) issueToken(id, name, email, role string) error {
	if id == "" {
		id = name
	}
	claims := echoapi.NewClaims(core.Actor{ID: id, Name: name, Email: email}, role, cli.conf)
	token, err := echoapi.GenerateToken(claims, cli.conf.Server.SecretKey)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) sweep() error {
	cancelled, err := cli.engine.CancelNoShows(context.Background())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "cancelled %d sessions\n", len(cancelled))
	return nil
}

func (cli *commandLine) recordPayment(code, groupID string, amount decimal.Decimal, sessions int) error {
	ctx := context.Background()
	stu, err := cli.students.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	enr, err := cli.ledger.RecordPayment(ctx, ledger.NewPayment{
		StudentID:     stu.ID,
		GroupID:       groupID,
		Amount:        amount,
		SessionsCount: sessions,
	}, cliActor)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %d sessions paid, %d attended, remaining credit %d\n",
		stu.Name, enr.SessionsPaidFor, enr.SessionsAttended, enr.RemainingCredit())
	return nil
}
