package main

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/tests"
)

var conf = &core.Config{
	AppName: "Mahudhurio",
	Server:  core.ServerConfig{SecretKey: "secret", JWTExpirationDelta: time.Hour},
}

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)
	return &commandLine{
		conf:     conf,
		students: env.Students,
		ledger:   env.Ledger,
		engine:   env.Engine,
		out:      out,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
			assert.Contains(t, out.String(), "Usage:")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	var gotCmd string
	var gotArgs []string
	prev := gooseRunFunc
	gooseRunFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return errors.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
		default:
			return errors.Errorf("%q: no such command", command)
		}
		gotCmd, gotArgs = command, args
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = prev })

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCmd, gotArgs = "", nil
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil {
				assert.Equal(t, tt.args[1], gotCmd)
				assert.Equal(t, tt.args[2:], gotArgs)
			}
		})
	}
}

func Test_commandLine_issueToken(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"issuetoken"}, wantErr: errHelp},
		{name: "no role", args: []string{"issuetoken", "-name", "Amina"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"issuetoken", "-name", "Amina", "-role", "janitor"}, wantErrStr: "unknown role \"janitor\""},
		{name: "accountant", args: []string{"issuetoken", "-name", "Amina", "-role", echoapi.RoleAccountant, "-email", "amina@test.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	// the last run printed a token signed with the secret key
	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(conf.Server.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Amina", claims.Subject)
	assert.Equal(t, "Amina", claims.Name)
	assert.Equal(t, "amina@test.test", claims.Email)
	assert.Equal(t, echoapi.RoleAccountant, claims.Role)
}

func Test_commandLine_sweep(t *testing.T) {
	cli, env, out := setup(t)
	teacher := env.CreateTeacher(t, "Mr. Baraka")
	env.CreateGroup(t, "Physics", teacher.ID, "", "saturday", "09:00", 90)

	testutil.SetNow(t, testutil.Date(2026, 10, 17, "09:05"))
	require.NoError(t, cli.run([]string{"admin", "sweep"}))
	assert.Equal(t, "cancelled 0 sessions\n", out.String())

	out.Reset()
	testutil.SetNow(t, testutil.Date(2026, 10, 17, "09:20"))
	require.NoError(t, cli.run([]string{"admin", "sweep"}))
	assert.Equal(t, "cancelled 1 sessions\n", out.String())
}

func Test_commandLine_recordPayment(t *testing.T) {
	cli, env, out := setup(t)
	teacher := env.CreateTeacher(t, "Mr. Baraka")
	grp := env.CreateGroup(t, "Physics", teacher.ID, "", "saturday", "09:00", 90)
	stu := env.CreateStudent(t, "Juma")
	env.Enroll(t, stu.ID, grp.ID)

	tests := []cliTest{
		{name: "no args", args: []string{"recordpayment"}, wantErr: errHelp},
		{name: "no sessions", args: []string{"recordpayment", "-code", stu.Code, "-group", grp.ID}, wantErr: errHelp},
		{name: "invalid amount", args: []string{"recordpayment", "-code", stu.Code, "-group", grp.ID, "-sessions", "4", "-amount", "lol"}, wantErrStr: "invalid amount \"lol\""},
		{name: "unknown student", args: []string{"recordpayment", "-code", "999999", "-group", grp.ID, "-sessions", "4"}, wantErr: student.ErrNotFound},
		{name: "paid", args: []string{"recordpayment", "-code", stu.Code, "-group", grp.ID, "-sessions", "4", "-amount", "400"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	enr := env.Enrollment(t, stu.ID, grp.ID)
	assert.Equal(t, 4, enr.SessionsPaidFor)
	assert.Equal(t, "400", enr.LastPaymentAmount.String())
	assert.Contains(t, out.String(), "Juma: 4 sessions paid")
}
