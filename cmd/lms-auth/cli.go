package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	auth "github.com/savvyindians/go-lms-auth"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = term.IsTerminal

	errHelp = errors.New("help provided")
)

type commandLine struct {
	app *App
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  serve [-addr ADDR]                                   - run the HTTP server")
	fmt.Fprintln(cli.out, "  ensure-superuser [-username U] [-email E] [-prompt]  - create or update the administrator")
	fmt.Fprintln(cli.out, "  create-account -email E -role ROLE [-username U] ... - create an account with its profile")
	fmt.Fprintln(cli.out, "  delete-user -id UUID                                 - delete an account and its profiles")
	fmt.Fprintln(cli.out, "  purge-sessions                                       - remove expired sql sessions")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "serve":
		cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
		addr := cmd.String("addr", cli.app.config.Server.Addr, "Listen address")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.serve(ctx, *addr)

	case "ensure-superuser":
		cmd := flag.NewFlagSet("ensure-superuser", flag.ContinueOnError)
		username := cmd.String("username", cli.app.config.Superuser.Username, "Administrator username")
		email := cmd.String("email", cli.app.config.Superuser.Email, "Administrator email")
		prompt := cmd.Bool("prompt", false, "Prompt for the password instead of reading SUPERUSER_PASSWORD")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *username == "" || *email == "" {
			cmd.Usage()
			return errHelp
		}

		password := cli.app.config.Superuser.Password
		if *prompt {
			pwd, err := cli.readPassword()
			if err != nil {
				return err
			}
			password = pwd
		}
		return cli.ensureSuperuser(ctx, *username, *email, password)

	case "create-account":
		cmd := flag.NewFlagSet("create-account", flag.ContinueOnError)
		msg := auth.CreateAccountMessage{}
		role := cmd.String("role", string(auth.RoleParticipant), "participant, lecturer, department_head, administrator or guardian")
		cmd.StringVar(&msg.Username, "username", "", "Username, derived from the email when empty")
		cmd.StringVar(&msg.Email, "email", "", "Email address")
		cmd.StringVar(&msg.Phone, "phone", "", "Phone number")
		cmd.StringVar(&msg.FirstName, "first-name", "", "First name")
		cmd.StringVar(&msg.LastName, "last-name", "", "Last name")
		cmd.StringVar(&msg.Program, "program", "", "Program id")
		cmd.StringVar(&msg.ParticipantProfile, "participant-profile", "", "Participant profile id followed by a guardian")
		cmd.BoolVar(&msg.Inactive, "inactive", false, "Create the account inactive")
		prompt := cmd.Bool("prompt", false, "Prompt for a password, the account is unusable until reset otherwise")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if msg.Email == "" {
			cmd.Usage()
			return errHelp
		}
		msg.Role = auth.Role(*role)

		if *prompt {
			pwd, err := cli.readPassword()
			if err != nil {
				return err
			}
			msg.Password = pwd
		}
		return cli.createAccount(ctx, msg)

	case "delete-user":
		cmd := flag.NewFlagSet("delete-user", flag.ContinueOnError)
		rawID := cmd.String("id", "", "User id")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		id, err := uuid.Parse(*rawID)
		if err != nil {
			cmd.Usage()
			return errHelp
		}
		return cli.deleteUser(ctx, id)

	case "purge-sessions":
		return cli.purgeSessions(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	if !isTerminalFunc(int(syscall.Stdin)) {
		return "", errors.New("password prompt needs a terminal")
	}
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errors.New("password can not be empty")
	}
	return string(pwd), nil
}

func (cli *commandLine) serve(ctx context.Context, addr string) error {
	if err := WithHTTPServer(cli.app); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- cli.app.fiberApp.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return cli.app.fiberApp.ShutdownWithContext(shutdownCtx)
}

func (cli *commandLine) ensureSuperuser(ctx context.Context, username, email, password string) error {
	handler := auth.NewEnsureSuperuserHandler(cli.app.repo, cli.app.hasher).
		WithLogger(cli.app.GetLogger("superuser"))

	return handler.Execute(ctx, auth.EnsureSuperuserMessage{
		Username: username,
		Email:    email,
		Password: password,
		OnResponse: func(res *auth.EnsureSuperuserResponse) {
			fmt.Fprintf(cli.out, "superuser %s: %s\n", username, res.Action)
			if res.GeneratedPassword != "" {
				fmt.Fprintf(cli.out, "generated password: %s\n", res.GeneratedPassword)
			}
		},
	})
}

func (cli *commandLine) createAccount(ctx context.Context, msg auth.CreateAccountMessage) error {
	handler := auth.NewCreateAccountHandler(cli.app.repo, cli.app.hasher).
		WithLogger(cli.app.GetLogger("accounts")).
		WithActivitySink(cli.app.activity).
		WithPhoneRegion(cli.app.config.Auth.PhoneRegion)

	msg.OnResponse = func(user *auth.User) {
		fmt.Fprintf(cli.out, "created %s %s (%s)\n", user.Role.Label(), user.Username, user.ID)
	}

	return handler.Execute(ctx, msg)
}

func (cli *commandLine) deleteUser(ctx context.Context, id uuid.UUID) error {
	handler := auth.NewDeleteUserHandler(cli.app.repo).
		WithSessionRevoker(cli.app.sessions).
		WithAvatarHandler(cli.app.avatars).
		WithLogger(cli.app.GetLogger("accounts")).
		WithActivitySink(cli.app.activity)

	if err := handler.Execute(ctx, auth.DeleteUserMessage{UserID: id}); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %s\n", id)
	return nil
}

func (cli *commandLine) purgeSessions(ctx context.Context) error {
	store, ok := cli.app.store.(*auth.SQLSessionStore)
	if !ok {
		fmt.Fprintln(cli.out, "session store expires sessions on its own")
		return nil
	}

	n, err := store.PurgeExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "purged %d expired sessions\n", n)
	return nil
}
