package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/pavelanni/interviewer/internal/catalog"
	"github.com/pavelanni/interviewer/internal/client"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/session"
)

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run an interactive practice interview in the terminal",
		RunE:  runPractice,
	}
	addClientFlags(cmd)
	f := cmd.Flags()
	f.Int("eval-concurrency", session.DefaultEvalConcurrency, "Answers evaluated in parallel")
	f.Duration("eval-timeout", session.DefaultEvalTimeout, "Overall time allowed for evaluating a session")
	addLogFlags(cmd)
	return cmd
}

// practice drives a session.App from terminal prompts.
type practice struct {
	app *session.App
	api *client.Client
}

const (
	menuStart      = "Start interview"
	menuCustomRole = "Add custom role"
	menuSignIn     = "Sign in"
	menuSignUp     = "Sign up"
	menuSignOut    = "Sign out"
	menuQuit       = "Quit"

	navNext     = "Next question"
	navPrevious = "Previous question"
	navReplace  = "Replace this question"
	navFinish   = "Finish and evaluate"
	navAbandon  = "Abandon session"
)

func runPractice(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	api := newClient(v)
	app := session.NewApp(api, session.NewFileStore(v.GetString("state-file")), session.Config{
		EvalConcurrency: v.GetInt("eval-concurrency"),
		EvalTimeout:     v.GetDuration("eval-timeout"),
	})
	if err := app.Restore(); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if app.State().Token != "" {
		if r := app.LoadUser(ctx); !r.Success {
			slog.Warn("could not refresh user", "error", r.Error)
		}
	}

	p := &practice{app: app, api: api}
	err := p.loop(ctx)
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}
	return err
}

func (p *practice) loop(ctx context.Context) error {
	for {
		s := p.app.State()
		items := []string{menuStart, menuCustomRole}
		if s.User != nil {
			fmt.Printf("\nSigned in as %s\n", s.User.FullName)
			items = append(items, menuSignOut)
		} else {
			items = append(items, menuSignIn, menuSignUp)
		}
		items = append(items, menuQuit)

		_, choice, err := (&promptui.Select{Label: "What next?", Items: items}).Run()
		if err != nil {
			return err
		}

		switch choice {
		case menuStart:
			err = p.interview(ctx)
		case menuCustomRole:
			err = p.addRole(ctx)
		case menuSignIn:
			err = p.signIn(ctx, false)
		case menuSignUp:
			err = p.signIn(ctx, true)
		case menuSignOut:
			p.app.SignOut(ctx)
			fmt.Println("Signed out.")
		case menuQuit:
			return nil
		}
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return err
			}
			if !errors.Is(err, promptui.ErrAbort) {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
		}
	}
}

func (p *practice) roles(ctx context.Context) []string {
	builtin, err := p.api.Roles(ctx)
	if err != nil || len(builtin) == 0 {
		slog.Debug("using local role list", "error", err)
		return catalog.AllRoles(p.app.State().CustomRoles)
	}
	return append(builtin, p.app.State().CustomRoles...)
}

func (p *practice) interview(ctx context.Context) error {
	roles := p.roles(ctx)
	_, role, err := (&promptui.Select{Label: "Job role", Items: roles, Size: 10}).Run()
	if err != nil {
		return err
	}
	p.app.SetJobRole(role)

	fmt.Println("Preparing questions...")
	if err := p.app.StartSession(ctx); err != nil {
		return err
	}

	for {
		s := p.app.State()
		q, ok := s.Current()
		if !ok {
			return session.ErrNotActive
		}
		fmt.Printf("\nQuestion %d of %d [%s, %s]\n%s\n", s.CurrentIndex+1, len(s.Questions), q.Difficulty, q.Category, q.Question)
		if q.Context != "" {
			fmt.Println(q.Context)
		}

		answer, err := (&promptui.Prompt{Label: "Answer", Default: s.Answers[s.CurrentIndex], AllowEdit: true}).Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				p.app.ResetSession()
			}
			return err
		}
		if err := p.app.SaveAnswer(s.CurrentIndex, answer); err != nil {
			return err
		}

		var nav []string
		if s.CurrentIndex < len(s.Questions)-1 {
			nav = append(nav, navNext)
		}
		if s.CurrentIndex > 0 {
			nav = append(nav, navPrevious)
		}
		nav = append(nav, navReplace, navFinish, navAbandon)
		_, choice, err := (&promptui.Select{Label: "Navigate", Items: nav}).Run()
		if err != nil {
			return err
		}

		switch choice {
		case navNext:
			p.app.Next()
		case navPrevious:
			p.app.Previous()
		case navReplace:
			if err := p.app.ReplaceCurrentQuestion(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
		case navAbandon:
			p.app.ResetSession()
			fmt.Println("Session abandoned.")
			return nil
		case navFinish:
			return p.finish(ctx)
		}
	}
}

func (p *practice) finish(ctx context.Context) error {
	fmt.Println("Evaluating answers...")
	rec, err := p.app.CompleteSession(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s: %d of %d answered (%.0f%%) in %s\n", rec.JobRole, rec.AnsweredQuestions, rec.TotalQuestions,
		rec.CompletionRate, (time.Duration(rec.Duration) * time.Millisecond).Round(time.Second))
	for i, a := range rec.Answers {
		fmt.Printf("\n%d. %s\n", i+1, a.Question)
		if a.Evaluation == nil {
			fmt.Println("   not answered")
			continue
		}
		printEvaluation(a.Evaluation)
	}
	return nil
}

func printEvaluation(e *model.Evaluation) {
	if e.Failed {
		fmt.Println("   " + e.Feedback)
		return
	}
	fmt.Printf("   Score: %.1f/10\n   %s\n", e.Score, e.Feedback)
	for _, s := range e.Strengths {
		fmt.Println("   + " + s)
	}
	for _, s := range e.Improvements {
		fmt.Println("   - " + s)
	}
}

func (p *practice) addRole(ctx context.Context) error {
	custom := p.app.State().CustomRoles
	prompt := promptui.Prompt{
		Label: "Custom role",
		Validate: func(s string) error {
			_, err := catalog.ValidateCustomRole(s, custom)
			return err
		},
	}
	role, err := prompt.Run()
	if err != nil {
		return err
	}
	if err := p.app.AddCustomRole(ctx, role); err != nil {
		return err
	}
	fmt.Printf("Added %q.\n", strings.TrimSpace(role))
	return nil
}

func (p *practice) signIn(ctx context.Context, register bool) error {
	email, err := (&promptui.Prompt{Label: "Email"}).Run()
	if err != nil {
		return err
	}
	password, err := (&promptui.Prompt{Label: "Password", Mask: '*'}).Run()
	if err != nil {
		return err
	}

	var r session.Result
	if register {
		name, err := (&promptui.Prompt{Label: "Full name"}).Run()
		if err != nil {
			return err
		}
		r = p.app.SignUp(ctx, email, password, name)
	} else {
		r = p.app.SignIn(ctx, email, password)
	}
	if !r.Success {
		return errors.New(r.Error)
	}
	fmt.Printf("Welcome, %s.\n", p.app.State().User.FullName)
	return nil
}
