// Command quizctl takes a quiz in the terminal, either against a running
// gateway or fully offline from a quiz file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	"github.com/mind-engage/mindengage-quiz/internal/cli"
	"github.com/mind-engage/mindengage-quiz/internal/client"
	"github.com/mind-engage/mindengage-quiz/internal/library"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/store"
)

type options struct {
	url     string
	user    string
	pass    string
	token   string
	quizID  string
	file    string
	offline bool
	env     string
}

func main() {
	var o options
	flag.StringVar(&o.url, "url", "http://localhost:8080", "gateway base URL")
	flag.StringVar(&o.user, "user", "", "login username")
	flag.StringVar(&o.pass, "pass", "", "login password")
	flag.StringVar(&o.token, "token", os.Getenv("QUIZ_TOKEN"), "bearer token, skips login")
	flag.StringVar(&o.quizID, "quiz", "", "quiz id to take")
	flag.StringVar(&o.file, "file", "", "quiz definition JSON (offline mode)")
	flag.BoolVar(&o.offline, "offline", false, "run against an in-memory store")
	flag.StringVar(&o.env, "log-env", "local", "logging environment (local|prod)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	log := logging.New(o.env, os.Stderr)

	var (
		def quiz.Definition
		gw  attempt.Gateway
		err error
	)
	if o.offline {
		def, gw, err = offline(ctx, o)
	} else {
		def, gw, err = remote(ctx, o)
	}
	if err != nil {
		return err
	}

	app := &cli.App{Def: def, Gateway: gw, In: os.Stdin, Out: os.Stdout, Log: log}
	return app.Run(ctx)
}

func offline(ctx context.Context, o options) (quiz.Definition, attempt.Gateway, error) {
	if o.file == "" {
		return quiz.Definition{}, nil, errors.New("-offline needs -file")
	}
	def, err := library.LoadFile(o.file)
	if err != nil {
		return quiz.Definition{}, nil, err
	}
	s := store.NewInMemoryStore()
	if err := s.PutQuiz(ctx, def); err != nil {
		return quiz.Definition{}, nil, err
	}
	user := o.user
	if user == "" {
		user = "local"
	}
	return def, store.UserGateway{Store: s, UserID: user}, nil
}

func remote(ctx context.Context, o options) (quiz.Definition, attempt.Gateway, error) {
	if o.quizID == "" {
		return quiz.Definition{}, nil, errors.New("-quiz is required")
	}
	token := o.token
	if token == "" {
		if o.user == "" {
			return quiz.Definition{}, nil, errors.New("-user/-pass or -token is required")
		}
		var err error
		if token, err = client.Login(ctx, o.url, o.user, o.pass); err != nil {
			return quiz.Definition{}, nil, err
		}
	}
	c := client.New(client.Config{BaseURL: o.url, AccessToken: token, Timeout: 30 * time.Second})
	def, err := c.GetQuiz(ctx, o.quizID)
	if err != nil {
		return quiz.Definition{}, nil, err
	}
	return def, c, nil
}
