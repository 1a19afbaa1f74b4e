package internal

import (
	"io"
	"os"

	"github.com/starford/maelstrom/internal/insight"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	llm    insight.LLM
	out    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLLM replaces the Gemini model built from the LLM config.
func WithLLM(llm insight.LLM) Option {
	return func(a *application) {
		a.llm = llm
	}
}

// WithLogOutput redirects the server log, which defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

func newApplication(opts []Option) *application {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
