package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Chooser picks one option from a list. Implementations decide how: asking
// a human, or picking automatically in unattended runs.
type Chooser interface {
	Choose(ctx context.Context, heading string, options []string) (int, error)
}

// AutoChooser picks a pseudo-random option without asking anyone
type AutoChooser struct {
	logger zerolog.Logger
	rng    *rand.Rand
}

// NewAutoChooser creates an automatic chooser. Seed 0 seeds from the clock.
func NewAutoChooser(logger zerolog.Logger, seed int64) *AutoChooser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &AutoChooser{
		logger: logger.With().Str("component", "chooser").Logger(),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (a *AutoChooser) Choose(ctx context.Context, heading string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("no options to choose from")
	}
	idx := a.rng.Intn(len(options))
	a.logger.Info().Str("choice", options[idx]).Msg("auto-selected")
	return idx, nil
}

// ConsoleChooser asks on the terminal with a bounded wait. On timeout or
// unparseable input it defers to the fallback chooser.
type ConsoleChooser struct {
	logger   zerolog.Logger
	in       io.Reader
	out      io.Writer
	timeout  time.Duration
	fallback Chooser
}

// NewConsoleChooser creates an interactive chooser reading from in and
// writing the menu to out.
func NewConsoleChooser(logger zerolog.Logger, in io.Reader, out io.Writer, timeout time.Duration, fallback Chooser) *ConsoleChooser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ConsoleChooser{
		logger:   logger.With().Str("component", "chooser").Logger(),
		in:       in,
		out:      out,
		timeout:  timeout,
		fallback: fallback,
	}
}

func (c *ConsoleChooser) Choose(ctx context.Context, heading string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("no options to choose from")
	}

	fmt.Fprintln(c.out, heading)
	for i, opt := range options {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, opt)
	}
	fmt.Fprintf(c.out, "Choice [1-%d] (auto in %s): ", len(options), c.timeout)

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		if scanner.Scan() {
			lines <- scanner.Text()
		} else {
			lines <- ""
		}
	}()

	select {
	case line := <-lines:
		if idx, ok := parseChoice(line, len(options)); ok {
			return idx, nil
		}
		if strings.TrimSpace(line) != "" {
			c.logger.Warn().Str("input", line).Msg("unrecognized choice, selecting automatically")
		}
		return c.fallback.Choose(ctx, heading, options)
	case <-time.After(c.timeout):
		fmt.Fprintln(c.out)
		c.logger.Info().Dur("timeout", c.timeout).Msg("no answer, selecting automatically")
		return c.fallback.Choose(ctx, heading, options)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// parseChoice interprets a 1-based menu answer. Anything empty, non-numeric
// or out of range is rejected.
func parseChoice(line string, n int) (int, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false
	}
	v, err := strconv.Atoi(line)
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}
