package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Partho99/devops-learner/internal/config"
	"github.com/Partho99/devops-learner/internal/scrollback"
	"github.com/Partho99/devops-learner/internal/termsession"
)

// Console commands understood by the term subcommand.
const (
	consoleQuit     = ":quit"
	consolePrevious = ":prev"
	consoleNext     = ":next"
	consoleAccept   = "!"
)

func newTermCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "term",
		Short: "Open an interactive terminal session in the console",
		Long: `Connects to the terminal server and relays lines typed on stdin.

Console commands:
  :prev   show the previous submitted command
  :next   show the next submitted command
  !       submit the command shown by :prev or :next
  :quit   close the session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess := termsession.Start(ctx, sessionConfig(config.Cfg))
			defer sess.Close()

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			return runConsole(ctx, sess, os.Stdin, cmd.OutOrStdout(), interactive)
		},
	}
}

// runConsole prints session history to out and feeds lines from in to the
// session until in is exhausted, :quit is entered or ctx ends.
func runConsole(ctx context.Context, sess *termsession.Session, in io.Reader, out io.Writer, interactive bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var outMu sync.Mutex
	printf := func(format string, a ...interface{}) {
		outMu.Lock()
		fmt.Fprintf(out, format, a...)
		outMu.Unlock()
	}

	stop := make(chan struct{})
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		var seen uint64
		flush := func() {
			for _, e := range sess.Since(seen) {
				seen = e.Seq
				if line := consoleLine(e, interactive); line != "" {
					printf("%s", line)
				}
			}
		}
		for {
			flush()
			select {
			case <-sess.Updates():
			case <-sess.Done():
				flush()
				return
			case <-stop:
				flush()
				return
			}
		}
	}()
	defer func() {
		close(stop)
		<-printed
	}()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 4096), termsession.MaxCommandLength)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	var pending string
	for {
		if interactive {
			printf("%s", termsession.InputPrompt)
		}
		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return nil
		case err := <-scanErr:
			return err
		case line = <-lines:
		}

		var err error
		switch strings.TrimSpace(line) {
		case consoleQuit:
			return nil
		case consolePrevious:
			pending, err = sess.RecallPrevious(pending)
			printf("%s\n", pending)
		case consoleNext:
			pending, err = sess.RecallNext(pending)
			printf("%s\n", pending)
		case consoleAccept:
			err = sess.Submit(pending)
			pending = ""
		default:
			err = sess.Submit(line)
			pending = ""
		}
		if err != nil {
			return nil
		}
	}
}

// consoleLine renders one history entry for a plain console. Input echoes
// are skipped when the user's own typing is already on screen.
func consoleLine(e scrollback.Entry, interactive bool) string {
	switch e.Kind {
	case scrollback.Output:
		return e.Text
	case scrollback.Input:
		if interactive {
			return ""
		}
		return e.Text + "\n"
	case scrollback.StatusError:
		return "[error] " + e.Text + "\n"
	default:
		return "[info] " + e.Text + "\n"
	}
}
