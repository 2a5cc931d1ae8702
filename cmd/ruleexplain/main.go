// Command ruleexplain submits one clause and prints its status until it settles
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ruleexplain/internal/adapters/chain"
	"ruleexplain/internal/core/cleantext"
	"ruleexplain/internal/core/keyderive"
	"ruleexplain/internal/core/orchestrator"
	"ruleexplain/internal/platform/config"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"

	explainmod "ruleexplain/internal/services/explain/module"
)

// exit codes by terminal state
const (
	exitOK       = 0
	exitFailed   = 1
	exitTimedOut = 2
	exitUsage    = 64
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fText     = flag.String("text", "", "clause text (default: read -file or stdin)")
		fFile     = flag.String("file", "", "read the clause from this file")
		fNetwork  = flag.String("network", "", "network name from the profile (studionet, localnet, ...)")
		fProfile  = flag.String("profile", "", "YAML network profile file")
		fRPC      = flag.String("rpc", "", "override the RPC URL")
		fContract = flag.String("contract", "", "override the contract address")
		fKeystore = flag.String("keystore", "", "keystore JSON file (password from EXPLAIN_KEYSTORE_PASSWORD)")
		fConfirm  = flag.Bool("confirm", false, "ask before signing the transaction")
		fJSON     = flag.Bool("json", false, "print events as JSON lines")
		fAttempts = flag.Int("attempts", 0, "max read attempts (default 30)")
		fInterval = flag.Duration("interval", 0, "delay between read attempts (default 2s)")
	)
	flag.Parse()

	// Export as env so the module reads one source of truth
	mustSetEnv("EXPLAIN_NETWORK", *fNetwork)
	mustSetEnv("EXPLAIN_PROFILE", *fProfile)
	mustSetEnv("EXPLAIN_RPC_URL", *fRPC)
	mustSetEnv("EXPLAIN_CONTRACT", *fContract)
	mustSetEnv("EXPLAIN_KEYSTORE", *fKeystore)
	if *fAttempts > 0 {
		mustSetEnv("EXPLAIN_MAX_ATTEMPTS", fmt.Sprintf("%d", *fAttempts))
	}
	if *fInterval > 0 {
		mustSetEnv("EXPLAIN_POLL_INTERVAL", fInterval.String())
	}

	os.Exit(run(*fText, *fFile, *fConfirm, *fJSON))
}

func run(text, file string, confirm, asJSON bool) int {
	l := logger.Named("cli")

	input, err := readInput(text, file, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ruleexplain:", err)
		return exitUsage
	}
	input = cleantext.Clean(input)
	if input == "" {
		fmt.Fprintln(os.Stderr, "ruleexplain: nothing to explain")
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := explainmod.FromConfig(config.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, "ruleexplain:", err)
		return exitUsage
	}

	var ask chain.ConfirmFunc
	if confirm {
		tty, closeTTY := openTTY()
		defer closeTTY()
		ask = confirmPrompt(tty, os.Stderr)
	}

	rt, err := explainmod.Dial(ctx, opts, ask)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ruleexplain:", err)
		return exitFailed
	}
	defer rt.Close()

	fmt.Fprintf(os.Stderr, "network %s, lookup key %q, polling up to %s\n",
		rt.Network, keyderive.Derive(input), opts.Orchestrator.Budget())

	events, err := rt.Session.SubmitAndAwait(ctx, input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ruleexplain:", err)
		return exitFailed
	}

	last := orchestrator.Await(events, func(ev orchestrator.Event) { render(os.Stderr, ev, asJSON) })
	l.Debug().Str("state", string(last.State)).Int("attempt", last.Attempt).Msg("done")

	if last.State == orchestrator.StateSucceeded {
		fmt.Fprintln(os.Stdout, last.Result)
	}
	return exitCode(last)
}

// readInput prefers text, then file, then stdin
func readInput(text, file string, stdin io.Reader) (string, error) {
	switch {
	case text != "" && file != "":
		return "", perr.InvalidArgf("use either -text or -file")
	case text != "":
		return text, nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", perr.Wrapf(err, perr.ErrorCodeNotFound, "read %s", file)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeInvalidArgument, "read stdin")
	}
	return string(b), nil
}

func render(w io.Writer, ev orchestrator.Event, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(ev)
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", ev.State, ev.Message)
}

func exitCode(ev orchestrator.Event) int {
	switch ev.State {
	case orchestrator.StateSucceeded:
		return exitOK
	case orchestrator.StateTimedOut:
		return exitTimedOut
	}
	return exitFailed
}

// confirmPrompt asks on out and reads y/N from in
func confirmPrompt(in io.Reader, out io.Writer) chain.ConfirmFunc {
	rd := bufio.NewReader(in)
	return func(_ context.Context, p chain.Prompt) (bool, error) {
		fmt.Fprintf(out, "Sign %s from %s to %s (gas %d)? [y/N] ", p.Method, p.Signer.Short(), p.Contract.Hex(), p.Gas)
		line, err := rd.ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

// openTTY reads answers from the terminal so stdin stays free for the clause
func openTTY() (io.Reader, func()) {
	f, err := os.Open("/dev/tty")
	if err != nil {
		return os.Stdin, func() {}
	}
	return f, func() { _ = f.Close() }
}
