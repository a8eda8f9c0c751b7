// Package engine talks to an external UCI engine. Each BestMove call starts
// a fresh engine process and stops it before returning.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/uci"
	"github.com/rs/zerolog"

	"chessai/internal/errors"
	"chessai/internal/logging"
)

// DefaultGrace is how long past its thinking budget an engine may take to
// answer before the search is abandoned.
const DefaultGrace = 2 * time.Second

// quitWait bounds how long a stopped engine gets to exit on its own before
// it is killed.
const quitWait = 500 * time.Millisecond

// UCI is a scoped client for the engine binary at Path.
type UCI struct {
	Path string
	// Grace is added to the thinking budget to form the search deadline.
	// Zero means DefaultGrace.
	Grace time.Duration
	log   zerolog.Logger
}

// New returns a client for the engine at path.
func New(path string) *UCI {
	return &UCI{Path: path, Grace: DefaultGrace, log: logging.With("engine")}
}

func (u *UCI) grace() time.Duration {
	if u.Grace <= 0 {
		return DefaultGrace
	}
	return u.Grace
}

type searchResult struct {
	move *chess.Move
	err  error
}

// BestMove starts the engine, searches pos for budget and returns the
// engine's best move. Launch failures are ErrEngineUnavailable; everything
// after a successful launch is ErrEngineFailure, including an engine that
// dies or stays silent past budget plus grace.
func (u *UCI) BestMove(ctx context.Context, pos *chess.Position, budget time.Duration) (*chess.Move, error) {
	if u == nil || u.Path == "" {
		return nil, errors.ErrEngineUnavailable
	}
	if pos == nil {
		return nil, errors.Wrap(errors.ErrEngineFailure, "no position")
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, budget+u.grace())

	p, err := launch(ctx, u.Path)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(errors.ErrEngineUnavailable, "start %s: %v", u.Path, err)
	}

	done := make(chan searchResult, 1)
	go func() {
		m, err := p.search(pos, budget)
		done <- searchResult{move: m, err: err}
	}()

	select {
	case res := <-done:
		p.stop(u.log)
		cancel()
		if res.err != nil {
			return nil, res.err
		}
		u.log.Debug().
			Str("fen", pos.String()).
			Str("move", chess.UCINotation{}.Encode(pos, res.move)).
			Dur("took", time.Since(start)).
			Msg("engine move")
		return res.move, nil
	case <-ctx.Done():
		// Cancelling the context kills the process; reaping it also closes
		// stdout, which releases the reader goroutine.
		cancel()
		go p.stop(u.log)
		return nil, errors.Wrapf(errors.ErrEngineFailure, "no reply after %s: %v", time.Since(start).Round(time.Millisecond), ctx.Err())
	}
}

// process is one running engine speaking UCI over its standard streams.
type process struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out *bufio.Scanner
}

func launch(ctx context.Context, path string) (*process, error) {
	cmd := exec.CommandContext(ctx, path)
	cmd.WaitDelay = quitWait
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &process{cmd: cmd, in: in, out: bufio.NewScanner(out)}, nil
}

func (p *process) search(pos *chess.Position, budget time.Duration) (*chess.Move, error) {
	if err := p.send(uci.CmdUCI); err != nil {
		return nil, errors.Wrapf(errors.ErrEngineFailure, "handshake: %v", err)
	}
	if _, err := p.await("uciok"); err != nil {
		return nil, errors.Wrapf(errors.ErrEngineFailure, "handshake: %v", err)
	}
	if err := p.send(uci.CmdUCINewGame, uci.CmdIsReady); err != nil {
		return nil, errors.Wrapf(errors.ErrEngineFailure, "handshake: %v", err)
	}
	if _, err := p.await("readyok"); err != nil {
		return nil, errors.Wrapf(errors.ErrEngineFailure, "handshake: %v", err)
	}

	if err := p.send(uci.CmdPosition{Position: pos}, uci.CmdGo{MoveTime: budget}); err != nil {
		return nil, errors.Wrapf(errors.ErrEngineFailure, "search: %v", err)
	}
	line, err := p.await("bestmove")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrEngineFailure, "search: %v", err)
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[1] == "(none)" || fields[1] == "0000" {
		return nil, errors.Wrap(errors.ErrEngineFailure, "no best move")
	}
	m, err := chess.UCINotation{}.Decode(pos, fields[1])
	if err != nil {
		return nil, errors.Wrapf(errors.ErrEngineFailure, "decode %q: %v", fields[1], err)
	}
	return m, nil
}

func (p *process) send(cmds ...fmt.Stringer) error {
	for _, c := range cmds {
		if _, err := fmt.Fprintln(p.in, c.String()); err != nil {
			return err
		}
	}
	return nil
}

// await reads lines until one starts with token. A closed stream means the
// engine went away.
func (p *process) await(token string) (string, error) {
	for p.out.Scan() {
		line := strings.TrimSpace(p.out.Text())
		if line == token || strings.HasPrefix(line, token+" ") {
			return line, nil
		}
	}
	if err := p.out.Err(); err != nil {
		return "", err
	}
	return "", io.ErrUnexpectedEOF
}

// stop asks the engine to quit, kills it if it lingers and reaps it.
func (p *process) stop(log zerolog.Logger) {
	_ = p.send(uci.CmdQuit)
	_ = p.in.Close()

	waited := make(chan error, 1)
	go func() { waited <- p.cmd.Wait() }()
	select {
	case err := <-waited:
		if err != nil {
			log.Debug().Err(err).Msg("engine exit")
		}
	case <-time.After(quitWait):
		_ = p.cmd.Process.Kill()
		<-waited
		log.Debug().Msg("engine killed after quit")
	}
}
