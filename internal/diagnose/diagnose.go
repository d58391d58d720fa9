// Package diagnose runs layered connectivity checks against the target
// database: name resolution, TCP reach, then a real SQL login. Each layer
// only makes sense once the previous one holds, so the first failure stops
// the pass and the remaining steps are reported as skipped.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgchurn/pgchurn/internal/config"
	"github.com/pgchurn/pgchurn/internal/store"
)

const (
	stepDNS = "DNS resolution"
	stepTCP = "Port connectivity"
	stepSQL = "PostgreSQL login"
)

const (
	dialTimeout = 10 * time.Second
	sqlTimeout  = 15 * time.Second
)

// Step is one diagnostic check and its outcome.
type Step struct {
	Name    string
	OK      bool
	Detail  string
	Err     error
	Elapsed time.Duration
}

// Report collects the outcome of one diagnostic pass.
type Report struct {
	Steps   []Step
	Skipped []string
}

// Failed reports whether any executed step failed.
func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return true
		}
	}
	return false
}

// Checker runs connectivity diagnostics against a database target. The
// probe functions are swappable for tests.
type Checker struct {
	cfg *config.Config

	lookupHost func(ctx context.Context, host string) ([]string, error)
	dial       func(network, addr string, timeout time.Duration) (net.Conn, error)
	sqlPing    func(ctx context.Context, cfg *config.Config) (string, error)
}

// New creates a Checker for the configured database target.
func New(cfg *config.Config) *Checker {
	return &Checker{
		cfg: cfg,
		lookupHost: func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		},
		dial:    net.DialTimeout,
		sqlPing: sqlPing,
	}
}

// Run executes the steps in order and stops at the first failure.
func (c *Checker) Run(ctx context.Context) Report {
	var rep Report

	step := c.checkDNS(ctx)
	rep.Steps = append(rep.Steps, step)
	if !step.OK {
		rep.Skipped = append(rep.Skipped, stepTCP, stepSQL)
		return rep
	}

	step = c.checkTCP()
	rep.Steps = append(rep.Steps, step)
	if !step.OK {
		rep.Skipped = append(rep.Skipped, stepSQL)
		return rep
	}

	rep.Steps = append(rep.Steps, c.checkSQL(ctx))
	return rep
}

func (c *Checker) checkDNS(ctx context.Context) Step {
	start := time.Now()
	addrs, err := c.lookupHost(ctx, c.cfg.Host)
	s := Step{Name: stepDNS, Elapsed: time.Since(start)}
	if err != nil {
		s.Err = err
		return s
	}
	s.OK = true
	s.Detail = fmt.Sprintf("%s resolves to %s", c.cfg.Host, strings.Join(addrs, ", "))
	return s
}

func (c *Checker) checkTCP() Step {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	start := time.Now()
	conn, err := c.dial("tcp", addr, dialTimeout)
	s := Step{Name: stepTCP, Elapsed: time.Since(start)}
	if err != nil {
		s.Err = err
		return s
	}
	conn.Close()
	s.OK = true
	s.Detail = fmt.Sprintf("port %d is reachable", c.cfg.Port)
	return s
}

func (c *Checker) checkSQL(ctx context.Context) Step {
	ctx, cancel := context.WithTimeout(ctx, sqlTimeout)
	defer cancel()

	start := time.Now()
	version, err := c.sqlPing(ctx, c.cfg)
	s := Step{Name: stepSQL, Elapsed: time.Since(start)}
	if err != nil {
		s.Err = err
		return s
	}
	s.OK = true
	s.Detail = version
	return s
}

// sqlPing opens a single connection, runs a probe query and fetches the
// server version string.
func sqlPing(ctx context.Context, cfg *config.Config) (string, error) {
	conn, err := pgx.Connect(ctx, store.ConnString(cfg))
	if err != nil {
		return "", err
	}
	defer conn.Close(ctx)

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return "", err
	}

	var version string
	if err := conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", err
	}
	if len(version) > 50 {
		version = version[:50] + "..."
	}
	return version, nil
}

// Render writes a human-readable report to w.
func (r Report) Render(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Connection diagnostics")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Host:     %s\n", cfg.Host)
	fmt.Fprintf(w, "Port:     %d\n", cfg.Port)
	fmt.Fprintf(w, "Database: %s\n", cfg.Database)
	fmt.Fprintf(w, "Username: %s\n", cfg.Username)
	fmt.Fprintln(w)

	for i, s := range r.Steps {
		if s.OK {
			fmt.Fprintf(w, "%d. %s: ok (%s)\n", i+1, s.Name, s.Elapsed.Round(time.Millisecond))
			if s.Detail != "" {
				fmt.Fprintf(w, "   %s\n", s.Detail)
			}
			continue
		}
		fmt.Fprintf(w, "%d. %s: FAILED (%s)\n", i+1, s.Name, s.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(w, "   %v\n", s.Err)
		if hint := hintFor(s); hint != "" {
			fmt.Fprintf(w, "   hint: %s\n", hint)
		}
	}
	for _, name := range r.Skipped {
		fmt.Fprintf(w, "   %s: skipped\n", name)
	}

	if r.Failed() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Troubleshooting:")
		fmt.Fprintf(w, "- Ensure the database security group allows inbound connections on port %d\n", cfg.Port)
		fmt.Fprintln(w, "- Check that the cluster is publicly accessible if connecting from outside its network")
		fmt.Fprintf(w, "- Verify no corporate firewall is blocking outbound port %d\n", cfg.Port)
		fmt.Fprintln(w, "- Consider running from a host inside the same network as the database")
	}
}

func hintFor(s Step) string {
	switch s.Name {
	case stepDNS:
		return "check the hostname for typos"
	case stepTCP:
		return "a firewall or security group is likely blocking the port"
	case stepSQL:
		var pgErr *pgconn.PgError
		if errors.As(s.Err, &pgErr) {
			switch pgErr.Code {
			case "28P01", "28000":
				return "authentication failed, check username and password"
			case "3D000":
				return "database does not exist"
			}
		}
		if errors.Is(s.Err, context.DeadlineExceeded) {
			return "connection timed out, likely a network or TLS issue"
		}
	}
	return ""
}
