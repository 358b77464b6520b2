// ABOUTME: Entry point for the books-mcp server and its maintenance commands
// ABOUTME: Serves MCP over HTTP or stdio, issues tokens, and inspects the audit log

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/config"
	"github.com/2389/books-mcp/internal/gateway"
	"github.com/2389/books-mcp/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                 _                                
| |__   ___   ___ | | _____       _ __ ___   ___ _ __  
| '_ \ / _ \ / _ \| |/ / __|_____| '_ ' _ \ / __| '_ \ 
| |_) | (_) | (_) |   <\__ \_____| | | | | | (__| |_) |
|_.__/ \___/ \___/|_|\_\___/     |_| |_| |_|\___| .__/ 
                                                |_|    
`

func usage() {
	fmt.Println("Usage: books-mcp <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                   Start the HTTP server")
	fmt.Println("  stdio                   Serve MCP on stdin/stdout")
	fmt.Println("  token issue <username>  Issue a session token")
	fmt.Println("  token verify <token>    Verify a token and print its claims")
	fmt.Println("  health                  Check server readiness")
	fmt.Println("  audit [-n N] [-user U]  List recent audit entries")
	fmt.Println("  hash-password           Hash a password read from stdin for auth.users")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "stdio":
		err = runStdio(ctx)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "audit":
		err = runAudit(ctx, os.Args[2:], os.Stdout)
	case "hash-password":
		err = runHashPassword(os.Stdin, os.Stdout)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig locates and loads the configuration file.
func loadConfig() (*config.Config, string, error) {
	configPath, err := config.Path()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s (health)\n", cfg.Server.GRPCAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Sessions:  %s, ttl %s\n", cfg.Session.Store, cfg.Session.TTL)
	green.Print("    ▶ ")
	fmt.Printf("Books:     %s\n", cfg.Data.BooksPath)
	if len(cfg.Auth.Users) == 0 {
		yellow.Print("    ! ")
		fmt.Println("No auth.users configured: any username can authenticate")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting books-mcp",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
	)

	gw, err := gateway.New(cfg, logger, version)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

// runStdio serves MCP on stdin/stdout. Logs go to stderr.
func runStdio(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	gw, err := gateway.New(cfg, logger, version)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// runToken handles "token issue <username>" and "token verify <token>".
func runToken(args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: books-mcp token issue <username> | token verify <token>")
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	codec, err := auth.NewCodec([]byte(cfg.Auth.JWTSecret), auth.WithTTL(cfg.Session.TTL))
	if err != nil {
		return err
	}
	return tokenCommand(codec, args[0], args[1], out)
}

func tokenCommand(codec *auth.Codec, action, arg string, out io.Writer) error {
	switch action {
	case "issue":
		username := strings.TrimSpace(arg)
		if username == "" {
			return errors.New("username must not be empty")
		}
		token, err := codec.Issue(auth.DeriveUserID(username), username)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, token)
		return nil
	case "verify":
		claims, err := codec.Verify(strings.TrimSpace(arg))
		if err != nil {
			d := auth.TokenDenial(err)
			fmt.Fprintf(out, "error:      %s\n", d.Kind)
			fmt.Fprintf(out, "message:    %s\n", d.Message)
			fmt.Fprintf(out, "hint:       %s\n", d.Hint)
			return fmt.Errorf("invalid token: %w", err)
		}
		fmt.Fprintf(out, "user_id:    %s\n", claims.UserID)
		fmt.Fprintf(out, "username:   %s\n", claims.Username)
		if claims.IssuedAt != nil {
			fmt.Fprintf(out, "issued_at:  %s\n", claims.IssuedAt.UTC().Format(time.RFC3339))
		}
		if claims.ExpiresAt != nil {
			fmt.Fprintf(out, "expires_at: %s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("unknown token action %q (want issue or verify)", action)
	}
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is not set")
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println(string(body))
	return nil
}

// auditOptions are the parsed flags of the audit command.
type auditOptions struct {
	limit int
	user  string
	tool  string
}

func parseAuditArgs(args []string) (auditOptions, error) {
	var opts auditOptions
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&opts.limit, "n", 20, "number of entries")
	fs.StringVar(&opts.user, "user", "", "only entries for this username")
	fs.StringVar(&opts.tool, "tool", "", "only entries for this tool")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if opts.limit <= 0 {
		return opts, errors.New("-n must be positive")
	}
	return opts, nil
}

func runAudit(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseAuditArgs(args)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return errors.New("audit log disabled: database.path is not set")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	return printAudit(ctx, s, opts, out)
}

func printAudit(ctx context.Context, s *store.SQLiteStore, opts auditOptions, out io.Writer) error {
	filter := store.AuditFilter{Limit: opts.limit}
	if opts.user != "" {
		filter.Username = &opts.user
	}
	if opts.tool != "" {
		filter.Tool = &opts.tool
	}

	entries, err := s.ListAuditLog(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing audit log: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no audit entries")
		return nil
	}

	for _, e := range entries {
		user := e.Username
		if user == "" {
			user = "-"
		}
		line := fmt.Sprintf("%s  %-16s  %-8s  %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Tool, e.Outcome, user)
		if kind, ok := e.Detail["error"].(string); ok {
			line += "  " + kind
		}
		fmt.Fprintln(out, outcomeColor(e.Outcome).Sprint(line))
	}
	return nil
}

func outcomeColor(outcome string) *color.Color {
	switch outcome {
	case "ok":
		return color.New(color.FgGreen)
	case "denied":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// runHashPassword reads one password line and prints its bcrypt hash.
func runHashPassword(in io.Reader, out io.Writer) error {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}
