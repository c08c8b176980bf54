package authctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/secure-content-auth-service/internal/config"
	"github.com/sandeepkv93/secure-content-auth-service/internal/di"
	"github.com/sandeepkv93/secure-content-auth-service/internal/tools/common"
	"github.com/sandeepkv93/secure-content-auth-service/internal/tools/loadgen"
)

type toolkitFactory func(ctx context.Context) (*di.Toolkit, func(), error)

type options struct {
	ci      bool
	baseURL string
	timeout time.Duration
	toolkit toolkitFactory
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultToolkit)
}

func newRootCommand(factory toolkitFactory) *cobra.Command {
	opts := &options{toolkit: factory}
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Operator tooling for the auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL for check and loadgen")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall command deadline")
	cmd.AddCommand(
		newCreateAdminCommand(opts),
		newBlockCommand(opts, true),
		newBlockCommand(opts, false),
		newSweepCommand(opts),
		newCheckCommand(opts),
		newLoadgenCommand(opts),
	)
	return cmd
}

func defaultToolkit(ctx context.Context) (*di.Toolkit, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kit, cleanup, err := di.InitializeToolkit(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return kit, func() {
		_ = kit.Close()
		cleanup()
	}, nil
}

func newCreateAdminCommand(opts *options) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, "authctl create-admin", func(ctx context.Context) ([]string, error) {
				return withToolkit(ctx, opts, func(kit *di.Toolkit) ([]string, error) {
					u, err := kit.Users.CreateAdmin(ctx, username, email, password)
					if err != nil {
						return nil, err
					}
					return []string{"id=" + u.ID, "username=" + u.Username, "role=" + string(u.Role)}, nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newBlockCommand(opts *options, block bool) *cobra.Command {
	use, short := "block", "Block a user and revoke every credential"
	if !block {
		use, short = "unblock", "Reactivate a blocked user"
	}
	var username string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, "authctl "+use, func(ctx context.Context) ([]string, error) {
				return withToolkit(ctx, opts, func(kit *di.Toolkit) ([]string, error) {
					u, err := kit.Users.FindByUsername(ctx, username)
					if err != nil {
						return nil, fmt.Errorf("find %s: %w", username, err)
					}
					if block {
						u, err = kit.Users.Block(ctx, u.ID)
					} else {
						u, err = kit.Users.Unblock(ctx, u.ID)
					}
					if err != nil {
						return nil, err
					}
					return []string{"username=" + u.Username, fmt.Sprintf("is_active=%t", u.IsActive)}, nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSweepCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired revocation and audit rows once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, "authctl sweep", func(ctx context.Context) ([]string, error) {
				return withToolkit(ctx, opts, func(kit *di.Toolkit) ([]string, error) {
					report, err := kit.Sweeper.RunOnce(ctx)
					if report.Skipped {
						return []string{"skipped: another replica holds the sweep lock"}, err
					}
					details := make([]string, 0, len(report.Steps)+1)
					for _, s := range report.Steps {
						line := fmt.Sprintf("%s deleted=%d", s.Target, s.Deleted)
						if s.Error != "" {
							line += " error=" + s.Error
						}
						details = append(details, line)
					}
					details = append(details, fmt.Sprintf("total=%d", report.Total()))
					return details, err
				})
			})
		},
	}
}

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the liveness and readiness endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, "authctl check", func(ctx context.Context) ([]string, error) {
				var details []string
				for _, path := range []string{"/health/live", "/health/ready"} {
					status, err := apiGET(ctx, opts.baseURL, path)
					if err != nil {
						return details, err
					}
					details = append(details, fmt.Sprintf("%s status=%d", path, status))
					if status != http.StatusOK {
						return details, fmt.Errorf("%s returned %d", path, status)
					}
				}
				return details, nil
			})
		},
	}
}

func newLoadgenCommand(opts *options) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate authenticated traffic against the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, "authctl loadgen", func(ctx context.Context) ([]string, error) {
				cfg.BaseURL = opts.baseURL
				res, err := loadgen.Run(ctx, cfg)
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("total=%d failures=%d", res.TotalRequests, res.Failures),
					fmt.Sprintf("rate_limited=%d relogins=%d", res.RateLimited, res.Relogins),
					fmt.Sprintf("2xx=%d 4xx=%d 5xx=%d", res.StatusClasses["2xx"], res.StatusClasses["4xx"], res.StatusClasses["5xx"]),
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: login, me or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "requests per second across all workers")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "parallel workers")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "seed for the mixed profile")
	cmd.Flags().StringVar(&cfg.Username, "username", "", "account used for traffic")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func run(cmd *cobra.Command, opts *options, title string, fn func(context.Context) ([]string, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	details, err := fn(ctx)
	if opts.ci {
		common.PrintCIResult(cmd.OutOrStdout(), err == nil, title, details, err)
	} else {
		common.PrintReport(cmd.OutOrStdout(), title, details, err)
	}
	return err
}

func withToolkit(ctx context.Context, opts *options, fn func(*di.Toolkit) ([]string, error)) ([]string, error) {
	kit, cleanup, err := opts.toolkit(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return fn(kit)
}

func apiGET(ctx context.Context, baseURL, path string) (int, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
