package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/systmms/cloudtruth/internal/asof"
	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/logging"
	"github.com/systmms/cloudtruth/internal/params"
	"github.com/systmms/cloudtruth/internal/resolve"
	"github.com/systmms/cloudtruth/internal/secure"
	"github.com/systmms/cloudtruth/internal/table"
)

// BinaryName is the name shown in help text and hints.
const BinaryName = "cloudtruth"

// separator heads each block of interactive guidance.
const separator = "========================="

const maxConfirmTries = 3

// Command annotations read by the root command before configuration loads.
const (
	// AnnotationSkipKeyring leaves a keyring-held API key unread.
	AnnotationSkipKeyring = "skip-keyring"
	// AnnotationOffline marks commands that never contact the server.
	AnnotationOffline = "offline"
)

func logger(cfg *config.Config) *logging.Logger {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(cfg.Debug, cfg.NoColor)
	}
	return cfg.Logger
}

// groupRun warns when a command group is invoked without an action.
func groupRun(cfg *config.Config, name string) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		logger(cfg).MissingSubcommand(name)
	}
}

// confirm asks a yes/no question up to three times. An empty answer takes
// def; running out of tries or input answers no. In non-interactive mode
// the default is taken without asking.
func confirm(cfg *config.Config, cmd *cobra.Command, message string, def *bool) bool {
	if cfg.NonInteractive {
		logger(cfg).Debug("Non-interactive: %s? answered by default", message)
		return def != nil && *def
	}
	hint := "y/n"
	if def != nil {
		if *def {
			hint = "Y/n"
		} else {
			hint = "y/N"
		}
	}
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())
	for i := 0; i < maxConfirmTries; i++ {
		fmt.Fprintf(out, "%s? (%s) ", message, hint)
		line, err := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "" && def != nil {
			return *def
		}
		switch answer {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		if err != nil {
			return false
		}
	}
	return false
}

var (
	defaultNo  = boolRef(false)
	defaultYes = boolRef(true)
)

func boolRef(b bool) *bool { return &b }

// readSecret reads one line without echo when in is a terminal.
func readSecret(in io.Reader) (*secure.Value, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return nil, fmt.Errorf("failed to read value: %w", err)
		}
		return secure.NewValue(data), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read value: %w", err)
	}
	return secure.NewValue([]byte(strings.TrimRight(line, "\r\n"))), nil
}

// listFlags are shared by every listing command.
type listFlags struct {
	format    string
	values    bool
	showTimes bool
	secrets   bool
}

func (f *listFlags) register(cmd *cobra.Command, withTimes, withSecrets bool) {
	cmd.Flags().StringVarP(&f.format, "format", "f", string(table.FormatTable), "Output format: table, csv, json or yaml")
	cmd.Flags().BoolVarP(&f.values, "values", "v", false, "Display information/values")
	if withTimes {
		cmd.Flags().BoolVar(&f.showTimes, "show-times", false, "Show create and modified times.")
	}
	if withSecrets {
		cmd.Flags().BoolVarP(&f.secrets, "secrets", "s", false, "Display secret values")
	}
}

// showValues reports whether a table is wanted rather than a name list.
func (f *listFlags) showValues(cmd *cobra.Command) bool {
	return f.values || f.showTimes || f.secrets || cmd.Flags().Changed("format")
}

func (f *listFlags) parsedFormat() (table.Format, error) {
	format, err := table.ParseFormat(f.format)
	if err != nil {
		return "", dserrors.UserError{
			Message:    err.Error(),
			Suggestion: "Use one of: " + strings.Join(table.Formats, ", "),
		}
	}
	return format, nil
}

func (f *listFlags) render(cmd *cobra.Command, t *table.Table) error {
	format, err := f.parsedFormat()
	if err != nil {
		return err
	}
	return t.Render(cmd.OutOrStdout(), format)
}

func printNames(cmd *cobra.Command, names []string) {
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
}

// session bundles what an API command needs after configuration loads.
type session struct {
	cfg      *config.Config
	resolver *resolve.Resolver
	scope    *resolve.Scope
}

func newSession(ctx context.Context, cfg *config.Config, requireProject bool) (*session, error) {
	scope, err := cfg.Scope(ctx, requireProject)
	if err != nil {
		return nil, err
	}
	r, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, resolver: r, scope: scope}, nil
}

func (s *session) assembler(ctx context.Context) (*params.Assembler, error) {
	tree, err := s.resolver.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return params.NewAssembler(s.resolver.Client(), tree), nil
}

// asOf resolves --as-of against the scoped environment.
func (s *session) asOf(ctx context.Context, input string) (string, error) {
	return s.asOfIn(ctx, input, s.scope.EnvironmentID, s.scope.EnvironmentName)
}

func (s *session) asOfIn(ctx context.Context, input, envID, envName string) (string, error) {
	ts, err := asof.NewNormalizer(s.resolver).Resolve(ctx, input, []string{envID}, envName)
	if err != nil {
		var notFound *asof.TagNotFoundError
		if errors.As(err, &notFound) {
			return "", dserrors.UserError{Message: err.Error(), Err: err}
		}
		return "", err
	}
	return ts, nil
}

// environment resolves an environment name to its id, mapping a miss to the
// documented exit code.
func (s *session) environment(ctx context.Context, name string) (string, error) {
	id, err := s.resolver.RequireID(ctx, resolve.KindEnvironment, name, s.scope)
	if err != nil {
		return "", asExit(err)
	}
	return id, nil
}

func asExit(err error) error {
	var nf *resolve.NotFoundError
	if errors.As(err, &nf) {
		return nf.AsExit()
	}
	return err
}

func pick(v bool, a, b string) string {
	if v {
		return a
	}
	return b
}
