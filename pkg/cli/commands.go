package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/state"
	"github.com/cheribuild/cheribuild/pkg/types"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the outcome of the last run",
		Long:  `Display the targets of the most recent invocation together with their recorded results.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd)
		},
	}
}

func newLogsCmd(a *app) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs <target>",
		Short: "Show the build log of a target",
		Long: `Display the captured build output of one target. Build logs are only
written when builds run with --write-logfile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLogs(cmd, args[0], follow, lines)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cheribuild",
		Long:  `Print the version number of cheribuild`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cheribuild v%s\n", version)
		},
	}
}

// Implementation functions

// queryResolver builds a resolver from the config file and environment
// only, for subcommands that read state without parsing option flags.
func (a *app) queryResolver() (*config.Resolver, error) {
	sources := config.Sources{Env: envBridge}
	if path := resolveConfigPath(); path != "" {
		doc, err := config.LoadDocument(path)
		if err != nil {
			return nil, err
		}
		sources.File = doc
	}
	return config.NewResolver(a.options, a.targets, sources), nil
}

func (a *app) runStatus(cmd *cobra.Command) error {
	cfg, err := a.queryResolver()
	if err != nil {
		return err
	}
	outRoot, err := cfg.GetGlobal(config.OptOutputRoot)
	if err != nil {
		return err
	}

	stateDir := filepath.Join(outRoot.String(), ".cheribuild", "state")
	if !utils.DirectoryExists(stateDir) {
		printWarning("No runs recorded yet")
		return nil
	}

	recorder := state.NewRecorder(outRoot.String(), logger.CreateLogger("", "error"))
	record, err := recorder.Latest()
	if err != nil {
		return fmt.Errorf("reading the last run record: %w", err)
	}

	outcome := color.GreenString("succeeded")
	if !record.Success {
		outcome = color.RedString("failed")
	}
	printInfo(fmt.Sprintf("Last run %s at %s (requested: %s)",
		outcome,
		record.FinishedAt.Format("2006-01-02 15:04:05"),
		strings.Join(record.Requested, ", ")))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSTATE\tSTAGE\tDURATION")
	fmt.Fprintln(w, "------\t-----\t-----\t--------")

	for _, res := range record.Results {
		stateColor := color.WhiteString(string(res.State))
		switch res.State {
		case types.StateDone:
			stateColor = color.GreenString(string(res.State))
		case types.StateFailed:
			stateColor = color.RedString(string(res.State))
		case types.StateSkipped:
			stateColor = color.YellowString(string(res.State))
		}

		stage := "-"
		if res.Stage != "" {
			stage = string(res.Stage)
		}
		duration := "-"
		if res.Duration > 0 {
			duration = res.Duration.Round(time.Millisecond).String()
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Target, stateColor, stage, duration)
	}

	return w.Flush()
}

func (a *app) runLogs(cmd *cobra.Command, targetName string, follow bool, lines int) error {
	cfg, err := a.queryResolver()
	if err != nil {
		return err
	}
	inst, err := a.targets.ResolveOne(targetName, cfg)
	if err != nil {
		return err
	}
	outRoot, err := cfg.GetGlobal(config.OptOutputRoot)
	if err != nil {
		return err
	}

	logFile := filepath.Join(outRoot.String(), ".cheribuild", "logs", inst.Name()+".log")
	if !utils.FileExists(logFile) {
		return fmt.Errorf("no logs found for target %s (build with --write-logfile)", inst.Name())
	}

	printInfo(fmt.Sprintf("Showing logs for target: %s", inst.Name()))
	return displayLogFile(cmd.OutOrStdout(), logFile, lines, follow)
}

func displayLogFile(out io.Writer, logFile string, lines int, follow bool) error {
	if follow {
		// Use tail -f for following logs
		tail := exec.Command("tail", "-f", "-n", fmt.Sprintf("%d", lines), logFile)
		tail.Stdout = out
		tail.Stderr = os.Stderr

		// Handle interrupt gracefully
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt)
		go func() {
			<-sigChan
			if tail.Process != nil {
				tail.Process.Kill()
			}
		}()

		return tail.Run()
	}

	content, err := readLastNLines(logFile, lines)
	if err != nil {
		return err
	}
	fmt.Fprint(out, content)
	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var allLines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	if len(allLines) == 0 {
		return "", nil
	}
	start := 0
	if len(allLines) > n {
		start = len(allLines) - n
	}
	return strings.Join(allLines[start:], "\n") + "\n", nil
}
