package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mrlokans/courseimport/internal/config"
	"github.com/mrlokans/courseimport/internal/entrypoint"
	"github.com/mrlokans/courseimport/internal/importers"
	"github.com/mrlokans/courseimport/internal/logging"
)

type ImportCommand struct {
	FolderURL       string
	CourseID        string
	DatabasePath    string
	CredentialsFile string
	DryRun          bool
	Verbose         bool

	cfg *config.Config
	out io.Writer
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{cfg: config.NewConfig(), out: os.Stdout}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.StringVar(&cmd.FolderURL, "folder", cmd.cfg.Drive.DefaultFolder, "Drive folder URL or ID to import (required)")
	fs.StringVar(&cmd.CourseID, "course", cmd.cfg.Drive.DefaultCourseID, "Destination course ID (required)")
	fs.StringVar(&cmd.DatabasePath, "db", cmd.cfg.Database.Path, "Path to the SQLite database file")
	fs.StringVar(&cmd.CredentialsFile, "credentials", cmd.cfg.Drive.CredentialsFile, "Google credentials JSON file")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Walk the folder and print the structure without writing it")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import a Google Drive folder tree (module / subject / files) into a course.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import -folder https://drive.google.com/drive/folders/1AbC -course redes-2024\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -folder 1AbC -course redes-2024 -dry-run\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.FolderURL == "" {
		fs.Usage()
		return fmt.Errorf("folder is required")
	}
	if cmd.CourseID == "" {
		fs.Usage()
		return fmt.Errorf("course is required")
	}

	return nil
}

func (cmd *ImportCommand) Run() error {
	cfg := *cmd.cfg
	cfg.Database.Path = cmd.DatabasePath
	cfg.Drive.CredentialsFile = cmd.CredentialsFile
	if cmd.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := entrypoint.Build(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	req := importers.Request{CourseID: cmd.CourseID, FolderURLOrID: cmd.FolderURL}

	var result *importers.Result
	if cmd.DryRun {
		result, err = app.Importer.DryRun(ctx, req)
	} else {
		result, err = app.Importer.Run(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	logger.Debug("import finished", zap.String("import_id", result.ImportID))
	return WriteReport(cmd.out, result, cmd.DryRun)
}

// WriteReport prints a run summary. Dry runs also print the walked structure as YAML.
func WriteReport(w io.Writer, result *importers.Result, dryRun bool) error {
	fmt.Fprintf(w, "=== Import %s ===\n", result.ImportID)
	fmt.Fprintf(w, "Course: %s\n", result.CourseID)
	fmt.Fprintf(w, "Folder: %s\n", result.FolderID)
	fmt.Fprintf(w, "Found: %d modules, %d subjects, %d lessons, %d tests\n",
		result.Found.Modules, result.Found.Subjects, result.Found.Lessons, result.Found.Tests)

	if result.Write != nil {
		fmt.Fprintf(w, "Created: %d modules, %d subjects, %d lessons, %d tests\n",
			result.Write.Modules, result.Write.Subjects, result.Write.Lessons, result.Write.Tests)
		fmt.Fprintf(w, "Skipped: %d modules, %d subjects, %d lessons, %d tests\n",
			result.Write.Skipped.Modules, result.Write.Skipped.Subjects, result.Write.Skipped.Lessons, result.Write.Skipped.Tests)
		if result.Write.AnswerKeysReplaced > 0 {
			fmt.Fprintf(w, "Answer keys replaced: %d\n", result.Write.AnswerKeysReplaced)
		}
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\n%d problems:\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}

	if dryRun && result.Structure != nil {
		fmt.Fprintf(w, "\n=== Structure (dry run, nothing written) ===\n")
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result.Structure); err != nil {
			return fmt.Errorf("failed to encode structure: %w", err)
		}
		return enc.Close()
	}

	return nil
}
