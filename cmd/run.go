// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	export "github.com/hashicorp/go-export"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// CLI are the cli parameters for go-export binary
type CLI struct {
	Compress      string           `short:"z" optional:"" help:"Compress tar output (${compressions})."`
	Source        string           `arg:"" name:"source" help:"Directory or archive (zip, jar, 7z, rar, tar, compressed tar) to export." type:"path"`
	Destination   string           `arg:"" name:"destination" default:"." help:"Output directory, or output file for a single zip or tar export. (\"-\" for STDOUT, tar only)"`
	Format        []string         `short:"f" default:"dir" enum:"dir,zip,tar" help:"Output format: dir, zip or tar. Repeat to export several formats at once."`
	LongNames     string           `default:"pax" enum:"pax,gnu,strict" help:"Handling of tar entry names longer than 100 bytes: pax, gnu or strict."`
	MaxExportSize int64            `optional:"" default:"-1" help:"Maximum number of asset bytes that are exported. (disable check: -1)"`
	MaxExportTime int64            `optional:"" default:"-1" help:"Maximum time that an export should take (in seconds). (disable check: -1)"`
	MaxFiles      int64            `optional:"" default:"-1" help:"Maximum number of exported entries. (disable check: -1)"`
	Name          string           `short:"n" optional:"" help:"Name of the exported archive. Defaults to the base name of the source."`
	Nested        bool             `short:"N" help:"Flatten archives found inside the source into the export."`
	Overwrite     bool             `short:"O" help:"Overwrite if exist."`
	Telemetry     bool             `short:"T" optional:"" default:"false" help:"Print telemetry data to log after export."`
	Verbose       bool             `short:"v" optional:"" help:"Verbose logging."`
	Version       kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
	ZipMethod     string           `default:"deflate" enum:"store,deflate,zstd" help:"Compression method of zip entries: store, deflate or zstd."`
}

// zipMethods maps cli values to zip methods
var zipMethods = map[string]export.ZipMethod{
	"store":   export.ZipStore,
	"deflate": export.ZipDeflate,
	"zstd":    export.ZipZstd,
}

// longNames maps cli values to long name policies
var longNames = map[string]export.LongNames{
	"pax":    export.LongNamesPAX,
	"gnu":    export.LongNamesGNU,
	"strict": export.LongNamesStrict,
}

// Run the entrypoint into go-export as a cli tool
func Run(version, commit, date string) {
	ctx := context.Background()
	var cli CLI
	kong.Parse(&cli,
		kong.Description("Export a directory or archive as directory tree, zip or tar stream"),
		kong.UsageOnError(),
		kong.Vars{
			"version":      fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
			"compressions": fmt.Sprint(export.Compressions()),
		},
	)

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if cli.MaxExportTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(cli.MaxExportTime))
		defer cancel()
	}

	if err := Execute(ctx, &cli, logger, os.Stdout); err != nil {
		log.Println(fmt.Errorf("error during export: %w", err))
		os.Exit(-1)
	}
}

// Execute opens the source and exports it in all requested formats
// concurrently. Tar output goes to stdout if the destination is "-".
func Execute(ctx context.Context, cli *CLI, logger *slog.Logger, stdout io.Writer) error {
	if len(cli.Format) == 0 {
		cli.Format = []string{export.FormatExploded.String()}
	}
	if len(cli.Format) > 1 && cli.Destination == "-" {
		return errors.New("stdout can only take a single tar export")
	}
	if cli.Destination == "-" && cli.Format[0] != export.FormatTar.String() {
		return errors.Errorf("%s export cannot be written to stdout", cli.Format[0])
	}

	archive, closer, err := openSource(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer closer()

	opts, err := configOptions(cli, logger)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, name := range cli.Format {
		f, err := export.ParseFormat(name)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			dst, err := exportFormat(ctx, cli, archive, f, opts, stdout)
			if err != nil {
				return errors.Wrapf(err, "%s export failed", f)
			}
			logger.Info("export finished", "format", f.String(), "destination", dst)
			return nil
		})
	}
	return eg.Wait()
}

// openSource exposes the source directory or archive as an [export.Archive].
func openSource(ctx context.Context, cli *CLI, logger *slog.Logger) (export.Archive, func(), error) {
	stat, err := os.Stat(cli.Source)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open source")
	}

	name := cli.Name
	if name == "" {
		name = filepath.Base(filepath.Clean(cli.Source))
	}
	importOpts := []export.ImportOption{
		export.WithArchiveName(name),
		export.WithImportLogger(logger),
		export.WithNestedArchives(cli.Nested),
	}

	if stat.IsDir() {
		return export.NewDirArchive(name, os.DirFS(cli.Source), importOpts...), func() {}, nil
	}

	a, err := export.OpenArchive(ctx, cli.Source, importOpts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open source archive")
	}
	return a, func() { a.Close() }, nil
}

// configOptions converts the cli parameters into export options.
func configOptions(cli *CLI, logger *slog.Logger) ([]export.ConfigOption, error) {
	method, ok := zipMethods[cli.ZipMethod]
	if !ok {
		return nil, errors.Errorf("unknown zip method %q", cli.ZipMethod)
	}
	policy, ok := longNames[cli.LongNames]
	if !ok {
		return nil, errors.Errorf("unknown long name policy %q", cli.LongNames)
	}

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *export.TelemetryData) {
		if cli.Telemetry {
			logger.Info("export finished", "telemetry", td)
		}
	}

	return []export.ConfigOption{
		export.WithLogger(logger),
		export.WithMaxExportSize(cli.MaxExportSize),
		export.WithMaxFiles(cli.MaxFiles),
		export.WithOverwrite(cli.Overwrite),
		export.WithTarCompression(cli.Compress),
		export.WithTarLongNames(policy),
		export.WithTelemetryHook(telemetryToLog),
		export.WithZipMethod(method),
	}, nil
}

// exportFormat exports archive in format f and returns where the output went.
func exportFormat(ctx context.Context, cli *CLI, archive export.Archive, f export.Format, opts []export.ConfigOption, stdout io.Writer) (string, error) {
	switch f {
	case export.FormatExploded:
		return export.ExportExploded(ctx, archive, cli.Destination, opts...)

	case export.FormatZip:
		return export.ExportZip(ctx, archive, outputFile(cli, archive, ".zip"), opts...)

	case export.FormatTar:
		stream, err := export.ExportTar(ctx, archive, opts...)
		if err != nil {
			return "", err
		}
		defer stream.Close()

		if cli.Destination == "-" {
			if _, err := io.Copy(stdout, stream); err != nil {
				return "", errors.Wrap(err, "cannot write tar stream")
			}
			return "-", nil
		}

		ext := ".tar"
		if cli.Compress != "" {
			ext += "." + cli.Compress
		}
		dst := outputFile(cli, archive, ext)
		if err := writeFile(dst, stream, cli.Overwrite); err != nil {
			return "", err
		}
		return dst, nil
	}
	return "", errors.Errorf("unsupported format %s", f)
}

// outputFile returns the output file of a packed export. Into an existing
// directory the file is named after the archive with ext appended.
func outputFile(cli *CLI, archive export.Archive, ext string) string {
	if stat, err := os.Stat(cli.Destination); err == nil && stat.IsDir() {
		return filepath.Join(cli.Destination, archive.Name()+ext)
	}
	return cli.Destination
}

// writeFile copies src into the file at dst.
func writeFile(dst string, src io.Reader, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(dst, flags, 0644)
	if err != nil {
		return errors.Wrap(err, "cannot create output file")
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dst)
		return errors.Wrap(err, "cannot write tar stream")
	}
	return errors.Wrap(f.Close(), "cannot close output file")
}
