package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/urfave/cli/v2"

	"github.com/gobeaver/libkit"
	"github.com/gobeaver/libkit/filestore"
	"github.com/gobeaver/libkit/httpapi"
)

var flagPrefix *cli.StringFlag = &cli.StringFlag{
	Name:  "env-prefix",
	Value: "BEAVER_",
	Usage: "Prefix of the LIBKIT_* environment variables",
}
var flagLayout *cli.StringFlag = &cli.StringFlag{
	Name:  "layout",
	Usage: "YAML layout file, overrides LIBKIT_LAYOUT_FILE",
}
var flagLogLevel *cli.StringFlag = &cli.StringFlag{
	Name:  "log-level",
	Usage: "Log level, overrides LIBKIT_LOG_LEVEL",
}
var flagMachineName *cli.StringSliceFlag = &cli.StringSliceFlag{
	Name:  "machine-name",
	Usage: "Only list libraries with this machine name",
}
var flagAlgorithm *cli.StringFlag = &cli.StringFlag{
	Name:  "algorithm",
	Value: string(filestore.ChecksumXXHash),
	Usage: "Checksum algorithm (md5, sha1, sha256, sha512, crc32, xxhash)",
}
var flagListenAddr *cli.StringFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Usage: "Address to listen on, overrides LIBKIT_LISTEN_ADDR",
}

func main() {
	app := &cli.App{
		Name:  "libkit",
		Usage: "Inspect and serve libraries from combined library directories",
		Flags: []cli.Flag{
			flagPrefix,
			flagLayout,
			flagLogLevel,
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List installed libraries",
				Flags: []cli.Flag{flagMachineName},
				Action: func(cCtx *cli.Context) error {
					svc, err := openService(cCtx)
					if err != nil {
						return err
					}
					defer svc.Close()

					names, err := svc.GetInstalled(cCtx.Context, cCtx.StringSlice(flagMachineName.Name)...)
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Println(name.UberName())
					}
					return nil
				},
			},
			{
				Name:      "files",
				Usage:     "Show the files of a library as a tree",
				ArgsUsage: "<uber-name>",
				Action: func(cCtx *cli.Context) error {
					name, err := libraryArg(cCtx)
					if err != nil {
						return err
					}
					svc, err := openService(cCtx)
					if err != nil {
						return err
					}
					defer svc.Close()

					files, err := svc.ListFiles(cCtx.Context, name)
					if err != nil {
						return err
					}
					tree := newFileTree(name.UberName())
					for _, file := range files {
						tree.insert(file)
					}
					fmt.Print(tree.render())
					return nil
				},
			},
			{
				Name:      "cat",
				Usage:     "Print a library file",
				ArgsUsage: "<uber-name> <file>",
				Action: func(cCtx *cli.Context) error {
					name, err := libraryArg(cCtx)
					if err != nil {
						return err
					}
					if cCtx.Args().Len() < 2 {
						return cli.Exit("file argument required", 1)
					}
					svc, err := openService(cCtx)
					if err != nil {
						return err
					}
					defer svc.Close()

					rc, err := svc.GetFileStream(cCtx.Context, name, cCtx.Args().Get(1))
					if err != nil {
						return err
					}
					defer rc.Close()
					_, err = io.Copy(os.Stdout, rc)
					return err
				},
			},
			{
				Name:      "metadata",
				Usage:     "Print library.json of a library",
				ArgsUsage: "<uber-name>",
				Action: func(cCtx *cli.Context) error {
					name, err := libraryArg(cCtx)
					if err != nil {
						return err
					}
					svc, err := openService(cCtx)
					if err != nil {
						return err
					}
					defer svc.Close()

					metadata, err := svc.GetMetadata(cCtx.Context, name)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(metadata)
				},
			},
			{
				Name:      "checksum",
				Usage:     "Hash a library file",
				ArgsUsage: "<uber-name> <file>",
				Flags:     []cli.Flag{flagAlgorithm},
				Action: func(cCtx *cli.Context) error {
					name, err := libraryArg(cCtx)
					if err != nil {
						return err
					}
					if cCtx.Args().Len() < 2 {
						return cli.Exit("file argument required", 1)
					}
					svc, err := openService(cCtx)
					if err != nil {
						return err
					}
					defer svc.Close()

					file := cCtx.Args().Get(1)
					algorithm := filestore.ChecksumAlgorithm(cCtx.String(flagAlgorithm.Name))
					sum, err := libkit.FileChecksum(cCtx.Context, svc, name, file, algorithm)
					if err != nil {
						return err
					}
					fmt.Printf("%s  %s/%s\n", sum, name.UberName(), file)
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "Serve libraries over HTTP",
				Flags: []cli.Flag{flagListenAddr},
				Action: func(cCtx *cli.Context) error {
					cfg, err := loadConfig(cCtx)
					if err != nil {
						return err
					}
					if addr := cCtx.String(flagListenAddr.Name); addr != "" {
						cfg.ListenAddr = addr
					}
					svc, err := libkit.New(cfg)
					if err != nil {
						return err
					}
					defer svc.Close()

					server := httpapi.NewServer(&httpapi.ServerConfig{
						ListenAddr:               cfg.ListenAddress(),
						Log:                      svc.Logger(),
						ReadTimeout:              30 * time.Second,
						WriteTimeout:             60 * time.Second,
						GracefulShutdownDuration: 10 * time.Second,
					}, httpapi.NewHandler(svc, svc.Logger()))

					exit := make(chan os.Signal, 1)
					signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
					go func() {
						<-exit
						server.Shutdown()
					}()

					return server.ListenAndServe()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(cCtx *cli.Context) (*libkit.Config, error) {
	cfg := &libkit.Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: cCtx.String(flagPrefix.Name)}); err != nil {
		return nil, err
	}
	if layout := cCtx.String(flagLayout.Name); layout != "" {
		cfg.LayoutFile = layout
	}
	if level := cCtx.String(flagLogLevel.Name); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// openService builds the service for the inspection commands.
func openService(cCtx *cli.Context) (*libkit.Service, error) {
	cfg, err := inspectionConfig(cCtx)
	if err != nil {
		return nil, err
	}
	return libkit.New(cfg)
}

// inspectionConfig keeps stdout for command output: logs go to stderr and
// only warnings are logged unless a level is given.
func inspectionConfig(cCtx *cli.Context) (*libkit.Config, error) {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return nil, err
	}
	if !cCtx.IsSet(flagLogLevel.Name) {
		cfg.LogLevel = "warn"
	}
	cfg.LogStderr = true
	return cfg, nil
}

func libraryArg(cCtx *cli.Context) (libkit.LibraryName, error) {
	if cCtx.Args().Len() < 1 {
		return libkit.LibraryName{}, cli.Exit("uber-name argument required, e.g. H5P.Blanks-1.12", 1)
	}
	return libkit.ParseUberName(cCtx.Args().First())
}
